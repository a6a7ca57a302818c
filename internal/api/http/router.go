package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/review-service/internal/api/http/handlers"
	"github.com/spec-kit/review-service/internal/auth"
	"github.com/spec-kit/review-service/internal/config"
	"github.com/spec-kit/review-service/internal/domain"
	"github.com/spec-kit/review-service/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Submissions    *handlers.SubmissionsHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
	RateLimit      config.RateLimitConfig
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	limited := RateLimit(cfg.RateLimit.LoginPerSecond, cfg.RateLimit.LoginBurst)
	authGroup := app.Group("/auth")
	authGroup.Post("/register", limited, cfg.Auth.Register)
	authGroup.Post("/login", limited, cfg.Auth.Login)
	authGroup.Post("/logout", cfg.AuthMiddleware.Handle, auth.RequireAnyRole(), cfg.Auth.Logout)

	admin := app.Group("/admin", cfg.AuthMiddleware.Handle, auth.RequireRole(domain.RoleAdmin))
	admin.Post("/users", cfg.Auth.CreateUser)
	admin.Patch("/users/:id/role", cfg.Auth.ChangeRole)

	submissions := app.Group("/submissions", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())
	submissions.Get("/", cfg.Submissions.ListSubmissions)
	submissions.Post("/", cfg.Submissions.CreateSubmission)
	submissions.Get("/:id", cfg.Submissions.GetSubmission)
	submissions.Patch("/:id", cfg.Submissions.EditSubmission)
	submissions.Delete("/:id", cfg.Submissions.DeleteSubmission)
	submissions.Post("/:id/transitions", cfg.Submissions.Transition)
	submissions.Get("/:id/history", cfg.Submissions.History)
}
