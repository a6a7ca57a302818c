package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/review-service/internal/api/http"
	"github.com/spec-kit/review-service/internal/api/http/handlers"
	"github.com/spec-kit/review-service/internal/auth"
	"github.com/spec-kit/review-service/internal/config"
	"github.com/spec-kit/review-service/internal/domain"
	"github.com/spec-kit/review-service/internal/events"
	"github.com/spec-kit/review-service/internal/lifecycle"
	"github.com/spec-kit/review-service/internal/observability"
	"github.com/spec-kit/review-service/internal/persistence"
	"github.com/spec-kit/review-service/internal/repository"
	"github.com/spec-kit/review-service/internal/service"
	"github.com/spec-kit/review-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	roleCaps := domain.DefaultRoleCapabilities()
	if err := roleCaps.Validate(); err != nil {
		logger.Fatal("invalid role capability mapping", zap.Error(err))
	}

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis, redisUp := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	clock := lifecycle.SystemClock{}
	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	var (
		userRepo       repository.UserRepository
		submissionRepo repository.SubmissionRepository
		historyRepo    repository.SubmissionHistoryRepository
		sessionRepo    repository.SessionRepository
		readiness      []handlers.Dependency
	)
	if pg.Configured() {
		pool := pg.PoolHandle()
		userRepo = repository.NewUserRepository(pool)
		submissionRepo = repository.NewSubmissionRepository(pool)
		historyRepo = repository.NewSubmissionHistoryRepository(pool)
		readiness = append(readiness, handlers.Dependency{Name: "postgres", Pinger: pg})
	} else {
		userRepo = repository.NewMemoryUserRepository()
		submissionRepo = repository.NewMemorySubmissionRepository()
		historyRepo = repository.NewMemorySubmissionHistoryRepository()
		readiness = append(readiness, handlers.Dependency{Name: "postgres"})
	}
	if redisUp {
		sessionRepo = repository.NewRedisSessionRepository(redis.Client, clock.Now, logger.Named("sessions"))
		readiness = append(readiness, handlers.Dependency{Name: "redis", Pinger: redis})
	} else {
		sessionRepo = repository.NewMemorySessionRepository(clock.Now)
		readiness = append(readiness, handlers.Dependency{Name: "redis"})
	}

	issuer, err := auth.NewSessionIssuer(auth.UUIDGenerator{}, roleCaps, clock, cfg.Auth.SessionTTL())
	if err != nil {
		logger.Fatal("failed to build session issuer", zap.Error(err))
	}
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret)

	authService := service.NewAuthService(service.AuthDependencies{
		UserRepo:    userRepo,
		SessionRepo: sessionRepo,
		Issuer:      issuer,
		Tokens:      tokens,
		BcryptCost:  cfg.Auth.BcryptCost,
		Logger:      logger.Named("auth"),
	})
	submissionService := service.NewSubmissionService(service.SubmissionDependencies{
		SubmissionRepo: submissionRepo,
		HistoryRepo:    historyRepo,
		Engine:         lifecycle.NewEngine(lifecycle.WithClock(clock)),
		Dispatcher:     dispatcher,
		Metrics:        metrics,
		Logger:         logger.Named("submissions"),
	})
	notificationService := service.NewNotificationService(dispatcher, logger.Named("notifications"), cfg.Notification)
	worker.StartNotificationWorker(notificationService)

	authMiddleware := auth.NewAuthMiddleware(tokens, sessionRepo, clock)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  cfg.App.RequestTimeout(),
		WriteTimeout: cfg.App.RequestTimeout(),
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, readiness...),
		Auth:           handlers.NewAuthHandler(authService),
		Submissions:    handlers.NewSubmissionsHandler(submissionService),
		AuthMiddleware: authMiddleware,
		Metrics:        metrics,
		RateLimit:      cfg.RateLimit,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
