package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/review-service/internal/domain"
	"github.com/spec-kit/review-service/internal/lifecycle"
	"github.com/spec-kit/review-service/internal/repository"
	apperrors "github.com/spec-kit/review-service/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller.
type Principal struct {
	Session domain.Session
}

// UserID returns the caller's user id.
func (p *Principal) UserID() string {
	return p.Session.UserID
}

// Role returns the caller's session role.
func (p *Principal) Role() domain.Role {
	return p.Session.Role
}

// AuthMiddleware validates bearer tokens and resolves sessions.
type AuthMiddleware struct {
	tokens   *TokenManager
	sessions repository.SessionRepository
	clock    lifecycle.Clock
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, sessions repository.SessionRepository, clock lifecycle.Clock) *AuthMiddleware {
	if clock == nil {
		clock = lifecycle.SystemClock{}
	}
	return &AuthMiddleware{tokens: tokens, sessions: sessions, clock: clock}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	session, err := m.sessions.Get(c.UserContext(), claims.SessionToken())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return apperrors.NewUnauthorized("session not found")
		}
		return apperrors.MapError(err)
	}
	if session.UserID != claims.Subject {
		return apperrors.NewUnauthorized("session does not belong to token subject")
	}
	if !session.IsValid(m.clock.Now()) {
		return apperrors.NewUnauthorized("session expired")
	}

	c.Locals(principalKey, &Principal{Session: *session})
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}

// SessionFromContext returns the caller's session, or nil when unauthenticated.
func SessionFromContext(c *fiber.Ctx) *domain.Session {
	principal, ok := PrincipalFromContext(c)
	if !ok || principal == nil {
		return nil
	}
	session := principal.Session
	return &session
}
