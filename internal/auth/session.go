package auth

import (
	"errors"
	"time"

	"github.com/spec-kit/review-service/internal/domain"
	"github.com/spec-kit/review-service/internal/lifecycle"
)

// DefaultSessionTTL matches the thirty day login lifetime.
const DefaultSessionTTL = 30 * 24 * time.Hour

// SessionIssuer creates sessions with role-derived capabilities.
type SessionIssuer struct {
	tokens   TokenGenerator
	roleCaps domain.RoleCapabilities
	clock    lifecycle.Clock
	ttl      time.Duration
}

// NewSessionIssuer validates the role mapping and builds an issuer.
func NewSessionIssuer(tokens TokenGenerator, roleCaps domain.RoleCapabilities, clock lifecycle.Clock, ttl time.Duration) (*SessionIssuer, error) {
	if tokens == nil {
		return nil, errors.New("token generator is required")
	}
	if err := roleCaps.Validate(); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = lifecycle.SystemClock{}
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionIssuer{tokens: tokens, roleCaps: roleCaps, clock: clock, ttl: ttl}, nil
}

// CreateSession returns a new session for userID. Persisting it is the caller's job.
func (i *SessionIssuer) CreateSession(userID string, role domain.Role) domain.Session {
	now := i.clock.Now()
	return domain.Session{
		UserID:       userID,
		Token:        i.tokens.NewToken(),
		Role:         role,
		Capabilities: i.roleCaps.For(role),
		IssuedAt:     now,
		Expiration:   now.Add(i.ttl),
	}
}

// TTL returns the fixed session lifetime.
func (i *SessionIssuer) TTL() time.Duration {
	return i.ttl
}

// Now reports the issuer clock.
func (i *SessionIssuer) Now() time.Time {
	return i.clock.Now()
}
