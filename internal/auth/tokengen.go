package auth

import (
	"github.com/google/uuid"

	"github.com/spec-kit/review-service/internal/domain"
)

// TokenGenerator produces unique session handles.
type TokenGenerator interface {
	NewToken() domain.IdentityToken
}

// UUIDGenerator issues random UUIDv4 tokens.
type UUIDGenerator struct{}

// NewToken returns a fresh UUIDv4 token.
func (UUIDGenerator) NewToken() domain.IdentityToken {
	return domain.IdentityToken(uuid.NewString())
}

// TokenGeneratorFunc adapts a function to TokenGenerator.
type TokenGeneratorFunc func() domain.IdentityToken

// NewToken calls f.
func (f TokenGeneratorFunc) NewToken() domain.IdentityToken {
	return f()
}
