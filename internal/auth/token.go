package auth

import (
	"errors"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/review-service/internal/domain"
)

// TokenManager wraps session handles into signed bearer tokens.
type TokenManager struct {
	secret []byte
}

// NewTokenManager builds a new manager.
func NewTokenManager(secret string) *TokenManager {
	return &TokenManager{secret: []byte(secret)}
}

// Claims describes JWT payload. The session handle travels as the token id.
type Claims struct {
	Role domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// GenerateToken signs a bearer token for session. The token expires with the session.
func (tm *TokenManager) GenerateToken(session domain.Session) (domain.Token, error) {
	claims := &Claims{
		Role: session.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        string(session.Token),
			Subject:   session.UserID,
			ExpiresAt: jwt.NewNumericDate(session.Expiration),
			IssuedAt:  jwt.NewNumericDate(session.IssuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return domain.Token{}, err
	}
	return domain.Token{
		Value:     tokenString,
		Session:   session.Token,
		UserID:    session.UserID,
		Role:      session.Role,
		ExpiresAt: session.Expiration,
		IssuedAt:  session.IssuedAt,
	}, nil
}

// ParseToken validates the signature and returns claims.
func (tm *TokenManager) ParseToken(tokenStr string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.ID == "" || claims.Subject == "" {
		return nil, errors.New("token missing session handle")
	}
	return claims, nil
}

// SessionToken returns the identity token carried by the claims.
func (c *Claims) SessionToken() domain.IdentityToken {
	return domain.IdentityToken(c.ID)
}
