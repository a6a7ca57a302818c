package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/review-service/internal/auth"
	"github.com/spec-kit/review-service/internal/domain"
	"github.com/spec-kit/review-service/internal/repository"
)

const minPasswordLength = 8

// AuthService coordinates registration, login and logout.
type AuthService struct {
	users      repository.UserRepository
	sessions   repository.SessionRepository
	issuer     *auth.SessionIssuer
	tokenMgr   *auth.TokenManager
	bcryptCost int
	logger     *zap.Logger
}

// AuthDependencies encapsulates collaborators of the auth service.
type AuthDependencies struct {
	UserRepo    repository.UserRepository
	SessionRepo repository.SessionRepository
	Issuer      *auth.SessionIssuer
	Tokens      *auth.TokenManager
	BcryptCost  int
	Logger      *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:      deps.UserRepo,
		sessions:   deps.SessionRepo,
		issuer:     deps.Issuer,
		tokenMgr:   deps.Tokens,
		bcryptCost: deps.BcryptCost,
		logger:     logger,
	}
}

// LoginResult bundles the persisted session and the bearer token wrapping it.
type LoginResult struct {
	User    *domain.User
	Session domain.Session
	Token   domain.Token
}

// Register creates a publisher account. Self-signup never grants elevated roles.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*domain.User, error) {
	return s.createUser(ctx, name, email, password, domain.RolePublisher)
}

// CreateUser lets an administrator provision an account with any role.
func (s *AuthService) CreateUser(ctx context.Context, actor *domain.Session, name, email, password string, role domain.Role) (*domain.User, error) {
	if !domain.IsValid(actor, s.issuer.Now()) {
		return nil, fmt.Errorf("%w: session missing or expired", domain.ErrUnauthenticated)
	}
	if actor.Role != domain.RoleAdmin {
		return nil, fmt.Errorf("%w: only administrators create accounts", domain.ErrForbidden)
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", domain.ErrInvalidInput, role)
	}
	user, err := s.createUser(ctx, name, email, password, role)
	if err != nil {
		return nil, err
	}
	s.logger.Info("user provisioned",
		zap.String("user_id", user.ID),
		zap.String("role", string(role)),
		zap.String("by", actor.UserID))
	return user, nil
}

func (s *AuthService) createUser(ctx context.Context, name, email, password string, role domain.Role) (*domain.User, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: invalid email", domain.ErrInvalidInput)
	}
	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", domain.ErrInvalidInput, minPasswordLength)
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("%w: email already registered", domain.ErrInvalidInput)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login verifies credentials, opens a session and signs a bearer token for it.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%w: invalid credentials", domain.ErrUnauthenticated)
	}
	if err != nil {
		return nil, err
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, fmt.Errorf("%w: invalid credentials", domain.ErrUnauthenticated)
	}

	session := s.issuer.CreateSession(user.ID, user.Role)
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, err
	}
	token, err := s.tokenMgr.GenerateToken(session)
	if err != nil {
		_ = s.sessions.Revoke(ctx, session.Token)
		return nil, err
	}

	s.logger.Info("session opened", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	return &LoginResult{User: user, Session: session, Token: token}, nil
}

// Logout revokes the session named by token. The caller must own it.
func (s *AuthService) Logout(ctx context.Context, userID string, token domain.IdentityToken) error {
	session, err := s.sessions.Get(ctx, token)
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("%w: session not found", domain.ErrUnauthenticated)
	}
	if err != nil {
		return err
	}
	if session.UserID != userID {
		return fmt.Errorf("%w: session belongs to another user", domain.ErrForbidden)
	}
	if err := s.sessions.Revoke(ctx, token); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	s.logger.Info("session closed", zap.String("user_id", userID))
	return nil
}

// LogoutEverywhere revokes every session of the user.
func (s *AuthService) LogoutEverywhere(ctx context.Context, userID string) error {
	return s.sessions.RevokeAllForUser(ctx, userID)
}

// ChangeRole assigns a new role to a user. Sessions carry the role they were
// opened with, so every open session of the user is revoked.
func (s *AuthService) ChangeRole(ctx context.Context, actor *domain.Session, userID string, role domain.Role) (*domain.User, error) {
	if !domain.IsValid(actor, s.issuer.Now()) {
		return nil, fmt.Errorf("%w: session missing or expired", domain.ErrUnauthenticated)
	}
	if actor.Role != domain.RoleAdmin {
		return nil, fmt.Errorf("%w: only administrators change roles", domain.ErrForbidden)
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", domain.ErrInvalidInput, role)
	}
	if userID == actor.UserID {
		return nil, fmt.Errorf("%w: administrators cannot change their own role", domain.ErrInvalidInput)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Role == role {
		return user, nil
	}
	previous := user.Role
	user.Role = role
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	if err := s.sessions.RevokeAllForUser(ctx, user.ID); err != nil {
		return nil, err
	}

	s.logger.Info("role changed",
		zap.String("user_id", user.ID),
		zap.String("from", string(previous)),
		zap.String("to", string(role)),
		zap.String("by", actor.UserID))
	return user, nil
}
