package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/review-service/internal/auth"
	"github.com/spec-kit/review-service/internal/domain"
	"github.com/spec-kit/review-service/internal/lifecycle"
	"github.com/spec-kit/review-service/internal/repository"
)

type authFixture struct {
	now      time.Time
	svc      *AuthService
	users    repository.UserRepository
	sessions repository.SessionRepository
	tokens   *auth.TokenManager
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	// Bearer tokens are checked against the wall clock, so stay close to it.
	now := time.Now().UTC().Truncate(time.Second)
	clock := lifecycle.ClockFunc(func() time.Time { return now })
	seq := 0
	gen := auth.TokenGeneratorFunc(func() domain.IdentityToken {
		seq++
		return domain.IdentityToken(fmt.Sprintf("session-%d", seq))
	})
	issuer, err := auth.NewSessionIssuer(gen, domain.DefaultRoleCapabilities(), clock, time.Hour)
	require.NoError(t, err)

	f := &authFixture{
		now:      now,
		users:    repository.NewMemoryUserRepository(),
		sessions: repository.NewMemorySessionRepository(clock.Now),
		tokens:   auth.NewTokenManager("test-secret"),
	}
	f.svc = NewAuthService(AuthDependencies{
		UserRepo:    f.users,
		SessionRepo: f.sessions,
		Issuer:      issuer,
		Tokens:      f.tokens,
		BcryptCost:  bcrypt.MinCost,
	})
	return f
}

func (f *authFixture) session(userID string, role domain.Role) *domain.Session {
	s := testSession(userID, role)
	s.IssuedAt = f.now
	s.Expiration = f.now.Add(time.Hour)
	return s
}

func TestAuthService_RegisterCreatesPublisher(t *testing.T) {
	f := newAuthFixture(t)
	user, err := f.svc.Register(context.Background(), "Ada", " Ada@Example.com ", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, domain.RolePublisher, user.Role)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.NotEqual(t, "correct-horse", user.PasswordHash)

	_, err = f.svc.Register(context.Background(), "Ada", "ada@example.com", "correct-horse")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestAuthService_RegisterValidatesInput(t *testing.T) {
	f := newAuthFixture(t)
	cases := map[string][3]string{
		"empty name":     {"", "a@example.com", "longenough"},
		"bad email":      {"A", "not-an-email", "longenough"},
		"short password": {"A", "a@example.com", "short"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.Register(context.Background(), in[0], in[1], in[2])
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestAuthService_LoginIssuesSessionWithRoleCapabilities(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	_, err := f.svc.Register(ctx, "Ada", "ada@example.com", "correct-horse")
	require.NoError(t, err)

	result, err := f.svc.Login(ctx, "ada@example.com", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, domain.IdentityToken("session-1"), result.Session.Token)
	assert.Equal(t, domain.FullCapabilitySet(), result.Session.Capabilities)
	assert.Equal(t, f.now.Add(time.Hour), result.Session.Expiration)

	stored, err := f.sessions.Get(ctx, result.Session.Token)
	require.NoError(t, err)
	assert.Equal(t, result.Session, *stored)

	claims, err := f.tokens.ParseToken(result.Token.Value)
	require.NoError(t, err)
	assert.Equal(t, result.Session.Token, claims.SessionToken())
	assert.Equal(t, result.User.ID, claims.Subject)
}

func TestAuthService_LoginRejectsBadCredentials(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	_, err := f.svc.Register(ctx, "Ada", "ada@example.com", "correct-horse")
	require.NoError(t, err)

	_, err = f.svc.Login(ctx, "ada@example.com", "wrong-password")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	_, err = f.svc.Login(ctx, "nobody@example.com", "correct-horse")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestAuthService_LogoutRequiresMatchingUser(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	_, err := f.svc.Register(ctx, "Ada", "ada@example.com", "correct-horse")
	require.NoError(t, err)
	result, err := f.svc.Login(ctx, "ada@example.com", "correct-horse")
	require.NoError(t, err)

	err = f.svc.Logout(ctx, "someone-else", result.Session.Token)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	require.NoError(t, f.svc.Logout(ctx, result.User.ID, result.Session.Token))
	_, err = f.sessions.Get(ctx, result.Session.Token)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = f.svc.Logout(ctx, result.User.ID, result.Session.Token)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestAuthService_LogoutEverywhere(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	_, err := f.svc.Register(ctx, "Ada", "ada@example.com", "correct-horse")
	require.NoError(t, err)
	first, err := f.svc.Login(ctx, "ada@example.com", "correct-horse")
	require.NoError(t, err)
	second, err := f.svc.Login(ctx, "ada@example.com", "correct-horse")
	require.NoError(t, err)

	require.NoError(t, f.svc.LogoutEverywhere(ctx, first.User.ID))
	for _, token := range []domain.IdentityToken{first.Session.Token, second.Session.Token} {
		_, err := f.sessions.Get(ctx, token)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	}
}

func TestAuthService_CreateUserIsAdminOnly(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	admin := f.session("adm", domain.RoleAdmin)
	reviewer := f.session("rev", domain.RoleReviewer)

	user, err := f.svc.CreateUser(ctx, admin, "Rita", "rita@example.com", "correct-horse", domain.RoleReviewer)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleReviewer, user.Role)

	_, err = f.svc.CreateUser(ctx, reviewer, "Eve", "eve@example.com", "correct-horse", domain.RoleAdmin)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.svc.CreateUser(ctx, admin, "Eve", "eve@example.com", "correct-horse", domain.Role("OWNER"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.svc.CreateUser(ctx, nil, "Eve", "eve@example.com", "correct-horse", domain.RoleAdmin)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestAuthService_ChangeRoleRevokesSessions(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	admin := f.session("adm", domain.RoleAdmin)

	user, err := f.svc.Register(ctx, "Ada", "ada@example.com", "correct-horse")
	require.NoError(t, err)
	before, err := f.svc.Login(ctx, "ada@example.com", "correct-horse")
	require.NoError(t, err)

	changed, err := f.svc.ChangeRole(ctx, admin, user.ID, domain.RoleReviewer)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleReviewer, changed.Role)

	stored, err := f.users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleReviewer, stored.Role)

	_, err = f.sessions.Get(ctx, before.Session.Token)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	after, err := f.svc.Login(ctx, "ada@example.com", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleReviewer, after.Session.Role)
	assert.Equal(t, domain.NewCapabilitySet(domain.CapabilityRead, domain.CapabilityUpdate), after.Session.Capabilities)
}

func TestAuthService_ChangeRoleRejections(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	admin := f.session("adm", domain.RoleAdmin)
	user, err := f.svc.Register(ctx, "Ada", "ada@example.com", "correct-horse")
	require.NoError(t, err)

	_, err = f.svc.ChangeRole(ctx, f.session("rev", domain.RoleReviewer), user.ID, domain.RoleAdmin)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.svc.ChangeRole(ctx, nil, user.ID, domain.RoleAdmin)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	_, err = f.svc.ChangeRole(ctx, admin, user.ID, domain.Role("OWNER"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.svc.ChangeRole(ctx, admin, admin.UserID, domain.RolePublisher)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.svc.ChangeRole(ctx, admin, "missing", domain.RoleReviewer)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	stored, err := f.users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RolePublisher, stored.Role)
}
