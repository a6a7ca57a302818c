package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/review-service/internal/domain"
)

// SessionRepository stores live sessions keyed by their identity token.
// Expired sessions are reported as absent.
type SessionRepository interface {
	Save(ctx context.Context, session domain.Session) error
	Get(ctx context.Context, token domain.IdentityToken) (*domain.Session, error)
	Revoke(ctx context.Context, token domain.IdentityToken) error
	RevokeAllForUser(ctx context.Context, userID string) error
}

const (
	sessionKeyPrefix     = "session:"
	userSessionKeyPrefix = "user_sessions:"
)

type redisSessionRepository struct {
	client *redis.Client
	now    func() time.Time
	logger *zap.Logger
}

// NewRedisSessionRepository stores sessions in Redis with a TTL matching their expiration.
func NewRedisSessionRepository(client *redis.Client, now func() time.Time, logger *zap.Logger) SessionRepository {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &redisSessionRepository{client: client, now: now, logger: logger}
}

func sessionKey(token domain.IdentityToken) string {
	return sessionKeyPrefix + string(token)
}

func userSessionsKey(userID string) string {
	return userSessionKeyPrefix + userID
}

func (r *redisSessionRepository) Save(ctx context.Context, session domain.Session) error {
	ttl := session.Expiration.Sub(r.now())
	if ttl <= 0 {
		return fmt.Errorf("%w: session already expired", domain.ErrInvalidInput)
	}
	payload, err := encodeSession(session)
	if err != nil {
		return err
	}

	userKey := userSessionsKey(session.UserID)
	pipe := r.client.TxPipeline()
	pipe.SetNX(ctx, sessionKey(session.Token), payload, ttl)
	pipe.SAdd(ctx, userKey, string(session.Token))
	pipe.Expire(ctx, userKey, ttl)
	cmds, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	if created, ok := cmds[0].(*redis.BoolCmd); ok && !created.Val() {
		return fmt.Errorf("%w: session token already in use", domain.ErrInvalidInput)
	}
	return nil
}

func (r *redisSessionRepository) Get(ctx context.Context, token domain.IdentityToken) (*domain.Session, error) {
	payload, err := r.client.Get(ctx, sessionKey(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	session, err := decodeSession(payload)
	if err != nil {
		return nil, err
	}
	if !session.IsValid(r.now()) {
		// The key TTL removes it eventually; the session is absent either way.
		if err := r.Revoke(ctx, token); err != nil && !errors.Is(err, domain.ErrNotFound) {
			r.logger.Warn("expired session not removed", zap.String("user_id", session.UserID), zap.Error(err))
		}
		return nil, domain.ErrNotFound
	}
	return session, nil
}

func (r *redisSessionRepository) Revoke(ctx context.Context, token domain.IdentityToken) error {
	payload, err := r.client.GetDel(ctx, sessionKey(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	if session, err := decodeSession(payload); err == nil {
		if err := r.client.SRem(ctx, userSessionsKey(session.UserID), string(token)).Err(); err != nil {
			r.logger.Warn("session index not updated", zap.String("user_id", session.UserID), zap.Error(err))
		}
	}
	return nil
}

func (r *redisSessionRepository) RevokeAllForUser(ctx context.Context, userID string) error {
	userKey := userSessionsKey(userID)
	tokens, err := r.client.SMembers(ctx, userKey).Result()
	if err != nil {
		return fmt.Errorf("list user sessions: %w", err)
	}
	keys := make([]string, 0, len(tokens)+1)
	for _, token := range tokens {
		keys = append(keys, sessionKey(domain.IdentityToken(token)))
	}
	keys = append(keys, userKey)
	return r.client.Del(ctx, keys...).Err()
}

func encodeSession(session domain.Session) ([]byte, error) {
	return json.Marshal(session)
}

func decodeSession(payload []byte) (*domain.Session, error) {
	var session domain.Session
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &session, nil
}
