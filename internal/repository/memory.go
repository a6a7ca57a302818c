package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/review-service/internal/domain"
)

// In-memory implementations back the service when Postgres or Redis are not
// configured, and serve as test doubles. They honor the same version checks.

type memorySubmissionRepository struct {
	mu    sync.RWMutex
	items map[string]domain.Submission
}

// NewMemorySubmissionRepository returns an empty in-memory store.
func NewMemorySubmissionRepository() SubmissionRepository {
	return &memorySubmissionRepository{items: make(map[string]domain.Submission)}
}

func (r *memorySubmissionRepository) Create(_ context.Context, sub *domain.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if _, exists := r.items[sub.ID]; exists {
		return fmt.Errorf("%w: submission %s already exists", domain.ErrInvalidInput, sub.ID)
	}
	sub.Version = 1
	r.items[sub.ID] = *sub
	return nil
}

func (r *memorySubmissionRepository) GetByID(_ context.Context, id string) (*domain.Submission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sub, ok := r.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &sub, nil
}

func (r *memorySubmissionRepository) Update(_ context.Context, sub *domain.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.items[sub.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if current.Version != sub.Version {
		return fmt.Errorf("%w: submission %s changed since it was loaded", domain.ErrConcurrentModification, sub.ID)
	}
	next := *sub
	next.OwnerID = current.OwnerID
	next.CreatedAt = current.CreatedAt
	next.Version = current.Version + 1
	r.items[sub.ID] = next
	sub.Version = next.Version
	return nil
}

func (r *memorySubmissionRepository) Delete(_ context.Context, id string, version int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.items[id]
	if !ok {
		return domain.ErrNotFound
	}
	if current.Version != version {
		return fmt.Errorf("%w: submission %s changed since it was loaded", domain.ErrConcurrentModification, id)
	}
	delete(r.items, id)
	return nil
}

func (r *memorySubmissionRepository) ListWithFilter(_ context.Context, filter SubmissionFilter) ([]domain.Submission, error) {
	r.mu.RLock()
	matched := make([]domain.Submission, 0, len(r.items))
	for _, sub := range r.items {
		if matchesFilter(sub, filter) {
			matched = append(matched, sub)
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].UpdatedAt.Equal(matched[j].UpdatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].UpdatedAt.After(matched[j].UpdatedAt)
	})

	limit, offset := pageBounds(filter.Limit, filter.Offset)
	if offset >= len(matched) {
		return []domain.Submission{}, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

func matchesFilter(sub domain.Submission, filter SubmissionFilter) bool {
	if filter.OwnerID != nil && sub.OwnerID != *filter.OwnerID {
		return false
	}
	if len(filter.Statuses) > 0 {
		found := false
		for _, status := range filter.Statuses {
			if sub.Status == status {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.UpdatedFrom != nil && sub.UpdatedAt.Before(*filter.UpdatedFrom) {
		return false
	}
	if filter.UpdatedTo != nil && sub.UpdatedAt.After(*filter.UpdatedTo) {
		return false
	}
	if filter.SearchTerm != nil {
		term := strings.ToLower(strings.TrimSpace(*filter.SearchTerm))
		if term != "" && !strings.Contains(strings.ToLower(sub.Name), term) && !strings.Contains(strings.ToLower(sub.Description), term) {
			return false
		}
	}
	return true
}

type memorySubmissionHistoryRepository struct {
	mu      sync.RWMutex
	entries map[string][]domain.SubmissionHistory
	now     func() time.Time
}

// NewMemorySubmissionHistoryRepository returns an empty in-memory audit log.
func NewMemorySubmissionHistoryRepository() SubmissionHistoryRepository {
	return &memorySubmissionHistoryRepository{entries: make(map[string][]domain.SubmissionHistory), now: time.Now}
}

func (r *memorySubmissionHistoryRepository) Create(_ context.Context, history *domain.SubmissionHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	history.ID = uuid.NewString()
	history.CreatedAt = r.now().UTC()
	r.entries[history.SubmissionID] = append(r.entries[history.SubmissionID], *history)
	return nil
}

func (r *memorySubmissionHistoryRepository) ListBySubmission(_ context.Context, submissionID string, limit, offset int) ([]domain.SubmissionHistory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := r.entries[submissionID]
	limit, offset = pageBounds(limit, offset)
	if offset >= len(all) {
		return []domain.SubmissionHistory{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	out := make([]domain.SubmissionHistory, end-offset)
	copy(out, all[offset:end])
	return out, nil
}

type memorySessionRepository struct {
	mu       sync.Mutex
	sessions map[domain.IdentityToken]domain.Session
	now      func() time.Time
}

// NewMemorySessionRepository keeps sessions in process memory.
func NewMemorySessionRepository(now func() time.Time) SessionRepository {
	if now == nil {
		now = time.Now
	}
	return &memorySessionRepository{sessions: make(map[domain.IdentityToken]domain.Session), now: now}
}

func (r *memorySessionRepository) Save(_ context.Context, session domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !session.IsValid(r.now()) {
		return fmt.Errorf("%w: session already expired", domain.ErrInvalidInput)
	}
	if _, exists := r.sessions[session.Token]; exists {
		return fmt.Errorf("%w: session token already in use", domain.ErrInvalidInput)
	}
	r.sessions[session.Token] = session
	return nil
}

func (r *memorySessionRepository) Get(_ context.Context, token domain.IdentityToken) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[token]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if !session.IsValid(r.now()) {
		delete(r.sessions, token)
		return nil, domain.ErrNotFound
	}
	return &session, nil
}

func (r *memorySessionRepository) Revoke(_ context.Context, token domain.IdentityToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[token]; !ok {
		return domain.ErrNotFound
	}
	delete(r.sessions, token)
	return nil
}

func (r *memorySessionRepository) RevokeAllForUser(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for token, session := range r.sessions {
		if session.UserID == userID {
			delete(r.sessions, token)
		}
	}
	return nil
}

type memoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]domain.User
}

// NewMemoryUserRepository returns an empty in-memory user store.
func NewMemoryUserRepository() UserRepository {
	return &memoryUserRepository{users: make(map[string]domain.User)}
}

func (r *memoryUserRepository) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return fmt.Errorf("%w: email already registered", domain.ErrInvalidInput)
		}
	}
	now := time.Now().UTC()
	user.ID = uuid.NewString()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.users[user.ID] = *user
	return nil
}

func (r *memoryUserRepository) Update(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.users[user.ID]
	if !ok {
		return domain.ErrNotFound
	}
	user.CreatedAt = current.CreatedAt
	user.UpdatedAt = time.Now().UTC()
	r.users[user.ID] = *user
	return nil
}

func (r *memoryUserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &user, nil
}

func (r *memoryUserRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, user := range r.users {
		if strings.EqualFold(user.Email, email) {
			u := user
			return &u, nil
		}
	}
	return nil, domain.ErrNotFound
}
