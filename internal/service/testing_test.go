package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/socialgate/auth-gateway/internal/domain"
	"github.com/socialgate/auth-gateway/internal/repository"
	"github.com/socialgate/auth-gateway/pkg/database"
	"go.uber.org/zap"
)

// fakeTokenRepo is an in-memory TokenRepository with the same observable
// semantics as the Postgres implementation: unique token values, CAS revoke,
// dead-state-only deletes.
type fakeTokenRepo struct {
	mu     sync.Mutex
	rows   map[string]*domain.RefreshToken
	nextID int64

	// duplicatesLeft forces Create to report a collision this many times.
	duplicatesLeft int
	createErr      error
}

func newFakeTokenRepo() *fakeTokenRepo {
	return &fakeTokenRepo{rows: make(map[string]*domain.RefreshToken)}
}

func (f *fakeTokenRepo) Create(_ context.Context, token *domain.RefreshToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.createErr != nil {
		return f.createErr
	}
	if f.duplicatesLeft > 0 {
		f.duplicatesLeft--
		return repository.ErrDuplicateToken
	}
	if _, exists := f.rows[token.Token]; exists {
		return repository.ErrDuplicateToken
	}

	f.nextID++
	token.ID = f.nextID
	copied := *token
	f.rows[token.Token] = &copied
	return nil
}

func (f *fakeTokenRepo) FindValid(_ context.Context, token string, now time.Time) (*domain.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	row, ok := f.rows[token]
	if !ok || !row.IsValid(now) {
		return nil, repository.ErrNotFound
	}

	copied := *row
	return &copied, nil
}

func (f *fakeTokenRepo) Revoke(_ context.Context, token string, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	row, ok := f.rows[token]
	if !ok || row.Revoked {
		return false, nil
	}

	row.Revoked = true
	row.RevokedAt = &now
	return true, nil
}

func (f *fakeTokenRepo) RevokeAllByUserID(_ context.Context, userID int64, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var count int64
	for _, row := range f.rows {
		if row.UserID == userID && !row.Revoked {
			row.Revoked = true
			row.RevokedAt = &now
			count++
		}
	}
	return count, nil
}

func (f *fakeTokenRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var count int64
	for token, row := range f.rows {
		if row.ExpiresAt.Before(now) {
			delete(f.rows, token)
			count++
		}
	}
	return count, nil
}

func (f *fakeTokenRepo) DeleteRevokedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var count int64
	for token, row := range f.rows {
		if row.Revoked && row.RevokedAt != nil && row.RevokedAt.Before(cutoff) {
			delete(f.rows, token)
			count++
		}
	}
	return count, nil
}

func (f *fakeTokenRepo) get(token string) *domain.RefreshToken {
	f.mu.Lock()
	defer f.mu.Unlock()
	if row, ok := f.rows[token]; ok {
		copied := *row
		return &copied
	}
	return nil
}

func (f *fakeTokenRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

// fakeUserRepo is an in-memory UserRepository honoring soft-delete
// invisibility.
type fakeUserRepo struct {
	mu     sync.Mutex
	users  map[int64]*domain.User
	nextID int64
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[int64]*domain.User)}
}

func (f *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, existing := range f.users {
		if existing.Provider == user.Provider && existing.ProviderID == user.ProviderID {
			return repository.ErrDuplicateProviderUser
		}
	}

	f.nextID++
	user.ID = f.nextID
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	copied := *user
	f.users[user.ID] = &copied
	return nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id int64) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	user, ok := f.users[id]
	if !ok || user.Deleted {
		return nil, repository.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (f *fakeUserRepo) GetByProvider(_ context.Context, provider, providerID string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, user := range f.users {
		if user.Provider == provider && user.ProviderID == providerID && !user.Deleted {
			copied := *user
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUserRepo) UpdateProfile(_ context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	existing, ok := f.users[user.ID]
	if !ok || existing.Deleted {
		return repository.ErrNotFound
	}
	existing.Nickname = user.Nickname
	existing.Name = user.Name
	existing.AvatarURL = user.AvatarURL
	existing.Email = user.Email
	return nil
}

func (f *fakeUserRepo) UpdateLastLogin(_ context.Context, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	user, ok := f.users[userID]
	if !ok || user.Deleted {
		return repository.ErrNotFound
	}
	now := time.Now()
	user.LastLoginAt = &now
	return nil
}

func (f *fakeUserRepo) SoftDelete(_ context.Context, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	user, ok := f.users[userID]
	if !ok || user.Deleted {
		return repository.ErrNotFound
	}
	now := time.Now()
	user.Deleted = true
	user.DeletedAt = &now
	return nil
}

func testRedis(t *testing.T) (*miniredis.Miniredis, *database.Redis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, &database.Redis{Client: client}
}

func testRegistry(t *testing.T, failOpen bool) (*miniredis.Miniredis, *AccessTokenRegistry) {
	t.Helper()

	mr, rdb := testRedis(t)
	return mr, NewAccessTokenRegistry(rdb, zap.NewNop(), failOpen, time.Second)
}
