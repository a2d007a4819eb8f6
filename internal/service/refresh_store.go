package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/socialgate/auth-gateway/internal/domain"
	"github.com/socialgate/auth-gateway/internal/repository"
)

// createRetries bounds retry attempts on a token value collision. Collisions
// are astronomically rare; the bound exists so a broken unique index cannot
// spin forever.
const createRetries = 3

// RefreshTokenStore manages durable refresh-token records: opaque token
// generation, lifetime stamping, validity lookup, revocation, and retention
// cleanup. Unlike the access-token registry, failures here are hard errors:
// a login or refresh cannot proceed without a durable record to rotate later.
type RefreshTokenStore struct {
	repo     repository.TokenRepository
	lifetime time.Duration
}

// NewRefreshTokenStore creates a new refresh token store
func NewRefreshTokenStore(repo repository.TokenRepository, lifetime time.Duration) *RefreshTokenStore {
	return &RefreshTokenStore{
		repo:     repo,
		lifetime: lifetime,
	}
}

// Create generates a fresh opaque token and persists a record for it. The
// token value is a random UUID; generation is retried if the store reports a
// uniqueness collision.
func (s *RefreshTokenStore) Create(ctx context.Context, userID int64, deviceInfo, ipAddress *string) (*domain.RefreshToken, error) {
	now := time.Now()

	var lastErr error
	for attempt := 0; attempt < createRetries; attempt++ {
		record := &domain.RefreshToken{
			UserID:     userID,
			Token:      uuid.NewString(),
			DeviceInfo: deviceInfo,
			IPAddress:  ipAddress,
			IssuedAt:   now,
			ExpiresAt:  now.Add(s.lifetime),
		}

		err := s.repo.Create(ctx, record)
		if err == nil {
			return record, nil
		}
		if !errors.Is(err, repository.ErrDuplicateToken) {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("refresh token generation kept colliding: %w", lastErr)
}

// FindValid returns the record for a token that is neither revoked nor
// expired; both dead states are reported identically as not found.
func (s *RefreshTokenStore) FindValid(ctx context.Context, token string) (*domain.RefreshToken, error) {
	return s.repo.FindValid(ctx, token, time.Now())
}

// Revoke marks the token revoked if it is not already; reports whether a row
// was updated.
func (s *RefreshTokenStore) Revoke(ctx context.Context, token string) (bool, error) {
	return s.repo.Revoke(ctx, token, time.Now())
}

// RevokeAllForUser revokes every live token owned by the user and returns the
// affected-row count.
func (s *RefreshTokenStore) RevokeAllForUser(ctx context.Context, userID int64) (int64, error) {
	return s.repo.RevokeAllByUserID(ctx, userID, time.Now())
}

// DeleteExpired removes rows whose expiry has passed.
func (s *RefreshTokenStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return s.repo.DeleteExpired(ctx, now)
}

// DeleteRevokedBefore removes rows revoked earlier than the cutoff.
func (s *RefreshTokenStore) DeleteRevokedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.repo.DeleteRevokedBefore(ctx, cutoff)
}

// Lifetime returns the configured refresh token lifetime.
func (s *RefreshTokenStore) Lifetime() time.Duration {
	return s.lifetime
}
