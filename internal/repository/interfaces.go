package repository

import (
	"context"
	"time"

	"github.com/socialgate/auth-gateway/internal/domain"
)

// UserRepository defines methods for subject operations. Soft-deleted users
// are invisible to every lookup.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByProvider(ctx context.Context, provider, providerID string) (*domain.User, error)
	UpdateProfile(ctx context.Context, user *domain.User) error
	UpdateLastLogin(ctx context.Context, userID int64) error
	SoftDelete(ctx context.Context, userID int64) error
}

// TokenRepository defines methods for durable refresh-token records.
type TokenRepository interface {
	Create(ctx context.Context, token *domain.RefreshToken) error
	FindValid(ctx context.Context, token string, now time.Time) (*domain.RefreshToken, error)
	Revoke(ctx context.Context, token string, now time.Time) (bool, error)
	RevokeAllByUserID(ctx context.Context, userID int64, now time.Time) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	DeleteRevokedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
