package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/socialgate/auth-gateway/internal/domain"
	"github.com/socialgate/auth-gateway/pkg/database"
)

// userRepository implements UserRepository interface
type userRepository struct {
	db *database.Postgres
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.Postgres) UserRepository {
	return &userRepository{db: db}
}

const userColumns = `id, provider, provider_id, nickname, name, avatar_url, email, enabled, deleted, deleted_at, created_at, last_login_at`

// Create creates a new user for a (provider, provider_id) identity
func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (provider, provider_id, nickname, name, avatar_url, email, enabled, deleted, created_at, last_login_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, false, $8, $9)
		RETURNING id
	`

	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.LastLoginAt == nil {
		user.LastLoginAt = &now
	}

	err := r.db.DB.QueryRowContext(ctx, query,
		user.Provider,
		user.ProviderID,
		user.Nickname,
		user.Name,
		user.AvatarURL,
		user.Email,
		user.Enabled,
		user.CreatedAt,
		user.LastLoginAt,
	).Scan(&user.ID)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code == "23505" { // unique_violation
				return fmt.Errorf("user for %s/%s already exists: %w", user.Provider, user.ProviderID, ErrDuplicateProviderUser)
			}
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by ID, excluding soft-deleted rows
func (r *userRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 AND deleted = false`

	return r.scanUser(r.db.DB.QueryRowContext(ctx, query, id), fmt.Sprintf("id %d", id))
}

// GetByProvider retrieves a user by its provider identity, excluding
// soft-deleted rows
func (r *userRepository) GetByProvider(ctx context.Context, provider, providerID string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE provider = $1 AND provider_id = $2 AND deleted = false`

	return r.scanUser(r.db.DB.QueryRowContext(ctx, query, provider, providerID), provider+"/"+providerID)
}

func (r *userRepository) scanUser(row *sql.Row, descriptor string) (*domain.User, error) {
	user := &domain.User{}
	var deletedAt, lastLoginAt sql.NullTime

	err := row.Scan(
		&user.ID,
		&user.Provider,
		&user.ProviderID,
		&user.Nickname,
		&user.Name,
		&user.AvatarURL,
		&user.Email,
		&user.Enabled,
		&user.Deleted,
		&deletedAt,
		&user.CreatedAt,
		&lastLoginAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %s not found: %w", descriptor, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user %s: %w", descriptor, err)
	}

	if deletedAt.Valid {
		user.DeletedAt = &deletedAt.Time
	}
	if lastLoginAt.Valid {
		user.LastLoginAt = &lastLoginAt.Time
	}

	return user, nil
}

// UpdateProfile refreshes the mutable display attributes. Identity columns
// (provider, provider_id) and created_at are immutable.
func (r *userRepository) UpdateProfile(ctx context.Context, user *domain.User) error {
	query := `
		UPDATE users
		SET nickname = $2, name = $3, avatar_url = $4, email = $5
		WHERE id = $1 AND deleted = false
	`

	result, err := r.db.DB.ExecContext(ctx, query,
		user.ID,
		user.Nickname,
		user.Name,
		user.AvatarURL,
		user.Email,
	)
	if err != nil {
		return fmt.Errorf("failed to update user profile: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("user with id %d not found: %w", user.ID, ErrNotFound)
	}

	return nil
}

// UpdateLastLogin updates the last login timestamp for a user
func (r *userRepository) UpdateLastLogin(ctx context.Context, userID int64) error {
	query := `UPDATE users SET last_login_at = $1 WHERE id = $2 AND deleted = false`

	result, err := r.db.DB.ExecContext(ctx, query, time.Now(), userID)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("user with id %d not found: %w", userID, ErrNotFound)
	}

	return nil
}

// SoftDelete marks the user deleted. The row persists for audit and
// idempotent restore; lookups stop returning it immediately.
func (r *userRepository) SoftDelete(ctx context.Context, userID int64) error {
	query := `UPDATE users SET deleted = true, deleted_at = $1 WHERE id = $2 AND deleted = false`

	result, err := r.db.DB.ExecContext(ctx, query, time.Now(), userID)
	if err != nil {
		return fmt.Errorf("failed to soft-delete user: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("user with id %d not found: %w", userID, ErrNotFound)
	}

	return nil
}
