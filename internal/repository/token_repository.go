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

// tokenRepository implements TokenRepository interface
type tokenRepository struct {
	db *database.Postgres
}

// NewTokenRepository creates a new token repository
func NewTokenRepository(db *database.Postgres) TokenRepository {
	return &tokenRepository{db: db}
}

// Create inserts a new refresh-token record. Token values are enforced
// unique at the store level; a collision surfaces as ErrDuplicateToken so
// the caller can retry generation.
func (r *tokenRepository) Create(ctx context.Context, token *domain.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (user_id, token, device_info, ip_address, issued_at, expires_at, revoked, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, false, $7)
		RETURNING id
	`

	now := time.Now()
	if token.IssuedAt.IsZero() {
		token.IssuedAt = now
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = now
	}

	err := r.db.DB.QueryRowContext(ctx, query,
		token.UserID,
		token.Token,
		token.DeviceInfo,
		token.IPAddress,
		token.IssuedAt,
		token.ExpiresAt,
		token.CreatedAt,
	).Scan(&token.ID)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code == "23505" { // unique_violation
				return fmt.Errorf("refresh token value collides: %w", ErrDuplicateToken)
			}
		}
		return fmt.Errorf("failed to create refresh token: %w", err)
	}

	return nil
}

// FindValid retrieves a refresh token that is neither revoked nor expired.
// Revoked rows and expired-but-unrevoked rows are both reported as not found.
func (r *tokenRepository) FindValid(ctx context.Context, token string, now time.Time) (*domain.RefreshToken, error) {
	query := `
		SELECT id, user_id, token, device_info, ip_address, issued_at, expires_at, revoked, revoked_at, created_at
		FROM refresh_tokens
		WHERE token = $1 AND revoked = false AND expires_at > $2
	`

	record := &domain.RefreshToken{}
	var deviceInfo, ipAddress sql.NullString
	var revokedAt sql.NullTime

	err := r.db.DB.QueryRowContext(ctx, query, token, now).Scan(
		&record.ID,
		&record.UserID,
		&record.Token,
		&deviceInfo,
		&ipAddress,
		&record.IssuedAt,
		&record.ExpiresAt,
		&record.Revoked,
		&revokedAt,
		&record.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("valid refresh token not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find refresh token: %w", err)
	}

	if deviceInfo.Valid {
		record.DeviceInfo = &deviceInfo.String
	}
	if ipAddress.Valid {
		record.IPAddress = &ipAddress.String
	}
	if revokedAt.Valid {
		record.RevokedAt = &revokedAt.Time
	}

	return record, nil
}

// Revoke sets the revoked flag on the matching row if it is not already
// revoked. The revoked=false predicate makes this a compare-and-set: of two
// concurrent rotations only one observes an affected row.
func (r *tokenRepository) Revoke(ctx context.Context, token string, now time.Time) (bool, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked = true, revoked_at = $2
		WHERE token = $1 AND revoked = false
	`

	result, err := r.db.DB.ExecContext(ctx, query, token, now)
	if err != nil {
		return false, fmt.Errorf("failed to revoke refresh token: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// RevokeAllByUserID revokes every currently-unrevoked token owned by the user.
func (r *tokenRepository) RevokeAllByUserID(ctx context.Context, userID int64, now time.Time) (int64, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked = true, revoked_at = $2
		WHERE user_id = $1 AND revoked = false
	`

	result, err := r.db.DB.ExecContext(ctx, query, userID, now)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke user tokens: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}

// DeleteExpired removes rows whose expiry has passed. Safe to run
// concurrently with live traffic: it only touches rows already logically dead.
func (r *tokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `DELETE FROM refresh_tokens WHERE expires_at < $1`

	result, err := r.db.DB.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired tokens: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}

// DeleteRevokedBefore removes rows revoked earlier than the cutoff, closing
// out the retention window for rotated and logged-out tokens.
func (r *tokenRepository) DeleteRevokedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM refresh_tokens WHERE revoked = true AND revoked_at < $1`

	result, err := r.db.DB.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete revoked tokens: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}
