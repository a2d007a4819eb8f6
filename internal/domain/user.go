package domain

import "time"

// User represents a subject authenticated through an external OAuth provider.
// The (Provider, ProviderID) pair is unique; display fields are refreshed on
// every login. Users are soft-deleted, never purged.
type User struct {
	ID          int64      `json:"id" db:"id"`
	Provider    string     `json:"provider" db:"provider"`
	ProviderID  string     `json:"provider_id" db:"provider_id"`
	Nickname    string     `json:"nickname" db:"nickname"`
	Name        string     `json:"name" db:"name"`
	AvatarURL   string     `json:"avatar_url" db:"avatar_url"`
	Email       string     `json:"email" db:"email"`
	Enabled     bool       `json:"enabled" db:"enabled"`
	Deleted     bool       `json:"-" db:"deleted"`
	DeletedAt   *time.Time `json:"-" db:"deleted_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	LastLoginAt *time.Time `json:"last_login_at" db:"last_login_at"`
}

// RefreshToken represents a durable refresh-token record. A user may own many
// concurrent records across devices. Records are only ever mutated to set the
// revoked flag; cleanup jobs remove rows that are already logically dead.
type RefreshToken struct {
	ID         int64      `json:"id" db:"id"`
	UserID     int64      `json:"user_id" db:"user_id"`
	Token      string     `json:"-" db:"token"`
	DeviceInfo *string    `json:"device_info" db:"device_info"`
	IPAddress  *string    `json:"ip_address" db:"ip_address"`
	IssuedAt   time.Time  `json:"issued_at" db:"issued_at"`
	ExpiresAt  time.Time  `json:"expires_at" db:"expires_at"`
	Revoked    bool       `json:"revoked" db:"revoked"`
	RevokedAt  *time.Time `json:"revoked_at" db:"revoked_at"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

// IsValid reports whether the token is usable: not revoked and not expired.
func (rt RefreshToken) IsValid(now time.Time) bool {
	return !rt.Revoked && now.Before(rt.ExpiresAt)
}
