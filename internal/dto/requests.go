package dto

// CallbackRequest carries the verified provider profile delivered by the
// OAuth handshake glue. The gateway trusts these fields; it never talks to
// the provider itself.
type CallbackRequest struct {
	Provider   string `json:"provider" binding:"required"`
	ProviderID string `json:"provider_id" binding:"required"`
	Nickname   string `json:"nickname" binding:"required"`
	Name       string `json:"name"`
	AvatarURL  string `json:"avatar_url"`
	Email      string `json:"email"`
}

// AuthResponse represents an authentication response
type AuthResponse struct {
	AccessToken string   `json:"access_token"`
	TokenType   string   `json:"token_type"`
	ExpiresIn   int      `json:"expires_in"`
	User        UserInfo `json:"user"`
}

// UserInfo represents user information in response
type UserInfo struct {
	ID        int64  `json:"id"`
	Nickname  string `json:"nickname"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// UserResponse represents the current user's profile
type UserResponse struct {
	ID             int64   `json:"id"`
	Provider       string  `json:"provider"`
	Nickname       string  `json:"nickname"`
	Name           string  `json:"name"`
	AvatarURL      string  `json:"avatar_url"`
	Email          string  `json:"email"`
	CreatedAt      string  `json:"created_at"`
	LastLoginAt    *string `json:"last_login_at"`
	ActiveSessions int64   `json:"active_sessions"`
}

// LogoutAllResponse reports mass-revocation counts
type LogoutAllResponse struct {
	AccessRevoked  int   `json:"access_revoked"`
	RefreshRevoked int64 `json:"refresh_revoked"`
}

// SuccessResponse represents a success response
type SuccessResponse struct {
	Message string `json:"message"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string      `json:"error"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}
