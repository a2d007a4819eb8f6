package service

import (
	"context"
	"net/http"

	"github.com/socialgate/auth-gateway/internal/domain"
)

// ProviderProfile is the already-verified identity a provider callback hands
// over. The OAuth handshake itself happens upstream; by the time this layer
// sees a profile it is trusted.
type ProviderProfile struct {
	Provider   string
	ProviderID string
	Nickname   string
	Name       string
	AvatarURL  string
	Email      string
}

// SessionResult is produced by login and refresh: a freshly signed access
// token plus the cookie carrying the refresh token.
type SessionResult struct {
	AccessToken string
	ExpiresIn   int
	User        *domain.User
	Cookie      *http.Cookie
}

// LogoutAllResult reports how many credentials a mass revocation touched.
type LogoutAllResult struct {
	AccessRevoked  int
	RefreshRevoked int64
	Cookie         *http.Cookie
}

// SessionService coordinates the token signer, the ephemeral access-token
// whitelist, and the durable refresh-token store across the session
// lifecycle.
type SessionService interface {
	// Login upserts the user for the provider identity and opens a session.
	Login(ctx context.Context, profile ProviderProfile, deviceInfo, ipAddress string) (*SessionResult, error)

	// Refresh rotates the presented refresh token and issues a new access
	// token. Reuse of an already-rotated token fails with
	// ErrInvalidOrExpiredToken.
	Refresh(ctx context.Context, refreshToken string) (*SessionResult, error)

	// Logout best-effort revokes the presented credentials. It never fails:
	// the returned cookie always clears the client's carrier.
	Logout(ctx context.Context, accessToken, refreshToken string) *http.Cookie

	// LogoutAll revokes every credential owned by the user in both stores.
	LogoutAll(ctx context.Context, userID int64) *LogoutAllResult

	// Withdraw soft-deletes the user and ends all of their sessions.
	Withdraw(ctx context.Context, userID int64) (*LogoutAllResult, error)

	// VerifyAccess checks both the token signature and its registry
	// liveness; either failing means the caller is unauthenticated.
	VerifyAccess(ctx context.Context, accessToken string) (*domain.TokenClaims, error)

	// GetUser returns the user's profile.
	GetUser(ctx context.Context, userID int64) (*domain.User, error)

	// ActiveSessions reports the number of live access tokens for the user.
	ActiveSessions(ctx context.Context, userID int64) int64
}
