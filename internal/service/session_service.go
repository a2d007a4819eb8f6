package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/socialgate/auth-gateway/internal/domain"
	"github.com/socialgate/auth-gateway/internal/repository"
	"github.com/socialgate/auth-gateway/internal/utils"
	"go.uber.org/zap"
)

// ErrAccessTokenRevoked is returned by VerifyAccess when a cryptographically
// valid token is no longer present in the whitelist (logged out).
var ErrAccessTokenRevoked = errors.New("access token revoked")

// sessionService implements SessionService. The durable refresh store is the
// source of truth; the registry is an invalidatable accelerator, never the
// reverse.
type sessionService struct {
	userRepo       repository.UserRepository
	refreshStore   *RefreshTokenStore
	registry       *AccessTokenRegistry
	jwtManager     *utils.JWTManager
	cookieSettings utils.CookieSettings
	logger         *zap.Logger
}

// NewSessionService creates a new session service
func NewSessionService(
	userRepo repository.UserRepository,
	refreshStore *RefreshTokenStore,
	registry *AccessTokenRegistry,
	jwtManager *utils.JWTManager,
	cookieSettings utils.CookieSettings,
	logger *zap.Logger,
) SessionService {
	cookieSettings.MaxAge = refreshStore.Lifetime()

	return &sessionService{
		userRepo:       userRepo,
		refreshStore:   refreshStore,
		registry:       registry,
		jwtManager:     jwtManager,
		cookieSettings: cookieSettings,
		logger:         logger,
	}
}

// Login upserts the user for the provider identity and opens a session.
func (s *sessionService) Login(ctx context.Context, profile ProviderProfile, deviceInfo, ipAddress string) (*SessionResult, error) {
	user, err := s.upsertUser(ctx, profile)
	if err != nil {
		return nil, err
	}

	return s.openSession(ctx, user, optional(deviceInfo), optional(ipAddress))
}

func (s *sessionService) upsertUser(ctx context.Context, profile ProviderProfile) (*domain.User, error) {
	user, err := s.userRepo.GetByProvider(ctx, profile.Provider, profile.ProviderID)
	if err == nil {
		user.Nickname = profile.Nickname
		user.Name = profile.Name
		user.AvatarURL = profile.AvatarURL
		user.Email = profile.Email

		if err := s.userRepo.UpdateProfile(ctx, user); err != nil {
			return nil, fmt.Errorf("failed to update user profile: %w", err)
		}
		if err := s.userRepo.UpdateLastLogin(ctx, user.ID); err != nil {
			s.logger.Warn("failed to touch last login", zap.Int64("user_id", user.ID), zap.Error(err))
		}

		return user, nil
	}

	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up provider identity: %w", err)
	}

	user = &domain.User{
		Provider:   profile.Provider,
		ProviderID: profile.ProviderID,
		Nickname:   profile.Nickname,
		Name:       profile.Name,
		AvatarURL:  profile.AvatarURL,
		Email:      profile.Email,
		Enabled:    true,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// openSession mints the access token, registers it in the whitelist, and
// persists the refresh record. Registry failures are swallowed by the
// registry itself; a refresh-store failure aborts the login.
func (s *sessionService) openSession(ctx context.Context, user *domain.User, deviceInfo, ipAddress *string) (*SessionResult, error) {
	accessToken, err := s.jwtManager.Issue(user.ID, user.Nickname)
	if err != nil {
		return nil, fmt.Errorf("failed to issue access token: %w", err)
	}

	s.registry.Register(ctx, accessToken, user.ID, s.jwtManager.AccessTokenExpiry())

	record, err := s.refreshStore.Create(ctx, user.ID, deviceInfo, ipAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to persist refresh token: %w", err)
	}

	return &SessionResult{
		AccessToken: accessToken,
		ExpiresIn:   int(s.jwtManager.AccessTokenExpiry().Seconds()),
		User:        user,
		Cookie:      utils.EncodeRefreshCookie(record.Token, s.cookieSettings),
	}, nil
}

// Refresh rotates the presented refresh token. Ordering is create-then-revoke
// so a mid-flight cancellation can only leave two live tokens, never zero.
// The compare-and-set revoke of the old record is the rotation lock: losing
// it means a concurrent rotation won, and the locally created replacement is
// withdrawn.
func (s *sessionService) Refresh(ctx context.Context, refreshToken string) (*SessionResult, error) {
	record, err := s.refreshStore.FindValid(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidOrExpiredToken
		}
		return nil, fmt.Errorf("failed to look up refresh token: %w", err)
	}

	user, err := s.userRepo.GetByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Info("refresh token owner missing or deleted", zap.Int64("user_id", record.UserID))
			return nil, fmt.Errorf("%w: %w", ErrInvalidOrExpiredToken, ErrUserNotFound)
		}
		return nil, fmt.Errorf("failed to load refresh token owner: %w", err)
	}

	if !user.Enabled {
		return nil, ErrInvalidOrExpiredToken
	}

	accessToken, err := s.jwtManager.Issue(user.ID, user.Nickname)
	if err != nil {
		return nil, fmt.Errorf("failed to issue access token: %w", err)
	}

	next, err := s.refreshStore.Create(ctx, user.ID, record.DeviceInfo, record.IPAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to persist rotated refresh token: %w", err)
	}

	rotated, err := s.refreshStore.Revoke(ctx, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to revoke rotated refresh token: %w", err)
	}
	if !rotated {
		// A concurrent rotation already revoked the old record; withdraw the
		// replacement created above and fail the loser.
		if _, revokeErr := s.refreshStore.Revoke(ctx, next.Token); revokeErr != nil {
			s.logger.Warn("failed to withdraw losing rotation token", zap.Error(revokeErr))
		}
		return nil, ErrInvalidOrExpiredToken
	}

	s.registry.Register(ctx, accessToken, user.ID, s.jwtManager.AccessTokenExpiry())

	return &SessionResult{
		AccessToken: accessToken,
		ExpiresIn:   int(s.jwtManager.AccessTokenExpiry().Seconds()),
		User:        user,
		Cookie:      utils.EncodeRefreshCookie(next.Token, s.cookieSettings),
	}, nil
}

// Logout best-effort revokes both presented credentials and always returns a
// clearing cookie. Calling it twice is safe; the second call revokes nothing
// further.
func (s *sessionService) Logout(ctx context.Context, accessToken, refreshToken string) *http.Cookie {
	if accessToken != "" {
		s.registry.Revoke(ctx, accessToken)
	}

	if refreshToken != "" {
		if _, err := s.refreshStore.Revoke(ctx, refreshToken); err != nil {
			s.logger.Warn("logout: refresh token revoke failed", zap.Error(err))
		}
	}

	return utils.ClearRefreshCookie(s.cookieSettings)
}

// LogoutAll revokes every credential owned by the user in both stores. It
// never fails: partial revocation still yields a success with the counts
// actually achieved, and the client always gets a clearing cookie.
func (s *sessionService) LogoutAll(ctx context.Context, userID int64) *LogoutAllResult {
	accessRevoked := s.registry.RevokeAll(ctx, userID)

	refreshRevoked, err := s.refreshStore.RevokeAllForUser(ctx, userID)
	if err != nil {
		s.logger.Error("logout-all: refresh token revocation failed", zap.Int64("user_id", userID), zap.Error(err))
	}

	s.logger.Info("logout-all completed",
		zap.Int64("user_id", userID),
		zap.Int("access_revoked", accessRevoked),
		zap.Int64("refresh_revoked", refreshRevoked),
	)

	return &LogoutAllResult{
		AccessRevoked:  accessRevoked,
		RefreshRevoked: refreshRevoked,
		Cookie:         utils.ClearRefreshCookie(s.cookieSettings),
	}
}

// Withdraw soft-deletes the user and ends all of their sessions.
func (s *sessionService) Withdraw(ctx context.Context, userID int64) (*LogoutAllResult, error) {
	if err := s.userRepo.SoftDelete(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to soft-delete user: %w", err)
	}

	return s.LogoutAll(ctx, userID), nil
}

// VerifyAccess requires both a valid signature and registry liveness. The
// registry check is subject to its fail-open policy; the signature check
// never is.
func (s *sessionService) VerifyAccess(ctx context.Context, accessToken string) (*domain.TokenClaims, error) {
	claims, err := s.jwtManager.Verify(accessToken)
	if err != nil {
		return nil, err
	}

	if !s.registry.IsLive(ctx, accessToken) {
		return nil, ErrAccessTokenRevoked
	}

	return claims, nil
}

// GetUser returns the user's profile.
func (s *sessionService) GetUser(ctx context.Context, userID int64) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// ActiveSessions reports the number of live access tokens for the user.
func (s *sessionService) ActiveSessions(ctx context.Context, userID int64) int64 {
	return s.registry.ActiveCount(ctx, userID)
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
