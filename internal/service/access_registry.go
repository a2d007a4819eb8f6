package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/socialgate/auth-gateway/pkg/database"
	"go.uber.org/zap"
)

const (
	accessTokenKeyPrefix = "access_token:"
	userTokensKeyPrefix  = "user_tokens:"
)

// AccessTokenRegistry is the ephemeral whitelist for access tokens. Presence
// in the registry is necessary for a token to be treated as live; the JWT
// signature check is still performed independently by the caller.
//
// Key structure:
//   - access_token:{token} -> userID, TTL = token lifetime
//   - user_tokens:{userID} -> SET of tokens, TTL = 2x token lifetime
//
// Every operation swallows store failures: an unreachable Redis must never
// lock out active users or fail a login. When failOpen is set, IsLive reports
// unknown tokens as live during an outage, delegating correctness entirely to
// the signature check.
type AccessTokenRegistry struct {
	redis     *database.Redis
	logger    *zap.Logger
	failOpen  bool
	opTimeout time.Duration
}

// NewAccessTokenRegistry creates a new access token registry
func NewAccessTokenRegistry(redis *database.Redis, logger *zap.Logger, failOpen bool, opTimeout time.Duration) *AccessTokenRegistry {
	return &AccessTokenRegistry{
		redis:     redis,
		logger:    logger,
		failOpen:  failOpen,
		opTimeout: opTimeout,
	}
}

func (s *AccessTokenRegistry) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opTimeout)
}

// Register stores token -> userID with the given TTL and appends the token to
// the owner's set. The set's own expiry is pushed out to 2x the TTL so the
// index outlives its longest-lived member while entries age out individually.
func (s *AccessTokenRegistry) Register(ctx context.Context, token string, userID int64, ttl time.Duration) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tokenKey := accessTokenKeyPrefix + token
	userKey := userTokensKey(userID)

	if err := s.redis.Client.Set(ctx, tokenKey, strconv.FormatInt(userID, 10), ttl).Err(); err != nil {
		s.logger.Warn("access token registry: register failed", zap.Int64("user_id", userID), zap.Error(err))
		return
	}

	if err := s.redis.Client.SAdd(ctx, userKey, token).Err(); err != nil {
		s.logger.Warn("access token registry: set append failed", zap.Int64("user_id", userID), zap.Error(err))
		return
	}

	if err := s.redis.Client.Expire(ctx, userKey, 2*ttl).Err(); err != nil {
		s.logger.Warn("access token registry: set expire failed", zap.Int64("user_id", userID), zap.Error(err))
	}
}

// IsLive reports whether the token is present in the whitelist. On store
// failure it returns the configured degradation policy (true when failing
// open) so an outage does not log out every active user.
func (s *AccessTokenRegistry) IsLive(ctx context.Context, token string) bool {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	exists, err := s.redis.Client.Exists(ctx, accessTokenKeyPrefix+token).Result()
	if err != nil {
		s.logger.Warn("access token registry: liveness check failed", zap.Error(err))
		return s.failOpen
	}

	return exists > 0
}

// ResolveSubject returns the user ID owning the token, if registered.
func (s *AccessTokenRegistry) ResolveSubject(ctx context.Context, token string) (int64, bool) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	value, err := s.redis.Client.Get(ctx, accessTokenKeyPrefix+token).Result()
	if err != nil {
		return 0, false
	}

	userID, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		s.logger.Warn("access token registry: corrupt subject entry", zap.Error(err))
		return 0, false
	}

	return userID, true
}

// Revoke removes the token entry and drops the token from its owner's set.
// The owner lookup runs first; if it fails the token entry is still removed.
func (s *AccessTokenRegistry) Revoke(ctx context.Context, token string) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tokenKey := accessTokenKeyPrefix + token

	owner, ownerErr := s.redis.Client.Get(ctx, tokenKey).Result()

	if err := s.redis.Client.Del(ctx, tokenKey).Err(); err != nil {
		s.logger.Warn("access token registry: revoke failed", zap.Error(err))
		return
	}

	if ownerErr == nil && owner != "" {
		if err := s.redis.Client.SRem(ctx, userTokensKeyPrefix+owner, token).Err(); err != nil {
			s.logger.Warn("access token registry: set removal failed", zap.Error(err))
		}
	}
}

// RevokeAll deletes every registered token for the user and then the set
// itself, returning the number of entries removed. A crash mid-iteration
// leaves removed entries removed; the loop is safely re-runnable.
func (s *AccessTokenRegistry) RevokeAll(ctx context.Context, userID int64) int {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	userKey := userTokensKey(userID)

	tokens, err := s.redis.Client.SMembers(ctx, userKey).Result()
	if err != nil {
		s.logger.Warn("access token registry: revoke-all listing failed", zap.Int64("user_id", userID), zap.Error(err))
		return 0
	}

	if len(tokens) == 0 {
		return 0
	}

	count := 0
	for _, token := range tokens {
		if err := s.redis.Client.Del(ctx, accessTokenKeyPrefix+token).Err(); err != nil {
			s.logger.Warn("access token registry: revoke-all entry delete failed", zap.Int64("user_id", userID), zap.Error(err))
			continue
		}
		count++
	}

	if err := s.redis.Client.Del(ctx, userKey).Err(); err != nil {
		s.logger.Warn("access token registry: revoke-all set delete failed", zap.Int64("user_id", userID), zap.Error(err))
	}

	return count
}

// ActiveCount returns the size of the user's token set, treating absent as 0.
func (s *AccessTokenRegistry) ActiveCount(ctx context.Context, userID int64) int64 {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	count, err := s.redis.Client.SCard(ctx, userTokensKey(userID)).Result()
	if err != nil {
		s.logger.Warn("access token registry: active count failed", zap.Int64("user_id", userID), zap.Error(err))
		return 0
	}

	return count
}

func userTokensKey(userID int64) string {
	return fmt.Sprintf("%s%d", userTokensKeyPrefix, userID)
}
