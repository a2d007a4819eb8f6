package utils

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/socialgate/auth-gateway/internal/domain"
)

// Access-token verification errors. Verification is a pure cryptographic
// check: it never consults the whitelist registry.
var (
	ErrTokenMalformed = errors.New("token is malformed")
	ErrTokenSignature = errors.New("token signature is invalid")
	ErrTokenExpired   = errors.New("token is expired")
)

// minKeyLen is the minimum HMAC-SHA256 key size in bytes. Shorter configured
// secrets are expanded with a SHA-256 digest instead of being used directly.
const minKeyLen = 32

// JWTManager issues and verifies signed access tokens
type JWTManager struct {
	key               []byte
	accessTokenExpiry time.Duration
}

// NewJWTManager creates a new JWT manager
func NewJWTManager(secret string, accessTokenExpiry time.Duration) *JWTManager {
	return &JWTManager{
		key:               deriveKey(secret),
		accessTokenExpiry: accessTokenExpiry,
	}
}

func deriveKey(secret string) []byte {
	keyBytes := []byte(secret)
	if len(keyBytes) < minKeyLen {
		sum := sha256.Sum256(keyBytes)
		return sum[:]
	}
	return keyBytes
}

// Issue generates a signed access token for the given user. The user ID is
// the primary subject claim; the nickname rides along for display purposes.
// The jti keeps concurrent same-second tokens distinct, which the whitelist
// registry relies on to count sessions.
func (j *JWTManager) Issue(userID int64, nickname string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":      strconv.FormatInt(userID, 10),
		"nickname": nickname,
		"jti":      uuid.New().String(),
		"iat":      now.Unix(),
		"exp":      now.Add(j.accessTokenExpiry).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(j.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// Verify parses and validates signature and expiry in one step.
func (j *JWTManager) Verify(tokenString string) (*domain.TokenClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.key, nil
	})

	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrTokenSignature
		default:
			return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
		}
	}

	if !token.Valid {
		return nil, ErrTokenSignature
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrTokenMalformed
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return nil, fmt.Errorf("%w: missing sub claim", ErrTokenMalformed)
	}

	userID, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: non-numeric sub claim", ErrTokenMalformed)
	}

	nickname, _ := claims["nickname"].(string)

	exp, ok := claims["exp"].(float64)
	if !ok {
		return nil, fmt.Errorf("%w: missing exp claim", ErrTokenMalformed)
	}

	iat, ok := claims["iat"].(float64)
	if !ok {
		return nil, fmt.Errorf("%w: missing iat claim", ErrTokenMalformed)
	}

	return &domain.TokenClaims{
		UserID:   userID,
		Nickname: nickname,
		Exp:      int64(exp),
		Iat:      int64(iat),
	}, nil
}

// IsValid is a boolean wrapper for callers that only need a yes/no answer.
func (j *JWTManager) IsValid(tokenString string) bool {
	_, err := j.Verify(tokenString)
	return err == nil
}

// RemainingLifetime returns max(0, expiry-now). Parse failures yield 0 so
// best-effort callers never have to handle an error.
func (j *JWTManager) RemainingLifetime(tokenString string) time.Duration {
	claims, err := j.Verify(tokenString)
	if err != nil {
		return 0
	}

	remaining := time.Until(time.Unix(claims.Exp, 0))
	if remaining < 0 {
		return 0
	}
	return remaining
}

// AccessTokenExpiry returns the configured access token lifetime.
func (j *JWTManager) AccessTokenExpiry() time.Duration {
	return j.accessTokenExpiry
}
