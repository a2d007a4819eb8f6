package domain

import "time"

// TokenClaims represents the claims carried by a signed access token.
type TokenClaims struct {
	UserID   int64  `json:"user_id"`
	Nickname string `json:"nickname"`
	Exp      int64  `json:"exp"`
	Iat      int64  `json:"iat"`
}

// IsExpired checks if the token is expired.
func (tc TokenClaims) IsExpired() bool {
	return time.Now().Unix() > tc.Exp
}
