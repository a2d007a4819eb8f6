package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/socialgate/auth-gateway/internal/dto"
	"github.com/socialgate/auth-gateway/internal/service"
)

const userIDKey = "user_id"

// AuthMiddleware validates the bearer access token and adds the caller's
// identity to the request context. A token must both carry a valid signature
// and be live in the registry whitelist.
func AuthMiddleware(sessions service.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
				Error:   "Unauthorized",
				Message: "Authorization header is required",
			})
			c.Abort()
			return
		}

		claims, err := sessions.VerifyAccess(c.Request.Context(), token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
				Error:   "Unauthorized",
				Message: "Invalid or expired token",
			})
			c.Abort()
			return
		}

		c.Set(userIDKey, claims.UserID)
		c.Set("nickname", claims.Nickname)
		c.Set("claims", claims)

		c.Next()
	}
}

// bearerToken extracts the token from an "Authorization: Bearer <token>"
// header, returning "" if the header is absent or malformed.
func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}

	return parts[1]
}

// currentUserID reads the authenticated user's ID set by AuthMiddleware.
func currentUserID(c *gin.Context) (int64, bool) {
	value, exists := c.Get(userIDKey)
	if !exists {
		return 0, false
	}

	userID, ok := value.(int64)
	return userID, ok
}
