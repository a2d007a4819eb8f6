package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/socialgate/auth-gateway/internal/domain"
	"github.com/socialgate/auth-gateway/internal/dto"
	"github.com/socialgate/auth-gateway/internal/service"
	"github.com/socialgate/auth-gateway/internal/utils"
)

// AuthHandler handles session lifecycle requests
type AuthHandler struct {
	sessions service.SessionService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(sessions service.SessionService) *AuthHandler {
	return &AuthHandler{
		sessions: sessions,
	}
}

// Callback handles a verified OAuth provider callback
// @Summary Complete a provider login
// @Description Upsert the user for the provider identity and open a session
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.CallbackRequest true "Verified provider profile"
// @Success 200 {object} dto.AuthResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /auth/callback [post]
func (h *AuthHandler) Callback(c *gin.Context) {
	var req dto.CallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Validation failed",
			Message: err.Error(),
		})
		return
	}

	profile := service.ProviderProfile{
		Provider:   req.Provider,
		ProviderID: req.ProviderID,
		Nickname:   req.Nickname,
		Name:       req.Name,
		AvatarURL:  req.AvatarURL,
		Email:      req.Email,
	}

	result, err := h.sessions.Login(c.Request.Context(), profile, c.Request.UserAgent(), c.ClientIP())
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "Internal server error",
			Message: "Login failed",
		})
		return
	}

	http.SetCookie(c.Writer, result.Cookie)
	c.JSON(http.StatusOK, authResponse(result))
}

// Refresh handles token refresh
// @Summary Refresh tokens
// @Description Rotate the refresh token and issue a new access token
// @Tags auth
// @Produce json
// @Success 200 {object} dto.AuthResponse
// @Failure 401 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	refreshToken, ok := utils.DecodeRefreshCookie(c.Request)
	if !ok {
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
			Error:   "Unauthorized",
			Message: "Refresh token not found",
		})
		return
	}

	result, err := h.sessions.Refresh(c.Request.Context(), refreshToken)
	if err != nil {
		if errors.Is(err, service.ErrInvalidOrExpiredToken) {
			// The presented token is dead; make the client forget it.
			http.SetCookie(c.Writer, h.sessions.Logout(c.Request.Context(), "", ""))
			c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
				Error:   "Unauthorized",
				Message: "Invalid or expired refresh token",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "Internal server error",
			Message: "Token refresh failed",
		})
		return
	}

	http.SetCookie(c.Writer, result.Cookie)
	c.JSON(http.StatusOK, authResponse(result))
}

// Logout handles user logout
// @Summary Logout
// @Description Revoke the presented tokens; always succeeds and clears the cookie
// @Tags auth
// @Produce json
// @Success 200 {object} dto.SuccessResponse
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	accessToken := bearerToken(c)
	refreshToken, _ := utils.DecodeRefreshCookie(c.Request)

	cookie := h.sessions.Logout(c.Request.Context(), accessToken, refreshToken)
	http.SetCookie(c.Writer, cookie)

	c.JSON(http.StatusOK, dto.SuccessResponse{
		Message: "Logged out successfully",
	})
}

// LogoutAll handles logout from every device
// @Summary Logout everywhere
// @Description Revoke every access and refresh token owned by the user
// @Tags auth
// @Security BearerAuth
// @Produce json
// @Success 200 {object} dto.LogoutAllResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /auth/logout-all [post]
func (h *AuthHandler) LogoutAll(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
			Error:   "Unauthorized",
			Message: "User ID not found in context",
		})
		return
	}

	result := h.sessions.LogoutAll(c.Request.Context(), userID)
	http.SetCookie(c.Writer, result.Cookie)

	c.JSON(http.StatusOK, dto.LogoutAllResponse{
		AccessRevoked:  result.AccessRevoked,
		RefreshRevoked: result.RefreshRevoked,
	})
}

// GetMe handles getting current user profile
// @Summary Get current user profile
// @Tags auth
// @Security BearerAuth
// @Produce json
// @Success 200 {object} dto.UserResponse
// @Failure 401 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /auth/me [get]
func (h *AuthHandler) GetMe(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
			Error:   "Unauthorized",
			Message: "User ID not found in context",
		})
		return
	}

	user, err := h.sessions.GetUser(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
				Error:   "Unauthorized",
				Message: "User not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "Internal server error",
			Message: "Failed to load profile",
		})
		return
	}

	c.JSON(http.StatusOK, userResponse(user, h.sessions.ActiveSessions(c.Request.Context(), userID)))
}

// Withdraw handles account deletion
// @Summary Delete the current account
// @Description Soft-delete the user and end every session
// @Tags auth
// @Security BearerAuth
// @Produce json
// @Success 200 {object} dto.LogoutAllResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /auth/me [delete]
func (h *AuthHandler) Withdraw(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
			Error:   "Unauthorized",
			Message: "User ID not found in context",
		})
		return
	}

	result, err := h.sessions.Withdraw(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
				Error:   "Unauthorized",
				Message: "User not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "Internal server error",
			Message: "Account deletion failed",
		})
		return
	}

	http.SetCookie(c.Writer, result.Cookie)
	c.JSON(http.StatusOK, dto.LogoutAllResponse{
		AccessRevoked:  result.AccessRevoked,
		RefreshRevoked: result.RefreshRevoked,
	})
}

func authResponse(result *service.SessionResult) dto.AuthResponse {
	return dto.AuthResponse{
		AccessToken: result.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   result.ExpiresIn,
		User: dto.UserInfo{
			ID:        result.User.ID,
			Nickname:  result.User.Nickname,
			AvatarURL: result.User.AvatarURL,
		},
	}
}

func userResponse(user *domain.User, activeSessions int64) dto.UserResponse {
	response := dto.UserResponse{
		ID:             user.ID,
		Provider:       user.Provider,
		Nickname:       user.Nickname,
		Name:           user.Name,
		AvatarURL:      user.AvatarURL,
		Email:          user.Email,
		CreatedAt:      user.CreatedAt.Format(time.RFC3339),
		ActiveSessions: activeSessions,
	}

	if user.LastLoginAt != nil {
		lastLogin := user.LastLoginAt.Format(time.RFC3339)
		response.LastLoginAt = &lastLogin
	}

	return response
}
