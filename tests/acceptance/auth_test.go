package acceptance

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/socialgate/auth-gateway/internal/dto"
)

func callbackRequest(nickname string) dto.CallbackRequest {
	return dto.CallbackRequest{
		Provider:   "kakao",
		ProviderID: "provider-" + nickname,
		Nickname:   nickname,
		Name:       "Test User",
		AvatarURL:  "https://cdn.example.com/" + nickname + ".png",
		Email:      nickname + "@example.com",
	}
}

// login runs the provider callback and returns the parsed response together
// with the refresh cookie the server set.
func (s *Suite) login(nickname string) (dto.AuthResponse, *http.Cookie) {
	body, _ := json.Marshal(callbackRequest(nickname))

	resp, err := http.Post(
		s.BaseURL+"/api/v1/auth/callback",
		"application/json",
		bytes.NewBuffer(body),
	)
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var authResp dto.AuthResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&authResp))

	return authResp, s.refreshCookie(resp)
}

func (s *Suite) refreshCookie(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == "refresh_token" {
			return c
		}
	}
	return nil
}

func (s *Suite) doRefresh(cookie *http.Cookie) *http.Response {
	req, err := http.NewRequest(http.MethodPost, s.BaseURL+"/api/v1/auth/refresh", nil)
	s.Require().NoError(err)
	req.AddCookie(cookie)

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	return resp
}

func (s *Suite) authorizedRequest(method, path, accessToken string) *http.Response {
	req, err := http.NewRequest(method, s.BaseURL+path, nil)
	s.Require().NoError(err)
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	return resp
}

func (s *Suite) TestCallback_Success() {
	authResp, cookie := s.login("alice")

	s.NotEmpty(authResp.AccessToken)
	s.Equal("Bearer", authResp.TokenType)
	s.NotZero(authResp.ExpiresIn)
	s.Equal("alice", authResp.User.Nickname)
	s.NotZero(authResp.User.ID)

	s.Require().NotNil(cookie, "Should have refresh token cookie")
	s.NotEmpty(cookie.Value)
	s.True(cookie.HttpOnly)
}

func (s *Suite) TestCallback_UpsertsExistingUser() {
	first, _ := s.login("bob")
	second, _ := s.login("bob")

	s.Equal(first.User.ID, second.User.ID, "Same provider identity must map to one user")
}

func (s *Suite) TestCallback_MissingFields() {
	body, _ := json.Marshal(map[string]string{"provider": "kakao"})

	resp, err := http.Post(
		s.BaseURL+"/api/v1/auth/callback",
		"application/json",
		bytes.NewBuffer(body),
	)
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *Suite) TestRefresh_RotatesToken() {
	_, cookie := s.login("carol")

	resp := s.doRefresh(cookie)
	defer resp.Body.Close()

	s.Equal(http.StatusOK, resp.StatusCode)

	var authResp dto.AuthResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&authResp))
	s.NotEmpty(authResp.AccessToken)

	rotated := s.refreshCookie(resp)
	s.Require().NotNil(rotated)
	s.NotEqual(cookie.Value, rotated.Value, "Refresh must rotate the cookie value")
}

func (s *Suite) TestRefresh_ReplayedTokenRejected() {
	_, cookie := s.login("dave")

	first := s.doRefresh(cookie)
	first.Body.Close()
	s.Require().Equal(http.StatusOK, first.StatusCode)

	replay := s.doRefresh(cookie)
	defer replay.Body.Close()

	s.Equal(http.StatusUnauthorized, replay.StatusCode)

	cleared := s.refreshCookie(replay)
	s.Require().NotNil(cleared, "Rejection must clear the cookie")
	s.Empty(cleared.Value)
}

func (s *Suite) TestRefresh_NoCookie() {
	resp, err := http.Post(s.BaseURL+"/api/v1/auth/refresh", "application/json", nil)
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *Suite) TestLogout_RevokesBothTokens() {
	authResp, cookie := s.login("erin")

	req, err := http.NewRequest(http.MethodPost, s.BaseURL+"/api/v1/auth/logout", nil)
	s.Require().NoError(err)
	req.Header.Set("Authorization", "Bearer "+authResp.AccessToken)
	req.AddCookie(cookie)

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)

	// Access token no longer usable.
	me := s.authorizedRequest(http.MethodGet, "/api/v1/auth/me", authResp.AccessToken)
	me.Body.Close()
	s.Equal(http.StatusUnauthorized, me.StatusCode)

	// Refresh token no longer usable.
	refresh := s.doRefresh(cookie)
	refresh.Body.Close()
	s.Equal(http.StatusUnauthorized, refresh.StatusCode)
}

func (s *Suite) TestLogout_Idempotent() {
	for i := 0; i < 2; i++ {
		resp, err := http.Post(s.BaseURL+"/api/v1/auth/logout", "application/json", nil)
		s.Require().NoError(err)
		resp.Body.Close()
		s.Equal(http.StatusOK, resp.StatusCode, "Logout with no credentials still succeeds")
	}
}

func (s *Suite) TestLogoutAll_EndsEverySession() {
	first, firstCookie := s.login("frank")
	second, secondCookie := s.login("frank")

	resp := s.authorizedRequest(http.MethodPost, "/api/v1/auth/logout-all", second.AccessToken)
	defer resp.Body.Close()
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var result dto.LogoutAllResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&result))
	s.Equal(2, result.AccessRevoked)
	s.EqualValues(2, result.RefreshRevoked)

	for _, token := range []string{first.AccessToken, second.AccessToken} {
		me := s.authorizedRequest(http.MethodGet, "/api/v1/auth/me", token)
		me.Body.Close()
		s.Equal(http.StatusUnauthorized, me.StatusCode)
	}

	for _, cookie := range []*http.Cookie{firstCookie, secondCookie} {
		refresh := s.doRefresh(cookie)
		refresh.Body.Close()
		s.Equal(http.StatusUnauthorized, refresh.StatusCode)
	}
}

func (s *Suite) TestGetMe_ReportsActiveSessions() {
	s.login("grace")
	authResp, _ := s.login("grace")

	resp := s.authorizedRequest(http.MethodGet, "/api/v1/auth/me", authResp.AccessToken)
	defer resp.Body.Close()
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var user dto.UserResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&user))

	s.Equal(authResp.User.ID, user.ID)
	s.Equal("kakao", user.Provider)
	s.Equal("grace", user.Nickname)
	s.EqualValues(2, user.ActiveSessions)
	s.NotNil(user.LastLoginAt)
}

func (s *Suite) TestGetMe_Unauthorized() {
	resp := s.authorizedRequest(http.MethodGet, "/api/v1/auth/me", "not-a-token")
	defer resp.Body.Close()

	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *Suite) TestWithdraw_DeletesAccountAndSessions() {
	authResp, cookie := s.login("heidi")

	resp := s.authorizedRequest(http.MethodDelete, "/api/v1/auth/me", authResp.AccessToken)
	resp.Body.Close()
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	refresh := s.doRefresh(cookie)
	refresh.Body.Close()
	s.Equal(http.StatusUnauthorized, refresh.StatusCode)

	// A fresh callback for the same provider identity creates a new account.
	again, _ := s.login("heidi")
	s.NotEqual(authResp.User.ID, again.User.ID)
}
