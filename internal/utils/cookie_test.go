package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeRefreshCookie_Development(t *testing.T) {
	cookie := EncodeRefreshCookie("tok-123", CookieSettings{MaxAge: 7 * 24 * time.Hour})

	assert.Equal(t, RefreshCookieName, cookie.Name)
	assert.Equal(t, "tok-123", cookie.Value)
	assert.Equal(t, "/", cookie.Path)
	assert.Equal(t, 604800, cookie.MaxAge)
	assert.True(t, cookie.HttpOnly)
	assert.False(t, cookie.Secure)
	// SameSite must be absent so cross-port local dev keeps sending the cookie.
	assert.Equal(t, http.SameSite(0), cookie.SameSite)
	assert.Empty(t, cookie.Domain)
}

func TestEncodeRefreshCookie_Production(t *testing.T) {
	cookie := EncodeRefreshCookie("tok-123", CookieSettings{
		Secure: true,
		Domain: ".example.com",
		MaxAge: time.Hour,
	})

	assert.True(t, cookie.Secure)
	assert.Equal(t, http.SameSiteNoneMode, cookie.SameSite)
	assert.Equal(t, ".example.com", cookie.Domain)
	assert.Equal(t, 3600, cookie.MaxAge)
}

func TestRefreshCookieRoundTrip(t *testing.T) {
	for _, settings := range []CookieSettings{
		{MaxAge: time.Hour},
		{Secure: true, MaxAge: time.Hour},
		{Secure: true, Domain: ".example.com", MaxAge: 7 * 24 * time.Hour},
	} {
		rec := httptest.NewRecorder()
		http.SetCookie(rec, EncodeRefreshCookie("opaque-refresh-value", settings))

		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil)
		req.Header.Set("Cookie", rec.Header().Get("Set-Cookie"))

		token, ok := DecodeRefreshCookie(req)
		require.True(t, ok)
		assert.Equal(t, "opaque-refresh-value", token)
	}
}

func TestDecodeRefreshCookie_Absent(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil)

	_, ok := DecodeRefreshCookie(req)
	assert.False(t, ok)
}

func TestClearRefreshCookie(t *testing.T) {
	cookie := ClearRefreshCookie(CookieSettings{Secure: true, Domain: ".example.com"})

	assert.Equal(t, RefreshCookieName, cookie.Name)
	assert.Empty(t, cookie.Value)
	assert.Less(t, cookie.MaxAge, 0)
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)
	assert.Equal(t, http.SameSiteNoneMode, cookie.SameSite)
}
