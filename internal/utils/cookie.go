package utils

import (
	"net/http"
	"time"
)

// RefreshCookieName is the carrier for the opaque refresh token. The value is
// never a signed token and is never sent as a bearer header.
const RefreshCookieName = "refresh_token"

// CookieSettings describes the deployment-dependent cookie attributes.
// Secure=true implies SameSite=None (the cookie crosses origins over HTTPS);
// Secure=false omits SameSite so cross-port local setups still send it.
type CookieSettings struct {
	Secure bool
	Domain string
	MaxAge time.Duration
}

// EncodeRefreshCookie builds the Set-Cookie attribute bundle carrying the
// refresh token. HttpOnly is always on.
func EncodeRefreshCookie(token string, settings CookieSettings) *http.Cookie {
	cookie := &http.Cookie{
		Name:     RefreshCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(settings.MaxAge.Seconds()),
		HttpOnly: true,
	}

	if settings.Secure {
		cookie.Secure = true
		cookie.SameSite = http.SameSiteNoneMode
	}

	if settings.Domain != "" {
		cookie.Domain = settings.Domain
	}

	return cookie
}

// DecodeRefreshCookie extracts the refresh token from the request, if present.
func DecodeRefreshCookie(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(RefreshCookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

// ClearRefreshCookie builds the same attribute shape as EncodeRefreshCookie
// but with an empty value and immediate expiry, forcing the client to drop
// the cookie.
func ClearRefreshCookie(settings CookieSettings) *http.Cookie {
	cookie := EncodeRefreshCookie("", settings)
	cookie.MaxAge = -1
	return cookie
}
