package auth

import (
	"net/http"
	"time"
)

const (
	// RefreshCookieName is the cookie the refresh token travels in.
	RefreshCookieName = "refresh_token"
	// RefreshTokenTTL is the lifetime of refresh tokens and of their cookie.
	RefreshTokenTTL = 24 * time.Hour
)

// RefreshCookie builds the HttpOnly cookie that carries a refresh token.
// Max-Age is always RefreshTokenTTL.
func RefreshCookie(token string, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     RefreshCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(RefreshTokenTTL.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// ClearRefreshCookie expires the refresh cookie on the client.
func ClearRefreshCookie(secure bool) *http.Cookie {
	c := RefreshCookie("", secure)
	c.MaxAge = -1
	return c
}

// RefreshTokenFromHeader reads the refresh cookie out of request headers.
func RefreshTokenFromHeader(h http.Header) string {
	c, err := (&http.Request{Header: h}).Cookie(RefreshCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}
