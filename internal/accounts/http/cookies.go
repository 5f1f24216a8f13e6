package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/clipshare/internal/accounts/domain"
	"github.com/aussiebroadwan/clipshare/pkg/httpx"
)

const refreshCookieName = "refreshToken"

// CookieConfig controls the session cookies set on login and refresh.
type CookieConfig struct {
	// Secure should be true whenever the service is reached over HTTPS.
	Secure bool
	Domain string
}

func (c CookieConfig) cookie(name, value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   c.Domain,
		Expires:  expires,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (c CookieConfig) setSession(w http.ResponseWriter, pair domain.TokenPair) {
	http.SetCookie(w, c.cookie(httpx.AccessCookieName, pair.AccessToken, pair.AccessExpiresAt))
	http.SetCookie(w, c.cookie(refreshCookieName, pair.RefreshToken, pair.RefreshExpiresAt))
}

func (c CookieConfig) clearSession(w http.ResponseWriter) {
	for _, name := range []string{httpx.AccessCookieName, refreshCookieName} {
		ck := c.cookie(name, "", time.Unix(0, 0))
		ck.MaxAge = -1
		http.SetCookie(w, ck)
	}
}
