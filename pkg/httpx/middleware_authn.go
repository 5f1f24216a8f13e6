package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/clipshare/pkg/jwtx"
	"github.com/aussiebroadwan/clipshare/pkg/slogx"
)

// AccessCookieName is the cookie browsers present the access token in.
const AccessCookieName = "accessToken"

// AccessVerifier validates access tokens.
type AccessVerifier interface {
	VerifyAccessToken(token string) (jwtx.AccessClaims, error)
}

// AuthnMiddleware requires a valid access token, read from the accessToken
// cookie or else from an "Authorization: Bearer" header. The subject is put
// into the request context for downstream handlers.
func AuthnMiddleware(v AccessVerifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			raw := accessTokenFromRequest(r)
			if raw == "" {
				writeBearerError(w, "unauthorized request")
				return
			}

			claims, err := v.VerifyAccessToken(raw)
			if err != nil {
				log.Warn("access token rejected", "err", err)
				writeBearerError(w, "invalid access token")
				return
			}

			ctx = contextWithAuth(ctx, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func accessTokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(AccessCookieName); err == nil && c.Value != "" {
		return c.Value
	}

	authz := r.Header.Get("Authorization")
	if !strings.HasPrefix(authz, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
}

func contextWithAuth(ctx context.Context, c jwtx.AccessClaims) context.Context {
	ctx = context.WithValue(ctx, CtxKeyUserID, c.Subject)
	ctx = context.WithValue(ctx, CtxKeyClaims, c)
	return ctx
}

// RFC 6750 challenge plus the JSON error envelope.
func writeBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	WriteError(w, http.StatusUnauthorized, desc)
}
