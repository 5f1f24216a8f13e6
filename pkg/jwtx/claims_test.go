package jwtx_test

import (
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/clipshare/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func newHS256(t *testing.T, secret string) *jwtx.HS256 {
	t.Helper()
	h, err := jwtx.NewHS256([]byte(secret), "clipshare", 0)
	require.NoError(t, err)
	return h
}

func TestHS256_AccessRoundTrip(t *testing.T) {
	h := newHS256(t, "access-secret-0123456789abcdef")
	now := time.Now()

	claims := jwtx.NewAccessClaims("01HQ7T3Z1MZ0JQ3M6MZQ1FQ3ZV", "alice", "alice@example.com", "Alice A",
		time.Minute, "clipshare", now)
	token, err := h.Sign(claims)
	require.NoError(t, err)

	got, err := h.VerifyAccess(token)
	require.NoError(t, err)
	require.Equal(t, "01HQ7T3Z1MZ0JQ3M6MZQ1FQ3ZV", got.Subject)
	require.Equal(t, "alice", got.Username)
	require.Equal(t, "alice@example.com", got.Email)
	require.Equal(t, "Alice A", got.FullName)
	require.NotEmpty(t, got.ID)
}

func TestHS256_RefreshRoundTrip(t *testing.T) {
	h := newHS256(t, "refresh-secret-0123456789abcdef")

	token, err := h.Sign(jwtx.NewRefreshClaims("user-1", time.Hour, "clipshare", time.Now()))
	require.NoError(t, err)

	got, err := h.VerifyRefresh(token)
	require.NoError(t, err)
	require.Equal(t, "user-1", got.Subject)
}

func TestHS256_SameSecondTokensDiffer(t *testing.T) {
	h := newHS256(t, "refresh-secret-0123456789abcdef")
	now := time.Now()

	a, err := h.Sign(jwtx.NewRefreshClaims("user-1", time.Hour, "clipshare", now))
	require.NoError(t, err)
	b, err := h.Sign(jwtx.NewRefreshClaims("user-1", time.Hour, "clipshare", now))
	require.NoError(t, err)

	require.NotEqual(t, a, b)
}

func TestHS256_Failures(t *testing.T) {
	access := newHS256(t, "access-secret-0123456789abcdef")
	refresh := newHS256(t, "refresh-secret-0123456789abcdef")
	now := time.Now()

	t.Run("wrong secret", func(t *testing.T) {
		token, err := access.Sign(jwtx.NewRefreshClaims("user-1", time.Hour, "clipshare", now))
		require.NoError(t, err)

		_, err = refresh.VerifyRefresh(token)
		require.ErrorIs(t, err, jwtx.ErrInvalidSig)
	})

	t.Run("expired", func(t *testing.T) {
		token, err := refresh.Sign(jwtx.NewRefreshClaims("user-1", time.Minute, "clipshare", now.Add(-time.Hour)))
		require.NoError(t, err)

		_, err = refresh.VerifyRefresh(token)
		require.ErrorIs(t, err, jwtx.ErrExpired)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := refresh.VerifyRefresh("not-a-jwt")
		require.ErrorIs(t, err, jwtx.ErrMalformed)
	})

	t.Run("tampered payload", func(t *testing.T) {
		token, err := access.Sign(jwtx.NewAccessClaims("user-1", "alice", "a@example.com", "A", time.Hour, "clipshare", now))
		require.NoError(t, err)

		parts := strings.Split(token, ".")
		other, err := access.Sign(jwtx.NewAccessClaims("user-2", "mallory", "m@example.com", "M", time.Hour, "clipshare", now))
		require.NoError(t, err)
		forged := parts[0] + "." + strings.Split(other, ".")[1] + "." + parts[2]

		_, err = access.VerifyAccess(forged)
		require.ErrorIs(t, err, jwtx.ErrInvalidSig)
	})

	t.Run("alg none", func(t *testing.T) {
		unsigned := jwt.NewWithClaims(jwt.SigningMethodNone,
			jwtx.NewRefreshClaims("user-1", time.Hour, "clipshare", now))
		token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = refresh.VerifyRefresh(token)
		require.Error(t, err)
	})

	t.Run("issuer mismatch", func(t *testing.T) {
		token, err := refresh.Sign(jwtx.NewRefreshClaims("user-1", time.Hour, "someone-else", now))
		require.NoError(t, err)

		_, err = refresh.VerifyRefresh(token)
		require.ErrorIs(t, err, jwtx.ErrIssuer)
	})

	t.Run("missing subject", func(t *testing.T) {
		token, err := refresh.Sign(jwtx.NewRefreshClaims("", time.Hour, "clipshare", now))
		require.NoError(t, err)

		_, err = refresh.VerifyRefresh(token)
		require.ErrorIs(t, err, jwtx.ErrInvalidClaim)
	})
}

func TestNewHS256_RejectsEmptySecret(t *testing.T) {
	_, err := jwtx.NewHS256(nil, "clipshare", 0)
	require.Error(t, err)
}
