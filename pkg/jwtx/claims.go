package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default token TTL constants. Access tokens are short-lived and refresh
// tokens long-lived; both can be overridden per deployment.
const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// AccessClaims are carried by access tokens. The subject is the user id; the
// profile fields let resource handlers avoid a store lookup.
type AccessClaims struct {
	jwt.RegisteredClaims

	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	FullName string `json:"fullName,omitempty"`
}

// RefreshClaims are carried by refresh tokens and identify only the user.
type RefreshClaims struct {
	jwt.RegisteredClaims
}

// NewAccessClaims builds minimally-correct access claims.
func NewAccessClaims(
	subject, username, email, fullName string,
	ttl time.Duration,
	issuer string,
	now time.Time,
) AccessClaims {
	return AccessClaims{
		RegisteredClaims: registered(subject, ttl, issuer, now),
		Username:         username,
		Email:            email,
		FullName:         fullName,
	}
}

// NewRefreshClaims builds refresh claims for subject.
func NewRefreshClaims(subject string, ttl time.Duration, issuer string, now time.Time) RefreshClaims {
	return RefreshClaims{RegisteredClaims: registered(subject, ttl, issuer, now)}
}

func registered(subject string, ttl time.Duration, issuer string, now time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        NewJTI(),
	}
}

// NewJTI returns a URL-safe random identifier for the "jti" claim. Two
// tokens minted for the same user in the same second still differ.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}
