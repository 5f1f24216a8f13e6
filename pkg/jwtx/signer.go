package jwtx

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// HS256 signs and verifies tokens with a single shared secret. Access and
// refresh tokens each get their own instance so a token minted for one
// purpose never verifies for the other.
type HS256 struct {
	secret []byte
	issuer string
	leeway time.Duration
}

// NewHS256 creates an HS256 signer/verifier. An empty issuer disables the
// iss check on verification.
func NewHS256(secret []byte, issuer string, leeway time.Duration) (*HS256, error) {
	if len(secret) == 0 {
		return nil, errors.New("jwtx: empty HS256 secret")
	}
	return &HS256{
		secret: append([]byte(nil), secret...),
		issuer: issuer,
		leeway: leeway,
	}, nil
}

func (h *HS256) Alg() string { return jwt.SigningMethodHS256.Alg() }

// Sign turns claims into a compact JWS.
func (h *HS256) Sign(claims jwt.Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.secret)
}

// VerifyAccess validates an access token and returns its claims.
func (h *HS256) VerifyAccess(token string) (AccessClaims, error) {
	var c AccessClaims
	if err := h.parse(token, &c); err != nil {
		return AccessClaims{}, err
	}
	return c, nil
}

// VerifyRefresh validates a refresh token and returns its claims.
func (h *HS256) VerifyRefresh(token string) (RefreshClaims, error) {
	var c RefreshClaims
	if err := h.parse(token, &c); err != nil {
		return RefreshClaims{}, err
	}
	return c, nil
}

func (h *HS256) parse(token string, claims jwt.Claims) error {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(h.leeway),
	}
	if h.issuer != "" {
		opts = append(opts, jwt.WithIssuer(h.issuer))
	}

	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return h.secret, nil
	}, opts...)
	if err != nil {
		return mapParseError(err)
	}
	if !parsed.Valid {
		return ErrInvalidClaim
	}

	if sub, err := claims.GetSubject(); err != nil || sub == "" {
		return ErrInvalidClaim
	}
	return nil
}
