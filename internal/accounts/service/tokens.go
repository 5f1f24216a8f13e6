package service

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/clipshare/internal/accounts/domain"
	"github.com/aussiebroadwan/clipshare/pkg/jwtx"
)

// TokenConfig holds the two independent signing configurations. Access and
// refresh secrets must differ so neither token type verifies as the other.
type TokenConfig struct {
	Issuer        string
	AccessSecret  []byte
	AccessTTL     time.Duration
	RefreshSecret []byte
	RefreshTTL    time.Duration
	Leeway        time.Duration
}

func (c TokenConfig) Validate() error {
	switch {
	case len(c.AccessSecret) == 0:
		return errors.New("access token secret is required")
	case len(c.RefreshSecret) == 0:
		return errors.New("refresh token secret is required")
	case bytes.Equal(c.AccessSecret, c.RefreshSecret):
		return errors.New("access and refresh token secrets must differ")
	case c.AccessTTL < 0 || c.RefreshTTL < 0:
		return errors.New("token ttls must not be negative")
	}
	return nil
}

type TokenIssuer struct {
	access     *jwtx.HS256
	refresh    *jwtx.HS256
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration

	// Clock defaults to time.Now. Tests move it to mint expired tokens.
	Clock func() time.Time
}

func NewTokenIssuer(cfg TokenConfig) (*TokenIssuer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.AccessTTL == 0 {
		cfg.AccessTTL = jwtx.DefaultAccessTokenTTL
	}
	if cfg.RefreshTTL == 0 {
		cfg.RefreshTTL = jwtx.DefaultRefreshTokenTTL
	}

	access, err := jwtx.NewHS256(cfg.AccessSecret, cfg.Issuer, cfg.Leeway)
	if err != nil {
		return nil, fmt.Errorf("access signer: %w", err)
	}
	refresh, err := jwtx.NewHS256(cfg.RefreshSecret, cfg.Issuer, cfg.Leeway)
	if err != nil {
		return nil, fmt.Errorf("refresh signer: %w", err)
	}

	return &TokenIssuer{
		access:     access,
		refresh:    refresh,
		issuer:     cfg.Issuer,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		Clock:      time.Now,
	}, nil
}

func (t *TokenIssuer) AccessTTL() time.Duration  { return t.accessTTL }
func (t *TokenIssuer) RefreshTTL() time.Duration { return t.refreshTTL }

// IssueAccessToken signs a short lived token carrying the user's identity.
func (t *TokenIssuer) IssueAccessToken(u domain.User) (string, time.Time, error) {
	now := t.Clock()
	claims := jwtx.NewAccessClaims(u.ID, u.Username, u.Email, u.FullName, t.accessTTL, t.issuer, now)
	token, err := t.access.Sign(claims)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, claims.ExpiresAt.Time, nil
}

// IssueRefreshToken signs a long lived token carrying only the user id.
func (t *TokenIssuer) IssueRefreshToken(u domain.User) (string, time.Time, error) {
	claims := jwtx.NewRefreshClaims(u.ID, t.refreshTTL, t.issuer, t.Clock())
	token, err := t.refresh.Sign(claims)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, claims.ExpiresAt.Time, nil
}

func (t *TokenIssuer) IssuePair(u domain.User) (domain.TokenPair, error) {
	access, accessExp, err := t.IssueAccessToken(u)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("access token: %w", err)
	}
	refresh, refreshExp, err := t.IssueRefreshToken(u)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("refresh token: %w", err)
	}
	return domain.TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// VerifyAccessToken satisfies httpx.AccessVerifier.
func (t *TokenIssuer) VerifyAccessToken(token string) (jwtx.AccessClaims, error) {
	return t.access.VerifyAccess(token)
}

func (t *TokenIssuer) VerifyRefreshToken(token string) (jwtx.RefreshClaims, error) {
	return t.refresh.VerifyRefresh(token)
}
