package domain

import (
	"time"

	"github.com/aussiebroadwan/clipshare/pkg/cryptox"
)

// Session is the single refresh token slot held on a user. Only the
// fingerprint of the token is stored.
type Session struct {
	TokenHash string
	ExpiresAt time.Time
}

// Matches reports whether fingerprint is the one held in the slot.
func (s *Session) Matches(fingerprint string) bool {
	if s == nil || s.TokenHash == "" || fingerprint == "" {
		return false
	}
	return cryptox.FingerprintsEqual(s.TokenHash, fingerprint)
}

// Expired reports whether the slot is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return s != nil && !now.Before(s.ExpiresAt)
}
