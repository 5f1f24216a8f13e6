package domain

import (
	"strings"
	"time"
)

// User is the full account record including the credential and session
// fields. It carries no JSON tags and is never written to a response; use
// Public for that.
type User struct {
	ID            string
	Username      string
	Email         string
	FullName      string
	AvatarURL     string
	CoverImageURL string     // optional
	PasswordHash  string     // argon2id PHC string, or a bcrypt digest awaiting upgrade
	Session       *Session   // nil when logged out
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// PublicUser is the projection safe to hand to clients.
type PublicUser struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	FullName      string    `json:"fullName"`
	AvatarURL     string    `json:"avatar"`
	CoverImageURL string    `json:"coverImage"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func (u User) Public() PublicUser {
	return PublicUser{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		FullName:      u.FullName,
		AvatarURL:     u.AvatarURL,
		CoverImageURL: u.CoverImageURL,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

// NormalizeIdentifier lower-cases and trims a username or email so lookups
// and uniqueness checks agree.
func NormalizeIdentifier(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
