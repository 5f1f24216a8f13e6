package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/clipshare/internal/accounts/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface implemented by each driver
// (sqlite, postgres, mongo). It vends sub-repositories so callers only see
// the operations relevant to them.
//
// There is no generic "save user" method. Every mutation is a single targeted
// statement so the password hash and the session slot can only change
// through the paths that are meant to change them.
type Store interface {
	Users() Users
	Sessions() Sessions

	ApplyMigrations(ctx context.Context) error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error

	Close() error
}

type Users interface {
	// CreateUser inserts a new user. The id is assigned by the caller.
	// Returns ErrAlreadyExists when the username or email is taken.
	CreateUser(ctx context.Context, u domain.User) error

	// GetUserByID returns the full record including password hash and
	// session slot.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByIdentifier returns the user matching either username or
	// email. Empty arguments never match.
	GetUserByIdentifier(ctx context.Context, username, email string) (domain.User, error)

	// GetPublicUser returns the client-safe projection.
	GetPublicUser(ctx context.Context, id string) (domain.PublicUser, error)

	// UpdatePasswordHash replaces the hash and bumps updated_at. When
	// endSession is set the session slot is cleared in the same statement.
	UpdatePasswordHash(ctx context.Context, id, hash string, endSession bool) error

	// UpdateProfile sets full name and email. Returns ErrAlreadyExists when
	// the email belongs to someone else.
	UpdateProfile(ctx context.Context, id, fullName, email string) (domain.PublicUser, error)

	UpdateAvatar(ctx context.Context, id, url string) (domain.PublicUser, error)
	UpdateCoverImage(ctx context.Context, id, url string) (domain.PublicUser, error)
}

type Sessions interface {
	// SetSession overwrites the slot unconditionally. Returns ErrNotFound if
	// the user does not exist.
	SetSession(ctx context.Context, userID string, s domain.Session) error

	// RotateSession overwrites the slot only while it still holds
	// presentedHash. Returns ErrNotFound when the slot has moved on, which
	// is how the loser of two concurrent refreshes finds out.
	RotateSession(ctx context.Context, userID, presentedHash string, next domain.Session) error

	// ClearSession empties the slot. Clearing an empty slot, or the slot of
	// a missing user, is not an error.
	ClearSession(ctx context.Context, userID string) error

	// ClearExpiredSessions empties every slot whose expiry is at or before
	// now and reports how many were cleared.
	ClearExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}
