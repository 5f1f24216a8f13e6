// Package storetest is a conformance suite run against every store driver.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/clipshare/internal/accounts/domain"
	"github.com/aussiebroadwan/clipshare/internal/accounts/store"
	"github.com/aussiebroadwan/clipshare/pkg/cryptox"
	"github.com/aussiebroadwan/clipshare/pkg/idx"
	"github.com/stretchr/testify/require"
)

// Run executes the suite. newStore must return an empty, migrated store; it
// is called once per subtest.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("CreateAndGet", func(t *testing.T) { testCreateAndGet(t, newStore(t)) })
	t.Run("CreateDuplicate", func(t *testing.T) { testCreateDuplicate(t, newStore(t)) })
	t.Run("NotFound", func(t *testing.T) { testNotFound(t, newStore(t)) })
	t.Run("SetSession", func(t *testing.T) { testSetSession(t, newStore(t)) })
	t.Run("RotateSession", func(t *testing.T) { testRotateSession(t, newStore(t)) })
	t.Run("RotateSessionRace", func(t *testing.T) { testRotateSessionRace(t, newStore(t)) })
	t.Run("ClearSession", func(t *testing.T) { testClearSession(t, newStore(t)) })
	t.Run("ClearExpiredSessions", func(t *testing.T) { testClearExpiredSessions(t, newStore(t)) })
	t.Run("UpdatePasswordHash", func(t *testing.T) { testUpdatePasswordHash(t, newStore(t)) })
	t.Run("UpdateProfile", func(t *testing.T) { testUpdateProfile(t, newStore(t)) })
	t.Run("UpdateImages", func(t *testing.T) { testUpdateImages(t, newStore(t)) })
}

// NewUser returns a user with unique username and email derived from name.
func NewUser(name string) domain.User {
	now := time.Now().UTC().Truncate(time.Second)
	return domain.User{
		ID:           idx.New().String(),
		Username:     name,
		Email:        name + "@example.com",
		FullName:     "User " + name,
		AvatarURL:    "https://cdn.example.com/avatars/" + name + ".png",
		PasswordHash: "$argon2id$v=19$m=19456,t=2,p=1$c2FsdA$aGFzaA",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func mustCreate(t *testing.T, s store.Store, name string) domain.User {
	t.Helper()
	u := NewUser(name)
	require.NoError(t, s.Users().CreateUser(context.Background(), u))
	return u
}

func session(token string, expires time.Time) domain.Session {
	return domain.Session{
		TokenHash: cryptox.FingerprintToken(token),
		ExpiresAt: expires.UTC().Truncate(time.Second),
	}
}

func testCreateAndGet(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := NewUser("alice")
	u.CoverImageURL = "https://cdn.example.com/covers/alice.png"
	require.NoError(t, s.Users().CreateUser(ctx, u))

	got, err := s.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)
	require.Equal(t, u.Username, got.Username)
	require.Equal(t, u.Email, got.Email)
	require.Equal(t, u.FullName, got.FullName)
	require.Equal(t, u.AvatarURL, got.AvatarURL)
	require.Equal(t, u.CoverImageURL, got.CoverImageURL)
	require.Equal(t, u.PasswordHash, got.PasswordHash)
	require.Nil(t, got.Session)
	require.WithinDuration(t, u.CreatedAt, got.CreatedAt, time.Second)

	byName, err := s.Users().GetUserByIdentifier(ctx, "alice", "")
	require.NoError(t, err)
	require.Equal(t, u.ID, byName.ID)

	byEmail, err := s.Users().GetUserByIdentifier(ctx, "", "alice@example.com")
	require.NoError(t, err)
	require.Equal(t, u.ID, byEmail.ID)

	// Either identifier matching is enough
	either, err := s.Users().GetUserByIdentifier(ctx, "nobody", "alice@example.com")
	require.NoError(t, err)
	require.Equal(t, u.ID, either.ID)

	pub, err := s.Users().GetPublicUser(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, u.Public().Username, pub.Username)
	require.Equal(t, u.CoverImageURL, pub.CoverImageURL)
}

func testCreateDuplicate(t *testing.T, s store.Store) {
	ctx := context.Background()
	mustCreate(t, s, "bob")

	sameName := NewUser("bob")
	sameName.Email = "other@example.com"
	require.ErrorIs(t, s.Users().CreateUser(ctx, sameName), store.ErrAlreadyExists)

	sameEmail := NewUser("robert")
	sameEmail.Email = "bob@example.com"
	require.ErrorIs(t, s.Users().CreateUser(ctx, sameEmail), store.ErrAlreadyExists)
}

func testNotFound(t *testing.T, s store.Store) {
	ctx := context.Background()
	missing := idx.New().String()

	_, err := s.Users().GetUserByID(ctx, missing)
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.Users().GetPublicUser(ctx, missing)
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.Users().GetUserByIdentifier(ctx, "ghost", "ghost@example.com")
	require.ErrorIs(t, err, store.ErrNotFound)

	// Empty identifiers never match, even against rows with empty columns
	mustCreate(t, s, "carol")
	_, err = s.Users().GetUserByIdentifier(ctx, "", "")
	require.ErrorIs(t, err, store.ErrNotFound)

	require.ErrorIs(t, s.Users().UpdatePasswordHash(ctx, missing, "h", false), store.ErrNotFound)

	_, err = s.Users().UpdateProfile(ctx, missing, "Name", "n@example.com")
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.Users().UpdateAvatar(ctx, missing, "https://x")
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.Users().UpdateCoverImage(ctx, missing, "https://x")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func testSetSession(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := mustCreate(t, s, "dave")
	expires := time.Now().Add(time.Hour)

	require.NoError(t, s.Sessions().SetSession(ctx, u.ID, session("first", expires)))
	require.NoError(t, s.Sessions().SetSession(ctx, u.ID, session("second", expires)))

	got, err := s.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Session)
	require.True(t, got.Session.Matches(cryptox.FingerprintToken("second")))
	require.False(t, got.Session.Matches(cryptox.FingerprintToken("first")))
	require.WithinDuration(t, expires, got.Session.ExpiresAt, time.Second)

	err = s.Sessions().SetSession(ctx, idx.New().String(), session("x", expires))
	require.ErrorIs(t, err, store.ErrNotFound)
}

func testRotateSession(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := mustCreate(t, s, "erin")
	expires := time.Now().Add(time.Hour)

	// Nothing to rotate from
	err := s.Sessions().RotateSession(ctx, u.ID, cryptox.FingerprintToken("t1"), session("t2", expires))
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.Sessions().SetSession(ctx, u.ID, session("t1", expires)))
	require.NoError(t, s.Sessions().RotateSession(ctx, u.ID, cryptox.FingerprintToken("t1"), session("t2", expires)))

	// t1 is spent
	err = s.Sessions().RotateSession(ctx, u.ID, cryptox.FingerprintToken("t1"), session("t3", expires))
	require.ErrorIs(t, err, store.ErrNotFound)

	got, err := s.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, got.Session.Matches(cryptox.FingerprintToken("t2")))
}

func testRotateSessionRace(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := mustCreate(t, s, "frank")
	expires := time.Now().Add(time.Hour)
	require.NoError(t, s.Sessions().SetSession(ctx, u.ID, session("shared", expires)))

	const racers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := range racers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Sessions().RotateSession(ctx, u.ID, cryptox.FingerprintToken("shared"),
				session(fmt.Sprintf("next-%d", i), expires))
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, wins, "exactly one concurrent rotation may win")
}

func testClearSession(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := mustCreate(t, s, "grace")

	require.NoError(t, s.Sessions().SetSession(ctx, u.ID, session("t", time.Now().Add(time.Hour))))
	require.NoError(t, s.Sessions().ClearSession(ctx, u.ID))
	require.NoError(t, s.Sessions().ClearSession(ctx, u.ID))
	require.NoError(t, s.Sessions().ClearSession(ctx, idx.New().String()))

	got, err := s.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Nil(t, got.Session)
}

func testClearExpiredSessions(t *testing.T, s store.Store) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	expired := mustCreate(t, s, "heidi")
	live := mustCreate(t, s, "ivan")
	mustCreate(t, s, "judy") // no session

	require.NoError(t, s.Sessions().SetSession(ctx, expired.ID, session("old", now.Add(-time.Minute))))
	require.NoError(t, s.Sessions().SetSession(ctx, live.ID, session("new", now.Add(time.Hour))))

	n, err := s.Sessions().ClearExpiredSessions(ctx, now)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	got, err := s.Users().GetUserByID(ctx, expired.ID)
	require.NoError(t, err)
	require.Nil(t, got.Session)

	got, err = s.Users().GetUserByID(ctx, live.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Session)

	n, err = s.Sessions().ClearExpiredSessions(ctx, now)
	require.NoError(t, err)
	require.Zero(t, n)
}

func testUpdatePasswordHash(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := mustCreate(t, s, "mallory")
	require.NoError(t, s.Sessions().SetSession(ctx, u.ID, session("t", time.Now().Add(time.Hour))))

	require.NoError(t, s.Users().UpdatePasswordHash(ctx, u.ID, "hash-2", false))
	got, err := s.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "hash-2", got.PasswordHash)
	require.NotNil(t, got.Session, "session survives unless asked to end it")

	require.NoError(t, s.Users().UpdatePasswordHash(ctx, u.ID, "hash-3", true))
	got, err = s.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "hash-3", got.PasswordHash)
	require.Nil(t, got.Session)
}

func testUpdateProfile(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := mustCreate(t, s, "niaj")
	mustCreate(t, s, "olivia")

	pub, err := s.Users().UpdateProfile(ctx, u.ID, "Niaj N", "niaj@new.example.com")
	require.NoError(t, err)
	require.Equal(t, "Niaj N", pub.FullName)
	require.Equal(t, "niaj@new.example.com", pub.Email)
	require.Equal(t, "niaj", pub.Username)
	require.False(t, pub.UpdatedAt.Before(u.UpdatedAt))

	// Keeping your own email is fine
	_, err = s.Users().UpdateProfile(ctx, u.ID, "Niaj", "niaj@new.example.com")
	require.NoError(t, err)

	_, err = s.Users().UpdateProfile(ctx, u.ID, "Niaj", "olivia@example.com")
	require.ErrorIs(t, err, store.ErrAlreadyExists)

	// Old email is free again
	_, err = s.Users().GetUserByIdentifier(ctx, "", "niaj@example.com")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func testUpdateImages(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := mustCreate(t, s, "peggy")
	require.NoError(t, s.Sessions().SetSession(ctx, u.ID, session("t", time.Now().Add(time.Hour))))

	pub, err := s.Users().UpdateAvatar(ctx, u.ID, "https://cdn.example.com/avatars/new.png")
	require.NoError(t, err)
	require.Equal(t, "https://cdn.example.com/avatars/new.png", pub.AvatarURL)

	pub, err = s.Users().UpdateCoverImage(ctx, u.ID, "https://cdn.example.com/covers/new.png")
	require.NoError(t, err)
	require.Equal(t, "https://cdn.example.com/covers/new.png", pub.CoverImageURL)
	require.Equal(t, "https://cdn.example.com/avatars/new.png", pub.AvatarURL)

	// Profile writes leave credentials alone
	got, err := s.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, u.PasswordHash, got.PasswordHash)
	require.NotNil(t, got.Session)
}
