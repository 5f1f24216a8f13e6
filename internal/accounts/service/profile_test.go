package service

import (
	"context"
	"strings"
	"testing"

	"github.com/aussiebroadwan/clipshare/internal/accounts/assets"
	"github.com/aussiebroadwan/clipshare/internal/accounts/events"
	"github.com/aussiebroadwan/clipshare/pkg/idx"
	"github.com/stretchr/testify/require"
)

func TestGetCurrentUser(t *testing.T) {
	env := newTestEnv(t)
	u := env.register(t, "alice", "pw")

	got, err := env.profile.GetCurrentUser(context.Background(), u.ID)
	require.NoError(t, err)
	require.Equal(t, u, got)

	_, err = env.profile.GetCurrentUser(context.Background(), idx.New().String())
	requireKind(t, err, ErrNotFound, "user does not exist")
}

func TestUpdateProfile(t *testing.T) {
	env := newTestEnv(t)
	u := env.register(t, "bob", "pw")
	env.register(t, "carol", "pw")
	ctx := context.Background()

	got, err := env.profile.UpdateProfile(ctx, u.ID, " Robert ", " Robert@Example.com ")
	require.NoError(t, err)
	require.Equal(t, "Robert", got.FullName)
	require.Equal(t, "robert@example.com", got.Email)
	require.Contains(t, env.events.types(), events.ProfileUpdated)

	_, err = env.profile.UpdateProfile(ctx, u.ID, "", "x@example.com")
	requireKind(t, err, ErrValidation, "all fields are required")

	_, err = env.profile.UpdateProfile(ctx, u.ID, "Bob", "carol@example.com")
	requireKind(t, err, ErrConflict, "email is already in use")

	// Credentials untouched by profile edits
	env.login(t, "bob", "pw")
}

func TestUpdateAvatar(t *testing.T) {
	env := newTestEnv(t)
	u := env.register(t, "dave", "pw")
	ctx := context.Background()

	got, err := env.profile.UpdateAvatar(ctx, u.ID, image("new.png", "fresh"))
	require.NoError(t, err)
	require.NotEqual(t, u.AvatarURL, got.AvatarURL)
	require.True(t, strings.HasPrefix(got.AvatarURL, "https://cdn.test/avatars/"))
	require.Contains(t, env.assets.removed, u.AvatarURL, "old avatar is cleaned up")
	require.Contains(t, env.events.types(), events.AvatarUpdated)

	_, err = env.profile.UpdateAvatar(ctx, u.ID, nil)
	requireKind(t, err, ErrValidation, "avatar file is missing")

	_, err = env.profile.UpdateAvatar(ctx, u.ID, upload("evil.html", "<html><script>alert(1)</script></html>"))
	requireKind(t, err, ErrValidation, "avatar must be a PNG, JPEG, GIF or WebP image")

	env.assets.fail[assets.Avatars] = true
	_, err = env.profile.UpdateAvatar(ctx, u.ID, image("again.png", "x"))
	require.ErrorIs(t, err, ErrUpload)

	current, err := env.profile.GetCurrentUser(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, got.AvatarURL, current.AvatarURL, "failed upload leaves the avatar alone")
}

func TestUpdateCoverImage(t *testing.T) {
	env := newTestEnv(t)
	u := env.register(t, "erin", "pw")
	ctx := context.Background()

	got, err := env.profile.UpdateCoverImage(ctx, u.ID, image("cover.png", "wide"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(got.CoverImageURL, "https://cdn.test/covers/"))
	require.Equal(t, u.AvatarURL, got.AvatarURL)
	require.Empty(t, env.assets.removed, "there was no previous cover to remove")

	_, err = env.profile.UpdateCoverImage(ctx, u.ID, nil)
	requireKind(t, err, ErrValidation, "cover image file is missing")

	_, err = env.profile.UpdateCoverImage(ctx, idx.New().String(), image("c.png", "x"))
	requireKind(t, err, ErrNotFound, "user does not exist")
}
