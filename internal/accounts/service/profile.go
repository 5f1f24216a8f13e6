package service

import (
	"context"
	"errors"
	"strings"

	"github.com/aussiebroadwan/clipshare/internal/accounts/assets"
	"github.com/aussiebroadwan/clipshare/internal/accounts/domain"
	"github.com/aussiebroadwan/clipshare/internal/accounts/events"
	"github.com/aussiebroadwan/clipshare/internal/accounts/store"
)

// ProfileService covers the authenticated reads and writes of a user's own
// public profile. It never touches credentials.
type ProfileService struct {
	Store  store.Store
	Assets assets.Host
	Events events.Publisher // optional
}

func (s *ProfileService) GetCurrentUser(ctx context.Context, userID string) (domain.PublicUser, error) {
	u, err := s.Store.Users().GetPublicUser(ctx, userID)
	if err != nil {
		return domain.PublicUser{}, mapUserError(err, "failed to fetch user")
	}
	return u, nil
}

func (s *ProfileService) UpdateProfile(ctx context.Context, userID, fullName, email string) (domain.PublicUser, error) {
	fullName = strings.TrimSpace(fullName)
	email = domain.NormalizeIdentifier(email)
	if fullName == "" || email == "" {
		return domain.PublicUser{}, validationError("all fields are required")
	}

	u, err := s.Store.Users().UpdateProfile(ctx, userID, fullName, email)
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.PublicUser{}, conflictError("email is already in use")
		}
		return domain.PublicUser{}, mapUserError(err, "failed to update account details")
	}

	publish(ctx, s.Events, events.ProfileUpdated, userID)
	return u, nil
}

func (s *ProfileService) UpdateAvatar(ctx context.Context, userID string, a *domain.Asset) (domain.PublicUser, error) {
	if a == nil {
		return domain.PublicUser{}, validationError("avatar file is missing")
	}
	return s.replaceImage(ctx, userID, *a, imageSlot{
		kind:    assets.Avatars,
		label:   "avatar",
		event:   events.AvatarUpdated,
		current: func(u domain.PublicUser) string { return u.AvatarURL },
		update:  s.Store.Users().UpdateAvatar,
	})
}

func (s *ProfileService) UpdateCoverImage(ctx context.Context, userID string, a *domain.Asset) (domain.PublicUser, error) {
	if a == nil {
		return domain.PublicUser{}, validationError("cover image file is missing")
	}
	return s.replaceImage(ctx, userID, *a, imageSlot{
		kind:    assets.CoverImages,
		label:   "cover image",
		event:   events.CoverImageUpdated,
		current: func(u domain.PublicUser) string { return u.CoverImageURL },
		update:  s.Store.Users().UpdateCoverImage,
	})
}

type imageSlot struct {
	kind    assets.Kind
	label   string
	event   events.Type
	current func(domain.PublicUser) string
	update  func(ctx context.Context, id, url string) (domain.PublicUser, error)
}

// replaceImage uploads the new image, points the user at it, then removes
// the old one. A failed write removes the new upload instead.
func (s *ProfileService) replaceImage(ctx context.Context, userID string, a domain.Asset, slot imageSlot) (domain.PublicUser, error) {
	before, err := s.Store.Users().GetPublicUser(ctx, userID)
	if err != nil {
		return domain.PublicUser{}, mapUserError(err, "failed to update "+slot.label)
	}

	a, err = checkImage(a, slot.label)
	if err != nil {
		return domain.PublicUser{}, err
	}

	url, err := s.Assets.Upload(ctx, slot.kind, a)
	if err != nil {
		return domain.PublicUser{}, uploadError("error while uploading "+slot.label, err)
	}

	after, err := slot.update(ctx, userID, url)
	if err != nil {
		removeAssets(ctx, s.Assets, url)
		return domain.PublicUser{}, mapUserError(err, "failed to update "+slot.label)
	}

	if old := slot.current(before); old != url {
		removeAssets(ctx, s.Assets, old)
	}

	publish(ctx, s.Events, slot.event, userID)
	return after, nil
}

func mapUserError(err error, msg string) error {
	if errors.Is(err, store.ErrNotFound) {
		return notFoundError("user does not exist")
	}
	return internalError(msg, err)
}
