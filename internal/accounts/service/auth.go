package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/aussiebroadwan/clipshare/internal/accounts/assets"
	"github.com/aussiebroadwan/clipshare/internal/accounts/domain"
	"github.com/aussiebroadwan/clipshare/internal/accounts/events"
	"github.com/aussiebroadwan/clipshare/internal/accounts/store"
	"github.com/aussiebroadwan/clipshare/internal/accounts/throttle"
	"github.com/aussiebroadwan/clipshare/pkg/cryptox"
	"github.com/aussiebroadwan/clipshare/pkg/idx"
	"github.com/aussiebroadwan/clipshare/pkg/slogx"
)

// AuthService owns the credential and session lifecycle: registration,
// login, logout, refresh rotation and password changes.
type AuthService struct {
	Store    store.Store
	Tokens   *TokenIssuer
	Assets   assets.Host
	Events   events.Publisher // optional
	Throttle throttle.Limiter // optional

	// EndSessionOnPasswordChange clears the refresh slot when a user changes
	// their own password, forcing other clients to log in again.
	EndSessionOnPasswordChange bool
}

type RegisterInput struct {
	FullName   string
	Email      string
	Username   string
	Password   string
	Avatar     *domain.Asset
	CoverImage *domain.Asset // optional
}

type LoginInput struct {
	Username string
	Email    string
	Password string
	ClientIP string
}

type LoginResult struct {
	User   domain.PublicUser
	Tokens domain.TokenPair
}

// Register creates an account. Nothing is persisted unless every upload
// succeeded, and uploads are removed again if the insert fails.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (domain.PublicUser, error) {
	l := slogx.FromContext(ctx)

	fullName := strings.TrimSpace(in.FullName)
	email := domain.NormalizeIdentifier(in.Email)
	username := domain.NormalizeIdentifier(in.Username)
	if fullName == "" || email == "" || username == "" || strings.TrimSpace(in.Password) == "" {
		return domain.PublicUser{}, validationError("all fields are required")
	}

	_, err := s.Store.Users().GetUserByIdentifier(ctx, username, email)
	switch {
	case err == nil:
		return domain.PublicUser{}, conflictError("user with email or username already exists")
	case !errors.Is(err, store.ErrNotFound):
		return domain.PublicUser{}, internalError("failed to register user", err)
	}

	if in.Avatar == nil {
		return domain.PublicUser{}, validationError("avatar file is required")
	}

	avatar, err := checkImage(*in.Avatar, "avatar")
	if err != nil {
		return domain.PublicUser{}, err
	}
	var cover *domain.Asset
	if in.CoverImage != nil {
		c, err := checkImage(*in.CoverImage, "cover image")
		if err != nil {
			return domain.PublicUser{}, err
		}
		cover = &c
	}

	avatarURL, err := s.Assets.Upload(ctx, assets.Avatars, avatar)
	if err != nil {
		return domain.PublicUser{}, uploadError("failed to upload avatar", err)
	}
	uploaded := []string{avatarURL}

	var coverURL string
	if cover != nil {
		coverURL, err = s.Assets.Upload(ctx, assets.CoverImages, *cover)
		if err != nil {
			s.removeAssets(ctx, uploaded...)
			return domain.PublicUser{}, uploadError("failed to upload cover image", err)
		}
		uploaded = append(uploaded, coverURL)
	}

	hash, err := cryptox.HashPassword(in.Password)
	if err != nil {
		s.removeAssets(ctx, uploaded...)
		return domain.PublicUser{}, internalError("failed to register user", err)
	}

	now := time.Now().UTC()
	u := domain.User{
		ID:            idx.New().String(),
		Username:      username,
		Email:         email,
		FullName:      fullName,
		AvatarURL:     avatarURL,
		CoverImageURL: coverURL,
		PasswordHash:  hash,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.Store.Users().CreateUser(ctx, u); err != nil {
		s.removeAssets(ctx, uploaded...)
		if errors.Is(err, store.ErrAlreadyExists) {
			// Lost a race with a concurrent registration
			return domain.PublicUser{}, conflictError("user with email or username already exists")
		}
		return domain.PublicUser{}, internalError("something went wrong while registering the user", err)
	}

	created, err := s.Store.Users().GetPublicUser(ctx, u.ID)
	if err != nil {
		return domain.PublicUser{}, internalError("something went wrong while registering the user", err)
	}

	l.Info("user registered", slog.String("user_id", u.ID))
	s.publish(ctx, events.UserRegistered, u.ID)
	return created, nil
}

// Login checks credentials and starts a session, replacing any session the
// user already had.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (LoginResult, error) {
	l := slogx.FromContext(ctx)

	username := domain.NormalizeIdentifier(in.Username)
	email := domain.NormalizeIdentifier(in.Email)
	if username == "" && email == "" {
		return LoginResult{}, validationError("username or email is required")
	}

	identifier := username
	if identifier == "" {
		identifier = email
	}

	// Unknown identifiers and the client IP are checked before the lookup
	if err := s.checkThrottle(ctx, identifierKey(identifier), in.ClientIP); err != nil {
		return LoginResult{}, err
	}

	u, err := s.Store.Users().GetUserByIdentifier(ctx, username, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.recordFailure(ctx, identifierKey(identifier), in.ClientIP)
			return LoginResult{}, notFoundError("user does not exist")
		}
		return LoginResult{}, internalError("failed to log in", err)
	}

	// Known accounts count failures by id, whether they log in by
	// username or email
	account := accountKey(u.ID)
	if err := s.checkThrottle(ctx, account, ""); err != nil {
		return LoginResult{}, err
	}

	if err := cryptox.VerifyPassword(in.Password, u.PasswordHash); err != nil {
		if !errors.Is(err, cryptox.ErrPasswordMismatch) {
			l.Error("stored password hash is unusable", slog.String("user_id", u.ID), slog.Any("error", err))
		}
		s.recordFailure(ctx, account, in.ClientIP)
		return LoginResult{}, authenticationError("invalid user credentials")
	}

	if cryptox.NeedsRehash(u.PasswordHash) {
		s.upgradeHash(ctx, u.ID, in.Password)
	}

	pair, err := s.startSession(ctx, u)
	if err != nil {
		return LoginResult{}, err
	}

	if err := s.limiter().Reset(ctx, account, in.ClientIP); err != nil {
		l.Warn("failed to reset login throttle", slog.Any("error", err))
	}

	public, err := s.Store.Users().GetPublicUser(ctx, u.ID)
	if err != nil {
		return LoginResult{}, internalError("failed to log in", err)
	}

	l.Info("user logged in", slog.String("user_id", u.ID))
	s.publish(ctx, events.SessionCreated, u.ID)
	return LoginResult{User: public, Tokens: pair}, nil
}

// Logout ends the user's session. Logging out twice is not an error.
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	if err := s.Store.Sessions().ClearSession(ctx, userID); err != nil {
		return internalError("failed to log out", err)
	}

	slogx.FromContext(ctx).Info("user logged out", slog.String("user_id", userID))
	s.publish(ctx, events.SessionEnded, userID)
	return nil
}

// Refresh trades a valid refresh token for a new pair. The presented token
// is spent: the slot moves to the new token with a compare-and-swap so only
// one of several concurrent refreshes with the same token can win.
func (s *AuthService) Refresh(ctx context.Context, presented domain.PresentedToken) (domain.TokenPair, error) {
	l := slogx.FromContext(ctx)

	if presented.Source == domain.Absent || presented.Value == "" {
		return domain.TokenPair{}, unauthorizedError("unauthorized request", nil)
	}

	claims, err := s.Tokens.VerifyRefreshToken(presented.Value)
	if err != nil {
		l.Info("refresh token rejected", slog.String("source", presented.Source.String()), slog.Any("error", err))
		return domain.TokenPair{}, unauthorizedError("invalid refresh token", err)
	}

	u, err := s.Store.Users().GetUserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.TokenPair{}, unauthorizedError("invalid refresh token", err)
		}
		return domain.TokenPair{}, internalError("failed to refresh access token", err)
	}

	presentedHash := cryptox.FingerprintToken(presented.Value)
	if !u.Session.Matches(presentedHash) {
		l.Info("refresh token is not the current session", slog.String("user_id", u.ID))
		return domain.TokenPair{}, unauthorizedError("refresh token is expired or used", nil)
	}

	pair, err := s.Tokens.IssuePair(u)
	if err != nil {
		return domain.TokenPair{}, internalError("failed to refresh access token", err)
	}

	next := domain.Session{
		TokenHash: cryptox.FingerprintToken(pair.RefreshToken),
		ExpiresAt: pair.RefreshExpiresAt,
	}
	if err := s.Store.Sessions().RotateSession(ctx, u.ID, presentedHash, next); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			l.Info("refresh lost rotation race", slog.String("user_id", u.ID))
			return domain.TokenPair{}, unauthorizedError("refresh token is expired or used", err)
		}
		return domain.TokenPair{}, internalError("failed to refresh access token", err)
	}

	s.publish(ctx, events.SessionRefreshed, u.ID)
	return pair, nil
}

// ChangePassword replaces the password after checking the old one.
func (s *AuthService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if strings.TrimSpace(newPassword) == "" {
		return validationError("new password is required")
	}

	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFoundError("user does not exist")
		}
		return internalError("failed to change password", err)
	}

	if err := cryptox.VerifyPassword(oldPassword, u.PasswordHash); err != nil {
		return authenticationError("invalid old password")
	}

	if err := s.setPassword(ctx, u.ID, newPassword, s.EndSessionOnPasswordChange); err != nil {
		return err
	}

	slogx.FromContext(ctx).Info("password changed",
		slog.String("user_id", u.ID),
		slog.Bool("session_ended", s.EndSessionOnPasswordChange))
	s.publish(ctx, events.PasswordChanged, u.ID)
	if s.EndSessionOnPasswordChange {
		s.publish(ctx, events.SessionEnded, u.ID)
	}
	return nil
}

// SetPassword is the operator path: no old password, and the user's session
// always ends.
func (s *AuthService) SetPassword(ctx context.Context, username, newPassword string) error {
	username = domain.NormalizeIdentifier(username)
	if username == "" || strings.TrimSpace(newPassword) == "" {
		return validationError("username and new password are required")
	}

	u, err := s.Store.Users().GetUserByIdentifier(ctx, username, "")
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFoundError("user does not exist")
		}
		return internalError("failed to set password", err)
	}

	if err := s.setPassword(ctx, u.ID, newPassword, true); err != nil {
		return err
	}

	s.publish(ctx, events.PasswordChanged, u.ID)
	s.publish(ctx, events.SessionEnded, u.ID)
	return nil
}

func (s *AuthService) setPassword(ctx context.Context, userID, password string, endSession bool) error {
	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return internalError("failed to change password", err)
	}
	if err := s.Store.Users().UpdatePasswordHash(ctx, userID, hash, endSession); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFoundError("user does not exist")
		}
		return internalError("failed to change password", err)
	}
	return nil
}

// startSession issues a pair and stores the refresh fingerprint. No tokens
// are handed out if the slot cannot be written.
func (s *AuthService) startSession(ctx context.Context, u domain.User) (domain.TokenPair, error) {
	pair, err := s.Tokens.IssuePair(u)
	if err != nil {
		return domain.TokenPair{}, internalError("something went wrong while generating tokens", err)
	}

	err = s.Store.Sessions().SetSession(ctx, u.ID, domain.Session{
		TokenHash: cryptox.FingerprintToken(pair.RefreshToken),
		ExpiresAt: pair.RefreshExpiresAt,
	})
	if err != nil {
		return domain.TokenPair{}, internalError("something went wrong while generating tokens", err)
	}
	return pair, nil
}

// upgradeHash rewrites a legacy or weaker digest. Failure only costs another
// attempt at the next login.
func (s *AuthService) upgradeHash(ctx context.Context, userID, password string) {
	l := slogx.FromContext(ctx)

	hash, err := cryptox.HashPassword(password)
	if err == nil {
		err = s.Store.Users().UpdatePasswordHash(ctx, userID, hash, false)
	}
	if err != nil {
		l.Warn("failed to upgrade password hash", slog.String("user_id", userID), slog.Any("error", err))
		return
	}
	l.Info("upgraded password hash", slog.String("user_id", userID))
}

func (s *AuthService) checkThrottle(ctx context.Context, key, ip string) error {
	err := s.limiter().Check(ctx, key, ip)
	if err == nil {
		return nil
	}
	l := slogx.FromContext(ctx)
	if errors.Is(err, throttle.ErrRateLimited) {
		l.Warn("login throttled", slog.String("key", key))
		return newError(ErrTooManyAttempts, "too many failed login attempts, please try again later", err)
	}
	l.Warn("login throttle unavailable", slog.Any("error", err))
	return nil
}

// accountKey and identifierKey keep throttle counters for resolved users
// apart from counters for names that matched no account.
func accountKey(userID string) string { return "id:" + userID }

func identifierKey(identifier string) string { return "name:" + identifier }

func (s *AuthService) recordFailure(ctx context.Context, identifier, ip string) {
	if err := s.limiter().Fail(ctx, identifier, ip); err != nil {
		slogx.FromContext(ctx).Warn("failed to record login failure", slog.Any("error", err))
	}
}

func (s *AuthService) removeAssets(ctx context.Context, urls ...string) {
	removeAssets(ctx, s.Assets, urls...)
}

func (s *AuthService) limiter() throttle.Limiter {
	if s.Throttle == nil {
		return throttle.Nop{}
	}
	return s.Throttle
}

func (s *AuthService) publish(ctx context.Context, t events.Type, userID string) {
	publish(ctx, s.Events, t, userID)
}

func publish(ctx context.Context, p events.Publisher, t events.Type, userID string) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, events.New(t, userID)); err != nil {
		slogx.FromContext(ctx).Warn("failed to publish event", slog.String("type", string(t)), slog.Any("error", err))
	}
}

func removeAssets(ctx context.Context, host assets.Host, urls ...string) {
	for _, url := range urls {
		if url == "" {
			continue
		}
		if err := host.Remove(ctx, url); err != nil && !errors.Is(err, assets.ErrForeignURL) {
			slogx.FromContext(ctx).Warn("failed to remove asset", slog.String("url", url), slog.Any("error", err))
		}
	}
}

// checkImage sniffs an upload before it reaches the asset host. Only raster
// images are accepted, whatever the client claims the file is.
func checkImage(a domain.Asset, label string) (domain.Asset, error) {
	checked, err := assets.DetectImage(a)
	switch {
	case err == nil:
		return checked, nil
	case errors.Is(err, assets.ErrNotImage):
		return a, validationError(label + " must be a PNG, JPEG, GIF or WebP image")
	case errors.Is(err, assets.ErrEmptyAsset):
		return a, validationError(label + " file is empty")
	default:
		return a, uploadError("failed to read "+label, err)
	}
}
