package accountsdk

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"
)

// Access tokens are refreshed this long before they expire.
const refreshBuffer = 30 * time.Second

// Session is an authenticated session. Every method refreshes the access
// token first when it is about to expire.
type Session struct {
	client *Client

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	expiresAt    time.Time
	user         User
}

// User returns the user captured at login. It is empty for sessions built
// with NewSessionFromTokens; use CurrentUser to fetch it.
func (s *Session) User() User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// Tokens returns the current access and refresh tokens.
func (s *Session) Tokens() (access, refresh string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessToken, s.refreshToken
}

// Refresh rotates the token pair now.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshLocked(ctx)
}

func (s *Session) refreshLocked(ctx context.Context) error {
	if s.refreshToken == "" {
		return errors.New("accounts: session has no refresh token")
	}

	data, err := s.client.RefreshTokens(ctx, s.refreshToken)
	if err != nil {
		return err
	}
	s.accessToken = data.AccessToken
	s.refreshToken = data.RefreshToken
	s.expiresAt = data.AccessTokenExpiresAt.Add(-refreshBuffer)
	return nil
}

// validToken holds the lock across a refresh so concurrent callers never
// present the same single-use refresh token twice.
func (s *Session) validToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if time.Now().Before(s.expiresAt) {
		return s.accessToken, nil
	}
	if err := s.refreshLocked(ctx); err != nil {
		return "", err
	}
	return s.accessToken, nil
}

// Logout ends the session on the server and forgets the tokens.
func (s *Session) Logout(ctx context.Context) error {
	token, err := s.validToken(ctx)
	if err != nil {
		return err
	}
	resp, err := s.client.doJSON(ctx, http.MethodPost, UsersPath+"/logout", token, nil)
	if err != nil {
		return err
	}
	if _, err := decodeData[Empty](resp, http.StatusOK); err != nil {
		return err
	}

	s.mu.Lock()
	s.accessToken, s.refreshToken = "", ""
	s.expiresAt = time.Time{}
	s.mu.Unlock()
	return nil
}

func (s *Session) CurrentUser(ctx context.Context) (*User, error) {
	token, err := s.validToken(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.doJSON(ctx, http.MethodGet, UsersPath+"/current-user", token, nil)
	if err != nil {
		return nil, err
	}
	return s.userResponse(resp)
}

func (s *Session) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	token, err := s.validToken(ctx)
	if err != nil {
		return err
	}
	resp, err := s.client.doJSON(ctx, http.MethodPost, UsersPath+"/change-password", token,
		ChangePasswordRequest{OldPassword: oldPassword, NewPassword: newPassword})
	if err != nil {
		return err
	}
	_, err = decodeData[Empty](resp, http.StatusOK)
	return err
}

func (s *Session) UpdateAccount(ctx context.Context, req UpdateAccountRequest) (*User, error) {
	token, err := s.validToken(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.doJSON(ctx, http.MethodPatch, UsersPath+"/update-account", token, req)
	if err != nil {
		return nil, err
	}
	return s.userResponse(resp)
}

func (s *Session) UpdateAvatar(ctx context.Context, f File) (*User, error) {
	return s.uploadImage(ctx, "/avatar", "avatar", f)
}

func (s *Session) UpdateCoverImage(ctx context.Context, f File) (*User, error) {
	return s.uploadImage(ctx, "/cover-image", "coverImage", f)
}

func (s *Session) uploadImage(ctx context.Context, path, field string, f File) (*User, error) {
	token, err := s.validToken(ctx)
	if err != nil {
		return nil, err
	}
	body, contentType, err := multipartBody(nil, map[string]File{field: f})
	if err != nil {
		return nil, err
	}
	resp, err := s.client.doRequest(ctx, http.MethodPatch, UsersPath+path, token, body, contentType)
	if err != nil {
		return nil, err
	}
	return s.userResponse(resp)
}

func (s *Session) userResponse(resp *http.Response) (*User, error) {
	u, err := decodeData[User](resp, http.StatusOK)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.user = u
	s.mu.Unlock()
	return &u, nil
}
