package accountsdk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// UsersPath is the prefix of the account endpoints.
const UsersPath = "/api/v1/users"

// Client is a client for the clipshare accounts service. It provides the
// unauthenticated operations and creates authenticated Sessions.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Register creates an account. The avatar is required.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	files := map[string]File{"avatar": req.Avatar}
	if req.CoverImage != nil {
		files["coverImage"] = *req.CoverImage
	}

	body, contentType, err := multipartBody(map[string]string{
		"fullName": req.FullName,
		"email":    req.Email,
		"username": req.Username,
		"password": req.Password,
	}, files)
	if err != nil {
		return nil, err
	}

	resp, err := c.doRequest(ctx, http.MethodPost, UsersPath+"/register", "", body, contentType)
	if err != nil {
		return nil, err
	}
	u, err := decodeData[User](resp, http.StatusCreated)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Login authenticates and returns a Session holding the issued tokens.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	resp, err := c.doJSON(ctx, http.MethodPost, UsersPath+"/login", "", req)
	if err != nil {
		return nil, err
	}
	data, err := decodeData[LoginData](resp, http.StatusOK)
	if err != nil {
		return nil, err
	}

	s := c.NewSessionFromTokens(data.AccessToken, data.RefreshToken, data.AccessTokenExpiresAt)
	s.user = data.User
	return s, nil
}

// RefreshTokens exchanges a refresh token for a new pair. The presented
// token is spent whether or not the caller keeps the result.
func (c *Client) RefreshTokens(ctx context.Context, refreshToken string) (*TokenData, error) {
	resp, err := c.doJSON(ctx, http.MethodPost, UsersPath+"/refresh-token", "", RefreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return nil, err
	}
	data, err := decodeData[TokenData](resp, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return &data, nil
}

// NewSessionFromTokens creates a session from tokens obtained elsewhere.
func (c *Client) NewSessionFromTokens(accessToken, refreshToken string, accessExpiresAt time.Time) *Session {
	return &Session{
		client:       c,
		accessToken:  accessToken,
		refreshToken: refreshToken,
		expiresAt:    accessExpiresAt.Add(-refreshBuffer),
	}
}

// GetLiveness calls /livez.
func (c *Client) GetLiveness(ctx context.Context) (*HealthResponse, error) {
	return c.health(ctx, "/livez")
}

// GetReadiness calls /readyz. A degraded service answers 503, which is
// returned as an *APIError alongside the decoded body.
func (c *Client) GetReadiness(ctx context.Context) (*HealthResponse, error) {
	return c.health(ctx, "/readyz")
}

func (c *Client) health(ctx context.Context, path string) (*HealthResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, path, "", nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var h HealthResponse
	if err := json.Unmarshal(body, &h); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return &h, &APIError{StatusCode: resp.StatusCode, Message: h.Status}
	}
	return &h, nil
}
