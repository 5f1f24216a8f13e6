package accountsdk

import (
	"io"
	"time"
)

// ============================================================================
// Envelopes
// ============================================================================

// Response is the envelope of every successful response.
type Response[T any] struct {
	StatusCode int    `json:"statusCode"`
	Data       T      `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

// ErrorResponse is the envelope of every failed response.
type ErrorResponse struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

// Empty is the data of responses that carry none.
type Empty struct{}

// ============================================================================
// Users
// ============================================================================

// User is the public view of an account. It never carries the password
// digest or the refresh token.
type User struct {
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	FullName   string    `json:"fullName"`
	Avatar     string    `json:"avatar"`
	CoverImage string    `json:"coverImage"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// File is an image sent as a multipart part.
type File struct {
	Name string
	Body io.Reader
}

// RegisterRequest is sent as multipart/form-data. CoverImage is optional.
type RegisterRequest struct {
	FullName   string
	Email      string
	Username   string
	Password   string
	Avatar     File
	CoverImage *File
}

type UpdateAccountRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

// ============================================================================
// Tokens
// ============================================================================

// LoginRequest identifies the user by username or email.
type LoginRequest struct {
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password"`
}

// LoginData is returned by the login endpoint. The tokens are also set as
// HttpOnly cookies.
type LoginData struct {
	User                 User      `json:"user"`
	AccessToken          string    `json:"accessToken"`
	RefreshToken         string    `json:"refreshToken"`
	AccessTokenExpiresAt time.Time `json:"accessTokenExpiresAt"`
}

// RefreshRequest carries the refresh token for clients that cannot send
// cookies. A refreshToken cookie takes precedence.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type TokenData struct {
	AccessToken          string    `json:"accessToken"`
	RefreshToken         string    `json:"refreshToken"`
	AccessTokenExpiresAt time.Time `json:"accessTokenExpiresAt"`
}

// ============================================================================
// Health
// ============================================================================

type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

type HealthChecks struct {
	Database string `json:"database"`
}
