package domain

import "time"

// TokenPair is what a successful login or refresh hands back.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// TokenSource records where a presented refresh token came from.
type TokenSource int

const (
	Absent TokenSource = iota
	FromCookie
	FromBody
)

func (s TokenSource) String() string {
	switch s {
	case FromCookie:
		return "cookie"
	case FromBody:
		return "body"
	default:
		return "absent"
	}
}

// PresentedToken is a refresh token as resolved at the transport boundary.
// A cookie always wins over a body value.
type PresentedToken struct {
	Source TokenSource
	Value  string
}

// ResolvePresentedToken picks the cookie value when set, then the body value.
func ResolvePresentedToken(cookie, body string) PresentedToken {
	switch {
	case cookie != "":
		return PresentedToken{Source: FromCookie, Value: cookie}
	case body != "":
		return PresentedToken{Source: FromBody, Value: body}
	default:
		return PresentedToken{Source: Absent}
	}
}
