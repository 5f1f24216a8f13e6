// Package events announces account lifecycle changes to other services.
// Delivery is best effort: a failed publish is logged by the caller and never
// fails the operation that produced the event.
package events

import (
	"context"
	"errors"
	"time"
)

type Type string

const (
	UserRegistered    Type = "user.registered"
	SessionCreated    Type = "session.created"
	SessionRefreshed  Type = "session.refreshed"
	SessionEnded      Type = "session.ended"
	PasswordChanged   Type = "password.changed"
	ProfileUpdated    Type = "profile.updated"
	AvatarUpdated     Type = "avatar.updated"
	CoverImageUpdated Type = "cover_image.updated"
)

// Event carries identifiers only, never credentials or profile contents.
type Event struct {
	Type       Type      `json:"type"`
	UserID     string    `json:"userId"`
	OccurredAt time.Time `json:"occurredAt"`
}

func New(t Type, userID string) Event {
	return Event{Type: t, UserID: userID, OccurredAt: time.Now().UTC()}
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Multi fans an event out to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
