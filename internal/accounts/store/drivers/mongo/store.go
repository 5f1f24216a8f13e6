// Package mongo stores each account as a single document, session slot
// included, so every mutation is one atomic document update.
package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/clipshare/internal/accounts/domain"
	"github.com/aussiebroadwan/clipshare/internal/accounts/store"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

const usersCollection = "users"

type Store struct {
	client *mongo.Client
	users  *mongo.Collection
}

// NewStore connects to uri and binds to the named database.
func NewStore(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(options.Client().
		ApplyURI(uri).
		SetAppName("clipshare-accounts").
		SetTimeout(10 * time.Second))
	if err != nil {
		return nil, err
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	return &Store{
		client: client,
		users:  client.Database(database).Collection(usersCollection),
	}, nil
}

func (s *Store) Close() error { return s.client.Disconnect(context.Background()) }

func (s *Store) Ping(ctx context.Context) error { return s.client.Ping(ctx, readpref.Primary()) }

func (s *Store) Users() store.Users       { return &usersRepo{c: s.users} }
func (s *Store) Sessions() store.Sessions { return &sessionsRepo{c: s.users} }

// ApplyMigrations creates the unique and housekeeping indexes. Creating an
// index that already exists with the same keys is a no-op.
func (s *Store) ApplyMigrations(ctx context.Context) error {
	_, err := s.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetName("username_unique").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName("email_unique").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "refreshToken.expiresAt", Value: 1}},
			Options: options.Index().SetName("refresh_token_expires_at").SetSparse(true),
		},
	})
	return err
}

type userDoc struct {
	ID           string      `bson:"_id"`
	Username     string      `bson:"username"`
	Email        string      `bson:"email"`
	FullName     string      `bson:"fullName"`
	Avatar       string      `bson:"avatar"`
	CoverImage   string      `bson:"coverImage"`
	Password     string      `bson:"password,omitempty"`
	RefreshToken *sessionDoc `bson:"refreshToken,omitempty"`
	CreatedAt    time.Time   `bson:"createdAt"`
	UpdatedAt    time.Time   `bson:"updatedAt"`
}

type sessionDoc struct {
	Hash      string    `bson:"hash"`
	ExpiresAt time.Time `bson:"expiresAt"`
}

func toDoc(u domain.User) userDoc {
	d := userDoc{
		ID:         u.ID,
		Username:   u.Username,
		Email:      u.Email,
		FullName:   u.FullName,
		Avatar:     u.AvatarURL,
		CoverImage: u.CoverImageURL,
		Password:   u.PasswordHash,
		CreatedAt:  u.CreatedAt.UTC(),
		UpdatedAt:  u.UpdatedAt.UTC(),
	}
	if u.Session != nil {
		d.RefreshToken = &sessionDoc{Hash: u.Session.TokenHash, ExpiresAt: u.Session.ExpiresAt.UTC()}
	}
	return d
}

func (d userDoc) user() domain.User {
	u := domain.User{
		ID:            d.ID,
		Username:      d.Username,
		Email:         d.Email,
		FullName:      d.FullName,
		AvatarURL:     d.Avatar,
		CoverImageURL: d.CoverImage,
		PasswordHash:  d.Password,
		CreatedAt:     d.CreatedAt.UTC(),
		UpdatedAt:     d.UpdatedAt.UTC(),
	}
	if d.RefreshToken != nil && d.RefreshToken.Hash != "" {
		u.Session = &domain.Session{TokenHash: d.RefreshToken.Hash, ExpiresAt: d.RefreshToken.ExpiresAt.UTC()}
	}
	return u
}

func mapError(err error) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return store.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return store.ErrAlreadyExists
	default:
		return err
	}
}
