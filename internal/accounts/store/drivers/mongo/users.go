package mongo

import (
	"context"
	"time"

	"github.com/aussiebroadwan/clipshare/internal/accounts/domain"
	"github.com/aussiebroadwan/clipshare/internal/accounts/store"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// publicProjection strips the credential fields from reads that feed
// responses.
var publicProjection = bson.D{{Key: "password", Value: 0}, {Key: "refreshToken", Value: 0}}

type usersRepo struct {
	c *mongo.Collection
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	_, err := r.c.InsertOne(ctx, toDoc(u))
	return mapError(err)
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	return r.findOne(ctx, bson.D{{Key: "_id", Value: id}})
}

func (r *usersRepo) GetUserByIdentifier(ctx context.Context, username, email string) (domain.User, error) {
	var or bson.A
	if username != "" {
		or = append(or, bson.D{{Key: "username", Value: username}})
	}
	if email != "" {
		or = append(or, bson.D{{Key: "email", Value: email}})
	}
	if len(or) == 0 {
		return domain.User{}, store.ErrNotFound
	}
	return r.findOne(ctx, bson.D{{Key: "$or", Value: or}})
}

func (r *usersRepo) GetPublicUser(ctx context.Context, id string) (domain.PublicUser, error) {
	var d userDoc
	err := r.c.FindOne(ctx, bson.D{{Key: "_id", Value: id}},
		options.FindOne().SetProjection(publicProjection)).Decode(&d)
	if err != nil {
		return domain.PublicUser{}, mapError(err)
	}
	return d.user().Public(), nil
}

func (r *usersRepo) UpdatePasswordHash(ctx context.Context, id, hash string, endSession bool) error {
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "password", Value: hash},
		{Key: "updatedAt", Value: time.Now().UTC()},
	}}}
	if endSession {
		update = append(update, bson.E{Key: "$unset", Value: bson.D{{Key: "refreshToken", Value: ""}}})
	}

	res, err := r.c.UpdateOne(ctx, bson.D{{Key: "_id", Value: id}}, update)
	if err != nil {
		return mapError(err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *usersRepo) UpdateProfile(ctx context.Context, id, fullName, email string) (domain.PublicUser, error) {
	return r.setPublic(ctx, id, bson.D{
		{Key: "fullName", Value: fullName},
		{Key: "email", Value: email},
	})
}

func (r *usersRepo) UpdateAvatar(ctx context.Context, id, url string) (domain.PublicUser, error) {
	return r.setPublic(ctx, id, bson.D{{Key: "avatar", Value: url}})
}

func (r *usersRepo) UpdateCoverImage(ctx context.Context, id, url string) (domain.PublicUser, error) {
	return r.setPublic(ctx, id, bson.D{{Key: "coverImage", Value: url}})
}

func (r *usersRepo) findOne(ctx context.Context, filter bson.D) (domain.User, error) {
	var d userDoc
	if err := r.c.FindOne(ctx, filter).Decode(&d); err != nil {
		return domain.User{}, mapError(err)
	}
	return d.user(), nil
}

// setPublic applies fields plus updatedAt and returns the document as it
// looks afterwards.
func (r *usersRepo) setPublic(ctx context.Context, id string, fields bson.D) (domain.PublicUser, error) {
	fields = append(fields, bson.E{Key: "updatedAt", Value: time.Now().UTC()})

	var d userDoc
	err := r.c.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: id}},
		bson.D{{Key: "$set", Value: fields}},
		options.FindOneAndUpdate().
			SetReturnDocument(options.After).
			SetProjection(publicProjection),
	).Decode(&d)
	if err != nil {
		return domain.PublicUser{}, mapError(err)
	}
	return d.user().Public(), nil
}
