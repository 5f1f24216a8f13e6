package mongo

import (
	"context"
	"time"

	"github.com/aussiebroadwan/clipshare/internal/accounts/domain"
	"github.com/aussiebroadwan/clipshare/internal/accounts/store"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

var unsetSession = bson.D{{Key: "$unset", Value: bson.D{{Key: "refreshToken", Value: ""}}}}

type sessionsRepo struct {
	c *mongo.Collection
}

func setSession(s domain.Session) bson.D {
	return bson.D{{Key: "$set", Value: bson.D{
		{Key: "refreshToken", Value: sessionDoc{Hash: s.TokenHash, ExpiresAt: s.ExpiresAt.UTC()}},
	}}}
}

func (r *sessionsRepo) SetSession(ctx context.Context, userID string, s domain.Session) error {
	res, err := r.c.UpdateOne(ctx, bson.D{{Key: "_id", Value: userID}}, setSession(s))
	if err != nil {
		return mapError(err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *sessionsRepo) RotateSession(ctx context.Context, userID, presentedHash string, next domain.Session) error {
	res, err := r.c.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: userID}, {Key: "refreshToken.hash", Value: presentedHash}},
		setSession(next))
	if err != nil {
		return mapError(err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *sessionsRepo) ClearSession(ctx context.Context, userID string) error {
	_, err := r.c.UpdateOne(ctx, bson.D{{Key: "_id", Value: userID}}, unsetSession)
	return mapError(err)
}

func (r *sessionsRepo) ClearExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.c.UpdateMany(ctx,
		bson.D{{Key: "refreshToken.expiresAt", Value: bson.D{{Key: "$lte", Value: now.UTC()}}}},
		unsetSession)
	if err != nil {
		return 0, mapError(err)
	}
	return res.ModifiedCount, nil
}
