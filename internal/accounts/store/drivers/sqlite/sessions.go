package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/clipshare/internal/accounts/domain"
)

type sessionsRepo struct {
	db *sql.DB
}

func (r *sessionsRepo) SetSession(ctx context.Context, userID string, s domain.Session) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET refresh_token_hash = ?, refresh_token_expires_at = ?
		WHERE id = ?`, s.TokenHash, s.ExpiresAt.Unix(), userID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *sessionsRepo) RotateSession(ctx context.Context, userID, presentedHash string, next domain.Session) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET refresh_token_hash = ?, refresh_token_expires_at = ?
		WHERE id = ? AND refresh_token_hash = ?`,
		next.TokenHash, next.ExpiresAt.Unix(), userID, presentedHash)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *sessionsRepo) ClearSession(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET refresh_token_hash = NULL, refresh_token_expires_at = NULL
		WHERE id = ?`, userID)
	return err
}

func (r *sessionsRepo) ClearExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET refresh_token_hash = NULL, refresh_token_expires_at = NULL
		WHERE refresh_token_hash IS NOT NULL AND refresh_token_expires_at <= ?`, now.Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
