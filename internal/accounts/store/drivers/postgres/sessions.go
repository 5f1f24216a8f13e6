package postgres

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
		UPDATE users SET refresh_token_hash = $1, refresh_token_expires_at = $2
		WHERE id = $3`, s.TokenHash, s.ExpiresAt, userID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// RotateSession relies on the row lock taken by UPDATE: a concurrent rotation
// re-evaluates the WHERE clause after the winner commits and matches nothing.
func (r *sessionsRepo) RotateSession(ctx context.Context, userID, presentedHash string, next domain.Session) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET refresh_token_hash = $1, refresh_token_expires_at = $2
		WHERE id = $3 AND refresh_token_hash = $4`,
		next.TokenHash, next.ExpiresAt, userID, presentedHash)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *sessionsRepo) ClearSession(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET refresh_token_hash = NULL, refresh_token_expires_at = NULL
		WHERE id = $1`, userID)
	return err
}

func (r *sessionsRepo) ClearExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET refresh_token_hash = NULL, refresh_token_expires_at = NULL
		WHERE refresh_token_hash IS NOT NULL AND refresh_token_expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
