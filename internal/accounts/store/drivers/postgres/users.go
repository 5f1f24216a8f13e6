package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/clipshare/internal/accounts/domain"
)

type usersRepo struct {
	db *sql.DB
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	var (
		tokenHash sql.NullString
		expiresAt sql.NullTime
	)
	if u.Session != nil {
		tokenHash = sql.NullString{String: u.Session.TokenHash, Valid: true}
		expiresAt = sql.NullTime{Time: u.Session.ExpiresAt, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		u.ID, u.Username, u.Email, u.FullName, u.AvatarURL, u.CoverImageURL, u.PasswordHash,
		tokenHash, expiresAt, u.CreatedAt, u.UpdatedAt,
	)
	return mapError(err)
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *usersRepo) GetUserByIdentifier(ctx context.Context, username, email string) (domain.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE ($1 <> '' AND username = $1) OR ($2 <> '' AND email = $2)
		LIMIT 1`, username, email))
}

func (r *usersRepo) GetPublicUser(ctx context.Context, id string) (domain.PublicUser, error) {
	return scanPublicUser(r.db.QueryRowContext(ctx,
		`SELECT `+publicColumns+` FROM users WHERE id = $1`, id))
}

func (r *usersRepo) UpdatePasswordHash(ctx context.Context, id, hash string, endSession bool) error {
	query := `UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3`
	if endSession {
		query = `UPDATE users
			SET password_hash = $1, updated_at = $2, refresh_token_hash = NULL, refresh_token_expires_at = NULL
			WHERE id = $3`
	}

	res, err := r.db.ExecContext(ctx, query, hash, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *usersRepo) UpdateProfile(ctx context.Context, id, fullName, email string) (domain.PublicUser, error) {
	return scanPublicUser(r.db.QueryRowContext(ctx, `
		UPDATE users SET full_name = $1, email = $2, updated_at = $3
		WHERE id = $4
		RETURNING `+publicColumns, fullName, email, time.Now().UTC(), id))
}

func (r *usersRepo) UpdateAvatar(ctx context.Context, id, url string) (domain.PublicUser, error) {
	return scanPublicUser(r.db.QueryRowContext(ctx, `
		UPDATE users SET avatar_url = $1, updated_at = $2
		WHERE id = $3
		RETURNING `+publicColumns, url, time.Now().UTC(), id))
}

func (r *usersRepo) UpdateCoverImage(ctx context.Context, id, url string) (domain.PublicUser, error) {
	return scanPublicUser(r.db.QueryRowContext(ctx, `
		UPDATE users SET cover_image_url = $1, updated_at = $2
		WHERE id = $3
		RETURNING `+publicColumns, url, time.Now().UTC(), id))
}
