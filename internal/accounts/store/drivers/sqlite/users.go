package sqlite

import (
	"context"
	"database/sql"

	"github.com/aussiebroadwan/clipshare/internal/accounts/domain"
	"github.com/aussiebroadwan/clipshare/internal/accounts/store"
)

type usersRepo struct {
	db *sql.DB
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	var (
		tokenHash sql.NullString
		expiresAt sql.NullInt64
	)
	if u.Session != nil {
		tokenHash = sql.NullString{String: u.Session.TokenHash, Valid: true}
		expiresAt = sql.NullInt64{Int64: u.Session.ExpiresAt.Unix(), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.Email, u.FullName, u.AvatarURL, u.CoverImageURL, u.PasswordHash,
		tokenHash, expiresAt, u.CreatedAt.UTC(), u.UpdatedAt.UTC(),
	)
	return mapConstraint(err)
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

func (r *usersRepo) GetUserByIdentifier(ctx context.Context, username, email string) (domain.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE (?1 <> '' AND username = ?1) OR (?2 <> '' AND email = ?2)
		LIMIT 1`, username, email))
}

func (r *usersRepo) GetPublicUser(ctx context.Context, id string) (domain.PublicUser, error) {
	return scanPublicUser(r.db.QueryRowContext(ctx,
		`SELECT `+publicColumns+` FROM users WHERE id = ?`, id))
}

func (r *usersRepo) UpdatePasswordHash(ctx context.Context, id, hash string, endSession bool) error {
	query := `UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`
	if endSession {
		query = `UPDATE users
			SET password_hash = ?, updated_at = ?, refresh_token_hash = NULL, refresh_token_expires_at = NULL
			WHERE id = ?`
	}

	res, err := r.db.ExecContext(ctx, query, hash, now(), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *usersRepo) UpdateProfile(ctx context.Context, id, fullName, email string) (domain.PublicUser, error) {
	u, err := scanPublicUser(r.db.QueryRowContext(ctx, `
		UPDATE users SET full_name = ?, email = ?, updated_at = ?
		WHERE id = ?
		RETURNING `+publicColumns, fullName, email, now(), id))
	if err != nil {
		return domain.PublicUser{}, mapConstraint(err)
	}
	return u, nil
}

func (r *usersRepo) UpdateAvatar(ctx context.Context, id, url string) (domain.PublicUser, error) {
	return scanPublicUser(r.db.QueryRowContext(ctx, `
		UPDATE users SET avatar_url = ?, updated_at = ?
		WHERE id = ?
		RETURNING `+publicColumns, url, now(), id))
}

func (r *usersRepo) UpdateCoverImage(ctx context.Context, id, url string) (domain.PublicUser, error) {
	return scanPublicUser(r.db.QueryRowContext(ctx, `
		UPDATE users SET cover_image_url = ?, updated_at = ?
		WHERE id = ?
		RETURNING `+publicColumns, url, now(), id))
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
