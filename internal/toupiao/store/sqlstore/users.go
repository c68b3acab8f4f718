package sqlstore

import (
	"context"
	"database/sql"

	"github.com/aussiebroadwan/toupiao/internal/toupiao/domain"
	"github.com/aussiebroadwan/toupiao/internal/toupiao/store"
)

const userColumns = `id, user_name, normalized_user_name, email, normalized_email,
	email_confirmed, password_hash, security_stamp, concurrency_stamp,
	lockout_enabled, lockout_end, access_failed_count, two_factor_enabled,
	authenticator_key, created_at, updated_at`

type usersRepo struct {
	q querier
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (domain.User, error) {
	var (
		u          domain.User
		lockoutEnd sql.NullTime
		authKey    sql.NullString
	)
	err := row.Scan(
		&u.ID, &u.UserName, &u.NormalizedUserName, &u.Email, &u.NormalizedEmail,
		&u.EmailConfirmed, &u.PasswordHash, &u.SecurityStamp, &u.ConcurrencyStamp,
		&u.LockoutEnabled, &lockoutEnd, &u.AccessFailedCount, &u.TwoFactorEnabled,
		&authKey, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, err
	}
	u.LockoutEnd = nullTimePtr(lockoutEnd)
	u.AuthenticatorKey = nullStringPtr(authKey)
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return u, nil
}

func (r *usersRepo) getOne(ctx context.Context, where string, arg any) (domain.User, error) {
	row := r.q.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg)
	u, err := scanUser(row)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return u, nil
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	return r.getOne(ctx, `id = ?`, id)
}

func (r *usersRepo) GetUserByNormalizedName(ctx context.Context, normalizedName string) (domain.User, error) {
	return r.getOne(ctx, `normalized_user_name = ?`, normalizedName)
}

func (r *usersRepo) GetUserByNormalizedEmail(ctx context.Context, normalizedEmail string) (domain.User, error) {
	return r.getOne(ctx, `normalized_email = ? ORDER BY created_at, id LIMIT 1`, normalizedEmail)
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	_, err := r.q.exec(ctx, `INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.UserName, u.NormalizedUserName, u.Email, u.NormalizedEmail,
		u.EmailConfirmed, u.PasswordHash, u.SecurityStamp, u.ConcurrencyStamp,
		u.LockoutEnabled, tsPtr(u.LockoutEnd), u.AccessFailedCount, u.TwoFactorEnabled,
		stringPtrArg(u.AuthenticatorKey), ts(u.CreatedAt), ts(u.UpdatedAt),
	)
	return err
}

func (r *usersRepo) UpdateUser(ctx context.Context, u domain.User, expectedStamp string) error {
	res, err := r.q.exec(ctx, `UPDATE users SET
			user_name = ?, normalized_user_name = ?, email = ?, normalized_email = ?,
			email_confirmed = ?, password_hash = ?, security_stamp = ?, concurrency_stamp = ?,
			lockout_enabled = ?, lockout_end = ?, access_failed_count = ?,
			two_factor_enabled = ?, authenticator_key = ?, updated_at = ?
		WHERE id = ? AND concurrency_stamp = ?`,
		u.UserName, u.NormalizedUserName, u.Email, u.NormalizedEmail,
		u.EmailConfirmed, u.PasswordHash, u.SecurityStamp, u.ConcurrencyStamp,
		u.LockoutEnabled, tsPtr(u.LockoutEnd), u.AccessFailedCount,
		u.TwoFactorEnabled, stringPtrArg(u.AuthenticatorKey), ts(u.UpdatedAt),
		u.ID, expectedStamp,
	)
	if err != nil {
		return err
	}
	if err := expectOne(res); err != nil {
		if _, getErr := r.GetUserByID(ctx, u.ID); getErr == nil {
			return store.ErrConcurrencyFailure
		}
		return err
	}
	return nil
}

func (r *usersRepo) CountUsers(ctx context.Context) (int, error) {
	var n int
	err := r.q.queryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

func (r *usersRepo) ListUsers(ctx context.Context, limit, offset int) ([]domain.User, error) {
	rows, err := r.q.query(ctx, `SELECT `+userColumns+` FROM users
		ORDER BY created_at, id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectUsers(rows)
}

func collectUsers(rows *sql.Rows) ([]domain.User, error) {
	defer rows.Close()
	var users []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
