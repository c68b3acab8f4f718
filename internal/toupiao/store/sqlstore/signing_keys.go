package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/toupiao/internal/toupiao/domain"
)

const signingKeyColumns = `id, kid, algorithm, private_key_encrypted, created_at, retired_at, expires_at`

type signingKeysRepo struct {
	q querier
}

func (r *signingKeysRepo) CreateSigningKey(ctx context.Context, k domain.SigningKey) error {
	_, err := r.q.exec(ctx, `INSERT INTO signing_keys (`+signingKeyColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		k.ID, k.Kid, k.Algorithm, k.PrivateKeyEncrypted, ts(k.CreatedAt), tsPtr(k.RetiredAt), ts(k.ExpiresAt))
	return err
}

func (r *signingKeysRepo) list(ctx context.Context, where string, args ...any) ([]domain.SigningKey, error) {
	rows, err := r.q.query(ctx, `SELECT `+signingKeyColumns+` FROM signing_keys WHERE `+where+`
		ORDER BY created_at DESC, id DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []domain.SigningKey
	for rows.Next() {
		var (
			k       domain.SigningKey
			retired sql.NullTime
		)
		if err := rows.Scan(&k.ID, &k.Kid, &k.Algorithm, &k.PrivateKeyEncrypted, &k.CreatedAt, &retired, &k.ExpiresAt); err != nil {
			return nil, err
		}
		k.CreatedAt = k.CreatedAt.UTC()
		k.ExpiresAt = k.ExpiresAt.UTC()
		k.RetiredAt = nullTimePtr(retired)
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (r *signingKeysRepo) ListActiveSigningKeys(ctx context.Context, now time.Time) ([]domain.SigningKey, error) {
	return r.list(ctx, `retired_at IS NULL AND expires_at > ?`, ts(now))
}

func (r *signingKeysRepo) ListAllSigningKeys(ctx context.Context, now time.Time) ([]domain.SigningKey, error) {
	return r.list(ctx, `expires_at > ?`, ts(now))
}

func (r *signingKeysRepo) RetireSigningKey(ctx context.Context, kid string, retiredAt, expiresAt time.Time) error {
	res, err := r.q.exec(ctx, `UPDATE signing_keys SET retired_at = ?, expires_at = ?
		WHERE kid = ? AND retired_at IS NULL`, ts(retiredAt), ts(expiresAt), kid)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func (r *signingKeysRepo) DeleteExpiredSigningKeys(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.q.exec(ctx, `DELETE FROM signing_keys WHERE expires_at <= ?`, ts(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
