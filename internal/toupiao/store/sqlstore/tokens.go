package sqlstore

import (
	"context"
	"time"

	"github.com/aussiebroadwan/toupiao/internal/toupiao/domain"
)

type tokensRepo struct {
	q querier
}

func (r *tokensRepo) CreateUserToken(ctx context.Context, t domain.UserToken) error {
	_, err := r.q.exec(ctx, `INSERT INTO user_tokens (id, user_id, purpose, token_hash, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, string(t.Purpose), t.TokenHash, ts(t.ExpiresAt), ts(t.CreatedAt))
	return err
}

func (r *tokensRepo) ConsumeUserToken(ctx context.Context, userID string, purpose domain.TokenPurpose, tokenHash string, now time.Time) error {
	res, err := r.q.exec(ctx, `DELETE FROM user_tokens
		WHERE user_id = ? AND purpose = ? AND token_hash = ? AND expires_at > ?`,
		userID, string(purpose), tokenHash, ts(now))
	if err != nil {
		return err
	}
	return expectOne(res)
}

func (r *tokensRepo) DeleteUserTokens(ctx context.Context, userID string, purpose domain.TokenPurpose) error {
	_, err := r.q.exec(ctx, `DELETE FROM user_tokens WHERE user_id = ? AND purpose = ?`, userID, string(purpose))
	return err
}

func (r *tokensRepo) DeleteExpiredUserTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.q.exec(ctx, `DELETE FROM user_tokens WHERE expires_at <= ?`, ts(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
