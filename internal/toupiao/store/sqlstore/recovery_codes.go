package sqlstore

import "context"

type recoveryCodesRepo struct {
	q querier
}

func (r *recoveryCodesRepo) ReplaceRecoveryCodes(ctx context.Context, userID string, codeHashes []string) error {
	if err := r.DeleteRecoveryCodes(ctx, userID); err != nil {
		return err
	}
	for _, h := range codeHashes {
		if _, err := r.q.exec(ctx, `INSERT INTO recovery_codes (user_id, code_hash) VALUES (?, ?)`, userID, h); err != nil {
			return err
		}
	}
	return nil
}

func (r *recoveryCodesRepo) ConsumeRecoveryCode(ctx context.Context, userID, codeHash string) (bool, error) {
	res, err := r.q.exec(ctx, `DELETE FROM recovery_codes WHERE user_id = ? AND code_hash = ?`, userID, codeHash)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *recoveryCodesRepo) CountRecoveryCodes(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.q.queryRow(ctx, `SELECT COUNT(*) FROM recovery_codes WHERE user_id = ?`, userID).Scan(&n)
	return n, err
}

func (r *recoveryCodesRepo) DeleteRecoveryCodes(ctx context.Context, userID string) error {
	_, err := r.q.exec(ctx, `DELETE FROM recovery_codes WHERE user_id = ?`, userID)
	return err
}
