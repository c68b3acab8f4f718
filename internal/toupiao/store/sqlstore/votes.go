package sqlstore

import (
	"context"

	"github.com/aussiebroadwan/toupiao/internal/toupiao/domain"
)

type votesRepo struct {
	q querier
}

func (r *votesRepo) CreateVote(ctx context.Context, v domain.Vote) error {
	_, err := r.q.exec(ctx, `INSERT INTO votes (id, poll_id, user_id, created_at) VALUES (?, ?, ?, ?)`,
		v.ID, v.PollID, v.UserID, ts(v.CreatedAt))
	if err != nil {
		return err
	}
	for _, optionID := range v.OptionIDs {
		if _, err := r.q.exec(ctx, `INSERT INTO vote_choices (vote_id, option_id) VALUES (?, ?)`, v.ID, optionID); err != nil {
			return err
		}
	}
	return nil
}

func (r *votesRepo) GetVote(ctx context.Context, pollID, userID string) (domain.Vote, error) {
	var v domain.Vote
	err := r.q.queryRow(ctx, `SELECT id, poll_id, user_id, created_at FROM votes
		WHERE poll_id = ? AND user_id = ?`, pollID, userID).
		Scan(&v.ID, &v.PollID, &v.UserID, &v.CreatedAt)
	if err != nil {
		return domain.Vote{}, mapNotFound(err)
	}
	v.CreatedAt = v.CreatedAt.UTC()

	rows, err := r.q.query(ctx, `SELECT vc.option_id FROM vote_choices vc
		JOIN poll_options o ON o.id = vc.option_id
		WHERE vc.vote_id = ? ORDER BY o.position`, v.ID)
	if err != nil {
		return domain.Vote{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return domain.Vote{}, err
		}
		v.OptionIDs = append(v.OptionIDs, id)
	}
	return v, rows.Err()
}

func (r *votesRepo) Tally(ctx context.Context, pollID string) ([]domain.OptionTally, int, error) {
	rows, err := r.q.query(ctx, `SELECT o.id, o.label, o.position, COUNT(vc.vote_id)
		FROM poll_options o
		LEFT JOIN vote_choices vc ON vc.option_id = o.id
		WHERE o.poll_id = ?
		GROUP BY o.id, o.label, o.position
		ORDER BY o.position`, pollID)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var tallies []domain.OptionTally
	for rows.Next() {
		var t domain.OptionTally
		if err := rows.Scan(&t.OptionID, &t.Label, &t.Position, &t.Votes); err != nil {
			return nil, 0, err
		}
		tallies = append(tallies, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var voters int
	if err := r.q.queryRow(ctx, `SELECT COUNT(*) FROM votes WHERE poll_id = ?`, pollID).Scan(&voters); err != nil {
		return nil, 0, err
	}
	return tallies, voters, nil
}
