package sqlstore

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/aussiebroadwan/toupiao/internal/toupiao/domain"
	"github.com/aussiebroadwan/toupiao/internal/toupiao/store"
)

const pollColumns = `id, owner_id, title, description, max_choices, status, closes_at, closed_at, created_at`

type pollsRepo struct {
	q querier
}

func scanPoll(row rowScanner, extra ...any) (domain.Poll, error) {
	var (
		p        domain.Poll
		status   string
		closesAt sql.NullTime
		closedAt sql.NullTime
	)
	dest := append([]any{&p.ID, &p.OwnerID, &p.Title, &p.Description, &p.MaxChoices, &status, &closesAt, &closedAt, &p.CreatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return domain.Poll{}, err
	}
	p.Status = domain.PollStatus(status)
	p.ClosesAt = nullTimePtr(closesAt)
	p.ClosedAt = nullTimePtr(closedAt)
	p.CreatedAt = p.CreatedAt.UTC()
	return p, nil
}

func (r *pollsRepo) CreatePoll(ctx context.Context, p domain.Poll) error {
	_, err := r.q.exec(ctx, `INSERT INTO polls (`+pollColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.OwnerID, p.Title, p.Description, p.MaxChoices, string(p.Status),
		tsPtr(p.ClosesAt), tsPtr(p.ClosedAt), ts(p.CreatedAt))
	if err != nil {
		return err
	}
	for _, o := range p.Options {
		_, err := r.q.exec(ctx, `INSERT INTO poll_options (id, poll_id, label, position) VALUES (?, ?, ?, ?)`,
			o.ID, p.ID, o.Label, o.Position)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *pollsRepo) GetPoll(ctx context.Context, id string) (domain.Poll, error) {
	p, err := scanPoll(r.q.queryRow(ctx, `SELECT `+pollColumns+` FROM polls WHERE id = ?`, id))
	if err != nil {
		return domain.Poll{}, mapNotFound(err)
	}

	rows, err := r.q.query(ctx, `SELECT id, poll_id, label, position FROM poll_options
		WHERE poll_id = ? ORDER BY position`, id)
	if err != nil {
		return domain.Poll{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var o domain.PollOption
		if err := rows.Scan(&o.ID, &o.PollID, &o.Label, &o.Position); err != nil {
			return domain.Poll{}, err
		}
		p.Options = append(p.Options, o)
	}
	return p, rows.Err()
}

func (r *pollsRepo) ListPolls(ctx context.Context, f store.PollFilter) ([]domain.Poll, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		where = append(where, "p.status = ?")
		args = append(args, string(f.Status))
	}
	if f.OwnerID != "" {
		where = append(where, "p.owner_id = ?")
		args = append(args, f.OwnerID)
	}

	query := `SELECT ` + prefixed("p", pollColumns) + `,
		(SELECT COUNT(*) FROM votes v WHERE v.poll_id = p.id)
		FROM polls p`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY p.created_at DESC, p.id DESC`

	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ? OFFSET ?`
	args = append(args, limit, max(f.Offset, 0))

	rows, err := r.q.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var polls []domain.Poll
	for rows.Next() {
		var voters int
		p, err := scanPoll(rows, &voters)
		if err != nil {
			return nil, err
		}
		p.Voters = voters
		polls = append(polls, p)
	}
	return polls, rows.Err()
}

func (r *pollsRepo) ClosePoll(ctx context.Context, id string, now time.Time) error {
	res, err := r.q.exec(ctx, `UPDATE polls SET status = ?, closed_at = ? WHERE id = ? AND status = ?`,
		string(domain.PollClosed), ts(now), id, string(domain.PollOpen))
	if err != nil {
		return err
	}
	return expectOne(res)
}

func (r *pollsRepo) DeletePoll(ctx context.Context, id string) error {
	res, err := r.q.exec(ctx, `DELETE FROM polls WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func (r *pollsRepo) CloseExpiredPolls(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.q.exec(ctx, `UPDATE polls SET status = ?, closed_at = closes_at
		WHERE status = ? AND closes_at IS NOT NULL AND closes_at <= ?`,
		string(domain.PollClosed), string(domain.PollOpen), ts(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
