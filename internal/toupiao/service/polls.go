package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/aussiebroadwan/toupiao/internal/toupiao/domain"
	"github.com/aussiebroadwan/toupiao/internal/toupiao/store"
	"github.com/aussiebroadwan/toupiao/pkg/idx"
	"github.com/aussiebroadwan/toupiao/pkg/slogx"
	"github.com/microcosm-cc/bluemonday"
)

// CreatePollInput is the poll form. Options holds one label per entry;
// blank entries are dropped before validation.
type CreatePollInput struct {
	Title       string     `validate:"required,max=200"`
	Description string     `validate:"max=4000"`
	Options     []string   `validate:"min=2,max=20,unique,dive,required,max=200"`
	MaxChoices  int        `validate:"min=1"`
	ClosesAt    *time.Time
}

// PollService runs the voting side of the site.
type PollService struct {
	Store     store.Store
	Sanitizer *bluemonday.Policy
	Clock     Clock
}

func NewPollService(st store.Store) *PollService {
	return &PollService{Store: st, Sanitizer: bluemonday.UGCPolicy()}
}

func mapPollErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrPollNotFound
	}
	return err
}

// Create stores a new open poll owned by owner.
func (s *PollService) Create(ctx context.Context, owner domain.User, in CreatePollInput) (domain.Poll, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)

	labels := make([]string, 0, len(in.Options))
	for _, o := range in.Options {
		if o = strings.TrimSpace(o); o != "" {
			labels = append(labels, o)
		}
	}
	in.Options = labels
	if in.MaxChoices == 0 {
		in.MaxChoices = 1
	}

	if err := validateStruct(in); err != nil {
		return domain.Poll{}, err
	}
	if in.MaxChoices > len(labels) {
		return domain.Poll{}, &ValidationError{Fields: []FieldError{{Field: "MaxChoices", Tag: "lte", Param: fmt.Sprint(len(labels))}}}
	}

	now := s.Clock.now()
	if in.ClosesAt != nil && !in.ClosesAt.After(now) {
		return domain.Poll{}, &ValidationError{Fields: []FieldError{{Field: "ClosesAt", Tag: "gt"}}}
	}

	p := domain.Poll{
		ID:          idx.NewAt(now).String(),
		OwnerID:     owner.ID,
		Title:       in.Title,
		Description: s.sanitize(in.Description),
		MaxChoices:  in.MaxChoices,
		Status:      domain.PollOpen,
		ClosesAt:    in.ClosesAt,
		CreatedAt:   now,
	}
	for i, label := range labels {
		p.Options = append(p.Options, domain.PollOption{
			ID:       idx.NewAt(now).String(),
			PollID:   p.ID,
			Label:    label,
			Position: i,
		})
	}

	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		return tx.Polls().CreatePoll(ctx, p)
	})
	if err != nil {
		return domain.Poll{}, fmt.Errorf("create poll: %w", err)
	}

	slogx.FromContext(ctx).Info("poll created",
		slog.String("poll_id", p.ID),
		slog.String("owner_id", owner.ID),
		slog.Int("options", len(p.Options)),
	)
	return p, nil
}

func (s *PollService) sanitize(html string) string {
	if s.Sanitizer == nil {
		return bluemonday.UGCPolicy().Sanitize(html)
	}
	return s.Sanitizer.Sanitize(html)
}

func (s *PollService) Get(ctx context.Context, id string) (domain.Poll, error) {
	p, err := s.Store.Polls().GetPoll(ctx, id)
	return p, mapPollErr(err)
}

func (s *PollService) ListOpen(ctx context.Context, limit, offset int) ([]domain.Poll, error) {
	return s.Store.Polls().ListPolls(ctx, store.PollFilter{Status: domain.PollOpen, Limit: limit, Offset: offset})
}

func (s *PollService) ListAll(ctx context.Context, limit, offset int) ([]domain.Poll, error) {
	return s.Store.Polls().ListPolls(ctx, store.PollFilter{Limit: limit, Offset: offset})
}

func (s *PollService) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]domain.Poll, error) {
	return s.Store.Polls().ListPolls(ctx, store.PollFilter{OwnerID: ownerID, Limit: limit, Offset: offset})
}

// VoteOf returns the user's ballot and whether there is one.
func (s *PollService) VoteOf(ctx context.Context, pollID, userID string) (domain.Vote, bool, error) {
	v, err := s.Store.Votes().GetVote(ctx, pollID, userID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Vote{}, false, nil
	}
	if err != nil {
		return domain.Vote{}, false, err
	}
	return v, true, nil
}

// Vote records u's ballot. optionIDs must be distinct options of the poll,
// between one and the poll's MaxChoices.
func (s *PollService) Vote(ctx context.Context, u domain.User, pollID string, optionIDs []string) (domain.Vote, error) {
	if !u.EmailConfirmed {
		return domain.Vote{}, ErrNotAllowedVote
	}

	p, err := s.Get(ctx, pollID)
	if err != nil {
		return domain.Vote{}, err
	}
	now := s.Clock.now()
	if !p.AcceptsVotes(now) {
		return domain.Vote{}, ErrPollClosed
	}

	valid := make(map[string]struct{}, len(p.Options))
	for _, o := range p.Options {
		valid[o.ID] = struct{}{}
	}
	seen := make(map[string]struct{}, len(optionIDs))
	for _, id := range optionIDs {
		if _, ok := valid[id]; !ok {
			return domain.Vote{}, ErrInvalidChoice
		}
		if _, dup := seen[id]; dup {
			return domain.Vote{}, ErrInvalidChoice
		}
		seen[id] = struct{}{}
	}
	if len(optionIDs) == 0 || len(optionIDs) > p.MaxChoices {
		return domain.Vote{}, ErrInvalidChoice
	}

	v := domain.Vote{
		ID:        idx.NewAt(now).String(),
		PollID:    p.ID,
		UserID:    u.ID,
		OptionIDs: optionIDs,
		CreatedAt: now,
	}
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		return tx.Votes().CreateVote(ctx, v)
	})
	if errors.Is(err, store.ErrAlreadyExists) {
		return domain.Vote{}, ErrAlreadyVoted
	}
	if err != nil {
		return domain.Vote{}, fmt.Errorf("record vote: %w", err)
	}

	slogx.FromContext(ctx).Info("vote recorded", slog.String("poll_id", p.ID), slog.String("user_id", u.ID))
	return v, nil
}

// Results tallies the poll. Percentages are of voters, so they can sum past
// 100 on multiple choice polls.
func (s *PollService) Results(ctx context.Context, pollID string) (domain.PollResults, error) {
	p, err := s.Get(ctx, pollID)
	if err != nil {
		return domain.PollResults{}, err
	}
	tallies, voters, err := s.Store.Votes().Tally(ctx, pollID)
	if err != nil {
		return domain.PollResults{}, fmt.Errorf("tally poll: %w", err)
	}
	for i := range tallies {
		if voters > 0 {
			pct := float64(tallies[i].Votes) * 100 / float64(voters)
			tallies[i].Percent = math.Round(pct*10) / 10
		}
	}
	status := p.Status
	if status == domain.PollOpen && !p.AcceptsVotes(s.Clock.now()) {
		status = domain.PollClosed
	}
	return domain.PollResults{
		PollID:      p.ID,
		Title:       p.Title,
		Status:      status,
		TotalVoters: voters,
		Options:     tallies,
	}, nil
}

// Close ends voting. Only the owner or an admin may close a poll.
func (s *PollService) Close(ctx context.Context, actor domain.User, isAdmin bool, pollID string) error {
	p, err := s.Get(ctx, pollID)
	if err != nil {
		return err
	}
	if p.OwnerID != actor.ID && !isAdmin {
		return ErrForbidden
	}
	if p.Status == domain.PollClosed {
		return ErrPollClosed
	}
	if err := s.Store.Polls().ClosePoll(ctx, pollID, s.Clock.now()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrPollClosed
		}
		return err
	}
	slogx.FromContext(ctx).Info("poll closed", slog.String("poll_id", pollID), slog.String("by", actor.ID))
	return nil
}

// Delete removes a poll with its votes. Callers check the admin role.
func (s *PollService) Delete(ctx context.Context, pollID string) error {
	if err := s.Store.Polls().DeletePoll(ctx, pollID); err != nil {
		return mapPollErr(err)
	}
	slogx.FromContext(ctx).Info("poll deleted", slog.String("poll_id", pollID))
	return nil
}

// CloseExpired closes open polls whose deadline passed.
func (s *PollService) CloseExpired(ctx context.Context) (int64, error) {
	return s.Store.Polls().CloseExpiredPolls(ctx, s.Clock.now())
}
