package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aussiebroadwan/toupiao/internal/toupiao/domain"
	"github.com/stretchr/testify/require"
)

func TestCreatePoll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.createUser(t, "owner", "owner@example.com", true)

	p, err := f.polls.Create(ctx, owner, CreatePollInput{
		Title:       "  Lunch  ",
		Description: `<p>Pick <b>one</b></p><script>alert(1)</script>`,
		Options:     []string{"Noodles", "", "  Dumplings ", "Hotpot"},
	})
	require.NoError(t, err)
	require.Equal(t, "Lunch", p.Title)
	require.Equal(t, "<p>Pick <b>one</b></p>", p.Description)
	require.Equal(t, 1, p.MaxChoices)
	require.Equal(t, domain.PollOpen, p.Status)

	got, err := f.polls.Get(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, got.Options, 3)
	require.Equal(t, "Dumplings", got.Options[1].Label)

	_, err = f.polls.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrPollNotFound)
}

func TestCreatePollValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.createUser(t, "owner", "owner@example.com", true)

	tests := []struct {
		name  string
		in    CreatePollInput
		field string
	}{
		{"missing title", CreatePollInput{Options: []string{"a", "b"}}, "Title"},
		{"one option", CreatePollInput{Title: "t", Options: []string{"a", " "}}, "Options"},
		{"duplicate options", CreatePollInput{Title: "t", Options: []string{"a", "a"}}, "Options"},
		{"too many choices", CreatePollInput{Title: "t", Options: []string{"a", "b"}, MaxChoices: 3}, "MaxChoices"},
		{"negative choices", CreatePollInput{Title: "t", Options: []string{"a", "b"}, MaxChoices: -1}, "MaxChoices"},
		{"deadline in the past", CreatePollInput{Title: "t", Options: []string{"a", "b"}, ClosesAt: ptr(time.Now().Add(-time.Hour))}, "ClosesAt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.polls.Create(ctx, owner, tt.in)
			var ve *ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			require.True(t, ve.Has(tt.field), "got %v", ve)
		})
	}
}

func ptr[T any](v T) *T { return &v }

func TestVoteAndResults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.createUser(t, "owner", "owner@example.com", true)
	alice := f.createUser(t, "alice", "alice@example.com", true)
	bob := f.createUser(t, "bob", "bob@example.com", true)
	pending := f.createUser(t, "pending", "pending@example.com", false)

	p, err := f.polls.Create(ctx, owner, CreatePollInput{
		Title: "Weekend", Options: []string{"Hike", "Film", "Sleep"}, MaxChoices: 2,
	})
	require.NoError(t, err)
	hike, film, sleep := p.Options[0].ID, p.Options[1].ID, p.Options[2].ID

	_, err = f.polls.Vote(ctx, pending, p.ID, []string{hike})
	require.ErrorIs(t, err, ErrNotAllowedVote)

	_, err = f.polls.Vote(ctx, alice, p.ID, nil)
	require.ErrorIs(t, err, ErrInvalidChoice)
	_, err = f.polls.Vote(ctx, alice, p.ID, []string{hike, film, sleep})
	require.ErrorIs(t, err, ErrInvalidChoice, "more than max choices")
	_, err = f.polls.Vote(ctx, alice, p.ID, []string{hike, hike})
	require.ErrorIs(t, err, ErrInvalidChoice, "duplicate choice")
	_, err = f.polls.Vote(ctx, alice, p.ID, []string{"foreign"})
	require.ErrorIs(t, err, ErrInvalidChoice)

	_, err = f.polls.Vote(ctx, alice, p.ID, []string{hike, film})
	require.NoError(t, err)
	_, err = f.polls.Vote(ctx, alice, p.ID, []string{sleep})
	require.ErrorIs(t, err, ErrAlreadyVoted)
	_, err = f.polls.Vote(ctx, bob, p.ID, []string{hike})
	require.NoError(t, err)

	v, ok, err := f.polls.VoteOf(ctx, p.ID, alice.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.ElementsMatch(t, []string{hike, film}, v.OptionIDs)

	_, ok, err = f.polls.VoteOf(ctx, p.ID, owner.ID)
	require.NoError(t, err)
	require.False(t, ok)

	res, err := f.polls.Results(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, 2, res.TotalVoters)
	require.Equal(t, "Weekend", res.Title)
	require.Len(t, res.Options, 3)
	require.Equal(t, 2, res.Options[0].Votes)
	require.Equal(t, 100.0, res.Options[0].Percent)
	require.Equal(t, 50.0, res.Options[1].Percent)
	require.Equal(t, 0.0, res.Options[2].Percent)
}

func TestResultsWithoutVotes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.createUser(t, "owner", "owner@example.com", true)
	p, err := f.polls.Create(ctx, owner, CreatePollInput{Title: "Empty", Options: []string{"a", "b"}})
	require.NoError(t, err)

	res, err := f.polls.Results(ctx, p.ID)
	require.NoError(t, err)
	require.Zero(t, res.TotalVoters)
	for _, o := range res.Options {
		require.Zero(t, o.Percent)
	}
}

func TestClosePoll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.createUser(t, "owner", "owner@example.com", true)
	other := f.createUser(t, "other", "other@example.com", true)

	p, err := f.polls.Create(ctx, owner, CreatePollInput{Title: "Close me", Options: []string{"a", "b"}})
	require.NoError(t, err)

	require.ErrorIs(t, f.polls.Close(ctx, other, false, p.ID), ErrForbidden)
	require.NoError(t, f.polls.Close(ctx, owner, false, p.ID))
	require.ErrorIs(t, f.polls.Close(ctx, owner, false, p.ID), ErrPollClosed)

	_, err = f.polls.Vote(ctx, other, p.ID, []string{p.Options[0].ID})
	require.ErrorIs(t, err, ErrPollClosed)

	q, err := f.polls.Create(ctx, owner, CreatePollInput{Title: "Admin closes", Options: []string{"a", "b"}})
	require.NoError(t, err)
	require.NoError(t, f.polls.Close(ctx, other, true, q.ID))

	require.NoError(t, f.polls.Delete(ctx, q.ID))
	require.ErrorIs(t, f.polls.Delete(ctx, q.ID), ErrPollNotFound)
}

func TestDeadlines(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.createUser(t, "owner", "owner@example.com", true)
	voter := f.createUser(t, "voter", "voter@example.com", true)

	now := time.Now().UTC()
	p, err := f.polls.Create(ctx, owner, CreatePollInput{
		Title: "Soon", Options: []string{"a", "b"}, ClosesAt: ptr(now.Add(time.Hour)),
	})
	require.NoError(t, err)

	f.polls.Clock = fixedClock(now.Add(2 * time.Hour))
	_, err = f.polls.Vote(ctx, voter, p.ID, []string{p.Options[0].ID})
	require.ErrorIs(t, err, ErrPollClosed, "deadline passed before housekeeping ran")

	res, err := f.polls.Results(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, domain.PollClosed, res.Status)

	n, err := f.polls.CloseExpired(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	open, err := f.polls.ListOpen(ctx, 10, 0)
	require.NoError(t, err)
	require.Empty(t, open)

	mine, err := f.polls.ListByOwner(ctx, owner.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, mine, 1)
}
