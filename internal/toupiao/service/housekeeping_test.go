package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aussiebroadwan/toupiao/internal/toupiao/domain"
	"github.com/aussiebroadwan/toupiao/internal/toupiao/metrics"
	"github.com/aussiebroadwan/toupiao/pkg/slogx"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

type stubRotator struct {
	calls int
	err   error
}

func (r *stubRotator) Rotate(context.Context, time.Duration, time.Time) (int, error) {
	r.calls++
	return 1, r.err
}

func TestHousekeepingCleanup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.createUser(t, "owner", "owner@example.com", true)

	now := time.Now().UTC()
	_, err := f.polls.Create(ctx, owner, CreatePollInput{Title: "Soon", Options: []string{"a", "b"}, ClosesAt: ptr(now.Add(time.Minute))})
	require.NoError(t, err)

	// One expired token and one live one.
	f.users.Clock = fixedClock(now.Add(-4 * time.Hour))
	_, err = f.users.GenerateEmailConfirmationToken(ctx, owner)
	require.NoError(t, err)
	f.users.Clock = nil
	_, err = f.users.GenerateEmailConfirmationToken(ctx, owner)
	require.NoError(t, err)

	m := metrics.New()
	rot := &stubRotator{}
	h := NewHousekeepingService(f.store, slogx.Discard(), time.Hour)
	h.Metrics = m
	h.Keys = rot
	h.KeyAge = 24 * time.Hour
	h.Clock = fixedClock(now.Add(time.Hour))

	require.Equal(t, 4, h.Cleanup(ctx))
	require.Equal(t, 1, rot.calls)
	require.Equal(t, 1.0, testutil.ToFloat64(m.Housekeeping.WithLabelValues("user_tokens")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Housekeeping.WithLabelValues("polls")))

	open, err := f.polls.ListOpen(ctx, 10, 0)
	require.NoError(t, err)
	require.Empty(t, open)

	closed, err := f.polls.ListAll(ctx, 10, 0)
	require.NoError(t, err)
	require.Equal(t, domain.PollClosed, closed[0].Status)

	rot.err = errors.New("boom")
	require.Equal(t, 3, h.Cleanup(ctx), "a failing step does not stop the others")
}

func TestHousekeepingStartStop(t *testing.T) {
	f := newFixture(t)
	h := NewHousekeepingService(f.store, slogx.Discard(), 0)
	require.Equal(t, time.Hour, h.Interval)

	h.Start()
	h.Stop()
}
