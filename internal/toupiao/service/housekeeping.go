package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/toupiao/internal/toupiao/metrics"
	"github.com/aussiebroadwan/toupiao/internal/toupiao/store"
)

// KeyRotator retires signing keys older than maxAge. *jwtx.KeyManager
// satisfies it.
type KeyRotator interface {
	Rotate(ctx context.Context, maxAge time.Duration, now time.Time) (int, error)
}

// HousekeepingService periodically removes expired tokens and signing keys,
// closes polls past their deadline and rotates signing keys.
type HousekeepingService struct {
	Store    store.Store
	Keys     KeyRotator // optional
	KeyAge   time.Duration
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
	Interval time.Duration
	Clock    Clock

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a new housekeeping service with the given interval.
// If interval is 0 or negative, defaults to 1 hour.
func NewHousekeepingService(st store.Store, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}

	return &HousekeepingService{
		Store:    st,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs the worker in the background. Call Stop to end it.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop blocks until an in-progress cleanup has finished.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.Cleanup(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Cleanup(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

type cleanupStep struct {
	kind string
	fn   func() (int64, error)
}

// Cleanup runs one pass. Each step is independent; a failure is logged and
// the next step still runs. It returns the number of steps that succeeded.
func (s *HousekeepingService) Cleanup(ctx context.Context) int {
	now := s.Clock.now()
	s.Logger.Debug("starting housekeeping cleanup")

	steps := []cleanupStep{
		{"user_tokens", func() (int64, error) { return s.Store.Tokens().DeleteExpiredUserTokens(ctx, now) }},
		{"signing_keys", func() (int64, error) { return s.Store.SigningKeys().DeleteExpiredSigningKeys(ctx, now) }},
		{"polls", func() (int64, error) { return s.Store.Polls().CloseExpiredPolls(ctx, now) }},
	}
	if s.Keys != nil && s.KeyAge > 0 {
		steps = append(steps, cleanupStep{"key_rotation", func() (int64, error) {
			n, err := s.Keys.Rotate(ctx, s.KeyAge, now)
			return int64(n), err
		}})
	}

	ok := 0
	for _, step := range steps {
		n, err := step.fn()
		if err != nil {
			s.Logger.Error("housekeeping step failed", "kind", step.kind, "error", err)
			continue
		}
		ok++
		s.Metrics.Housekept(step.kind, n)
		if n > 0 {
			s.Logger.Info("housekeeping step", "kind", step.kind, "rows", n)
		}
	}

	s.Logger.Debug("housekeeping cleanup completed", "successful_cleanups", ok)
	return ok
}
