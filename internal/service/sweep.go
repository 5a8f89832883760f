package service

import (
	"context"
	"time"

	"github.com/Skotchmaster/identity/internal/events"
	"github.com/Skotchmaster/identity/internal/logging"
)

type StaleTokenDeleter interface {
	DeleteStale(ctx context.Context, cutoff time.Time) (int64, error)
}

// Sweeper periodically removes tokens that stopped being valid more than
// Retention ago. Revoked rows inside the retention window stay for audit.
type Sweeper struct {
	Store     StaleTokenDeleter
	Retention time.Duration
	Interval  time.Duration
	Events    events.Publisher
	Now       func() time.Time
}

func (s *Sweeper) SweepOnce(ctx context.Context) (int64, error) {
	l := logging.FromContext(ctx).With("svc", "token_sweeper")

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	cutoff := now().Add(-s.Retention)

	n, err := s.Store.DeleteStale(ctx, cutoff)
	if err != nil {
		l.Error("sweep_error", "error", err)
		return 0, err
	}
	if n > 0 && s.Events != nil {
		if err := s.Events.Publish(ctx, events.Event{Type: events.TokensSwept, Count: n, OccurredAt: now().UTC()}); err != nil {
			l.Error("event_publish_error", "type", events.TokensSwept, "error", err)
		}
	}
	l.Info("sweep_done", "deleted", n, "cutoff", cutoff.UTC())
	return n, nil
}

// Run sweeps every Interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	if s.Interval <= 0 {
		return
	}
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = s.SweepOnce(ctx)
		}
	}
}
