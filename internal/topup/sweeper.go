package topup

import (
	"context"
	"log/slog"
	"time"

	"github.com/thaiGO2003/DigiGO-sub000/internal/metrics"
)

// Sweeper periodically stamps over-age pending top-ups as expired. The stamp
// is bookkeeping for reporting; eligibility is enforced on-read everywhere,
// so a missed sweep never lets an expired top-up get credited.
type Sweeper struct {
	repo     Repository
	logger   *slog.Logger
	window   time.Duration
	interval time.Duration
	now      func() time.Time
}

func NewSweeper(repo Repository, window, interval time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		repo:     repo,
		logger:   logger,
		window:   window,
		interval: interval,
		now:      time.Now,
	}
}

// Run sweeps on a ticker until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.Info("expiry sweeper started",
		"validity_window", s.window,
		"interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("expiry sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.SweepOnce(); err != nil {
				s.logger.Error("expiry sweep failed", "error", err)
			}
		}
	}
}

// SweepOnce stamps everything currently over age and returns the count.
func (s *Sweeper) SweepOnce() (int64, error) {
	now := s.now()
	swept, err := s.repo.SweepExpired(now.Add(-s.window), now)
	if err != nil {
		return 0, err
	}
	if swept > 0 {
		s.logger.Info("expired topups swept", "count", swept)
		metrics.ExpiredSweptTotal.Add(float64(swept))
	}
	return swept, nil
}
