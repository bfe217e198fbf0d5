package collector

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"

	"optchain/internal/config"
	apperrors "optchain/internal/errors"
)

// Scheduler runs collection rounds on a cron schedule evaluated in market
// time, for example "*/1 9-15 * * 1-5" for every minute of the session.
// A round still in progress when the next one fires causes that firing to
// be skipped.
type Scheduler struct {
	collector *Collector
	cron      *cron.Cron
	logger    *slog.Logger
}

// NewScheduler creates a scheduler for c.
func NewScheduler(c *Collector) *Scheduler {
	return &Scheduler{
		collector: c,
		cron: cron.New(
			cron.WithLocation(config.MarketLocation()),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		logger: c.logger.With(slog.String("runner", "cron")),
	}
}

// Run schedules rounds with spec and blocks until ctx is done. It waits
// for an in-flight round before returning.
func (s *Scheduler) Run(ctx context.Context, spec string) error {
	_, err := s.cron.AddFunc(spec, func() {
		if _, err := s.collector.RunAll(ctx); err != nil {
			s.logger.ErrorContext(ctx, "Scheduled collection round failed", slog.String("error", err.Error()))
		}
	})
	if err != nil {
		return apperrors.NewConfigError("invalid collection schedule", err).WithContext("schedule", spec)
	}

	s.cron.Start()
	s.logger.InfoContext(ctx, "Collection scheduler started", slog.String("schedule", spec))

	<-ctx.Done()
	<-s.cron.Stop().Done()

	s.logger.InfoContext(ctx, "Collection scheduler stopped")
	return nil
}
