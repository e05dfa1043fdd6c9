// Package jobs runs the portal's periodic maintenance on a cron schedule.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Purger removes inactive date overrides last touched before the cutoff.
type Purger interface {
	PurgeInactiveOverrides(ctx context.Context, before time.Time) (int64, error)
}

type PurgeConfig struct {
	Schedule  string
	Retention time.Duration
	Timeout   time.Duration
}

// Scheduler wraps a cron runner. Overlapping runs of the same job are skipped.
type Scheduler struct {
	cron   *cron.Cron
	logger zerolog.Logger
	now    func() time.Time
}

func NewScheduler(logger zerolog.Logger) *Scheduler {
	l := cronLogger{logger: logger}
	return &Scheduler{
		cron:   cron.New(cron.WithLogger(l), cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l))),
		logger: logger,
		now:    time.Now,
	}
}

// AddPurge registers the override purge job.
func (s *Scheduler) AddPurge(p Purger, cfg PurgeConfig) error {
	if cfg.Retention <= 0 {
		return fmt.Errorf("purge retention must be positive, got %s", cfg.Retention)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	_, err := s.cron.AddFunc(cfg.Schedule, func() {
		s.RunPurge(context.Background(), p, cfg)
	})
	if err != nil {
		return fmt.Errorf("add purge job %q: %w", cfg.Schedule, err)
	}
	s.logger.Info().Str("schedule", cfg.Schedule).Dur("retention", cfg.Retention).Msg("purge job scheduled")
	return nil
}

// RunPurge executes one purge pass and returns the number of rows removed.
func (s *Scheduler) RunPurge(ctx context.Context, p Purger, cfg PurgeConfig) int64 {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cutoff := s.now().Add(-cfg.Retention)
	n, err := p.PurgeInactiveOverrides(ctx, cutoff)
	if err != nil {
		s.logger.Error().Err(err).Time("cutoff", cutoff).Msg("purge inactive overrides failed")
		return 0
	}
	s.logger.Info().Int64("purged", n).Time("cutoff", cutoff).Msg("purged inactive overrides")
	return n
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts scheduling and waits for running jobs or ctx, whichever ends first.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

type cronLogger struct{ logger zerolog.Logger }

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
