package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"mastobridge/internal/pipeline"
)

// Runner is one pipeline invocation; the scheduler repeats it.
type Runner interface {
	Run(ctx context.Context) (*pipeline.Summary, error)
}

// Scheduler runs the pipeline on a fixed interval. Runs are strictly
// sequential: a tick that arrives while a run is still in flight waits
// for it, there are never two concurrent runs against the same
// watermark.
type Scheduler struct {
	runner   Runner
	interval time.Duration
}

// Config holds scheduler configuration.
type Config struct {
	Runner   Runner
	Interval time.Duration
}

// New creates a scheduler.
func New(cfg Config) *Scheduler {
	return &Scheduler{
		runner:   cfg.Runner,
		interval: cfg.Interval,
	}
}

// Run executes one run immediately, then one per interval until ctx is
// cancelled. A failed run is logged and the loop continues; only
// cancellation stops it.
func (s *Scheduler) Run(ctx context.Context) error {
	slog.Info("starting watch loop", "interval", s.interval)

	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("watch loop stopping")
			return ctx.Err()
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	summary, err := s.runner.Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		slog.Error("run failed", "error", err)
		return
	}
	slog.Info("run finished",
		"run_id", summary.RunID,
		"published", summary.Published,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
	)
}
