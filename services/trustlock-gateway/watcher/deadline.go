package watcher

import (
	"context"
	"log/slog"
	"time"

	"glittr/native/escrow"
)

// jobSource lists job ids whose deadline has elapsed.
type jobSource interface {
	OverdueJobs(now int64) ([]string, error)
}

// disputer flips an overdue job into dispute. The engine makes the call
// idempotent, so a job swept twice is only disputed once.
type disputer interface {
	DeadlinePassed(jobID string, now int64) (*escrow.Job, error)
}

// Deadline sweeps overdue jobs into dispute on a fixed interval.
type Deadline struct {
	source   jobSource
	engine   disputer
	interval time.Duration
	logger   *slog.Logger
	nowFn    func() time.Time
}

// NewDeadline builds a sweeper. A nil logger falls back to slog.Default.
func NewDeadline(source jobSource, engine disputer, interval time.Duration, logger *slog.Logger) *Deadline {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Deadline{
		source:   source,
		engine:   engine,
		interval: interval,
		logger:   logger,
		nowFn:    time.Now,
	}
}

// Run sweeps until the context is cancelled. It performs one sweep
// immediately so restarts do not wait a full interval to catch up.
func (d *Deadline) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	d.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.sweep(ctx)
		}
	}
}

func (d *Deadline) sweep(ctx context.Context) {
	now := d.nowFn().Unix()
	ids, err := d.source.OverdueJobs(now)
	if err != nil {
		d.logger.Error("deadline sweep: list overdue jobs", "error", err)
		return
	}
	for _, id := range ids {
		if ctx.Err() != nil {
			return
		}
		job, err := d.engine.DeadlinePassed(id, now)
		if err != nil {
			d.logger.Error("deadline sweep: dispute job", "job", id, "error", err)
			continue
		}
		d.logger.Info("deadline sweep: job disputed",
			"job", job.ID, "client", job.Client, "freelancer", job.Freelancer, "deadline", job.Deadline)
	}
}
