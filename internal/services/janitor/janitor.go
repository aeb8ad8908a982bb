// Package janitor runs scheduled housekeeping: expiring consumed nonces past
// their retention and dropping idle advisory rate buckets.
package janitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/fastprodman/coingate/internal/config"
	"github.com/fastprodman/coingate/internal/services/ratelimit"
)

const jobTimeout = time.Minute

type Purger interface {
	PurgeNonces(ctx context.Context, before time.Time) (int64, error)
}

type Janitor struct {
	cron      *cron.Cron
	purger    Purger
	retention time.Duration
	schedule  string
	now       func() time.Time
	log       *slog.Logger

	advisory *ratelimit.Advisory
	idle     time.Duration
}

func New(cfg config.JanitorConfig, p Purger, log *slog.Logger) (*Janitor, error) {
	if cfg.NonceRetention <= 0 {
		return nil, fmt.Errorf("nonce retention must be positive, got %s", cfg.NonceRetention)
	}

	_, err := cron.ParseStandard(cfg.PurgeSchedule)
	if err != nil {
		return nil, fmt.Errorf("parse purge schedule %q: %w", cfg.PurgeSchedule, err)
	}

	return &Janitor{
		cron:      cron.New(cron.WithLocation(time.UTC)),
		purger:    p,
		retention: cfg.NonceRetention,
		schedule:  cfg.PurgeSchedule,
		now:       time.Now,
		log:       log.With("component", "janitor"),
	}, nil
}

// SweepAdvisory makes every run also drop buckets idle for longer than idle.
func (j *Janitor) SweepAdvisory(a *ratelimit.Advisory, idle time.Duration) {
	j.advisory = a
	j.idle = idle
}

// RunOnce deletes consumed nonces older than the retention.
func (j *Janitor) RunOnce(ctx context.Context) (int64, error) {
	cutoff := j.now().Add(-j.retention)

	n, err := j.purger.PurgeNonces(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge nonces before %s: %w", cutoff.Format(time.RFC3339), err)
	}

	if j.advisory != nil {
		j.advisory.Cleanup(j.idle)
	}

	return n, nil
}

func (j *Janitor) Start() error {
	_, err := j.cron.AddFunc(j.schedule, j.run)
	if err != nil {
		return fmt.Errorf("schedule purge: %w", err)
	}

	j.cron.Start()
	j.log.Info("janitor started", "schedule", j.schedule, "retention", j.retention)

	return nil
}

// Stop prevents new runs and waits for a running one or for ctx.
func (j *Janitor) Stop(ctx context.Context) error {
	done := j.cron.Stop()

	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for janitor: %w", ctx.Err())
	}
}

func (j *Janitor) run() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	n, err := j.RunOnce(ctx)
	if err != nil {
		j.log.Error("nonce purge failed", "error", err)
		return
	}

	if n > 0 {
		j.log.Info("purged consumed nonces", "count", n)
	}
}
