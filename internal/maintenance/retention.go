package maintenance

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Purger deletes ledger rows created before a cutoff.
type Purger interface {
	PurgeBefore(ctx context.Context, t time.Time) (int64, error)
}

// Retention periodically deletes events older than the retention window.
type Retention struct {
	cron     *cron.Cron
	purger   Purger
	window   time.Duration
	schedule string
	clock    func() time.Time
	logger   *zap.Logger
}

// NewRetention validates the cron schedule up front. days must be positive.
func NewRetention(purger Purger, days int, schedule string, logger *zap.Logger) (*Retention, error) {
	if purger == nil {
		return nil, errors.New("maintenance: purger required")
	}
	if days <= 0 {
		return nil, errors.New("maintenance: retention days must be positive")
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retention{
		cron:     cron.New(),
		purger:   purger,
		window:   time.Duration(days) * 24 * time.Hour,
		schedule: schedule,
		clock:    time.Now,
		logger:   logger,
	}, nil
}

func (r *Retention) Start() error {
	if _, err := r.cron.AddFunc(r.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		_, _ = r.RunOnce(ctx)
	}); err != nil {
		return err
	}
	r.logger.Info("retention scheduled", zap.String("cron", r.schedule), zap.Duration("window", r.window))
	r.cron.Start()
	return nil
}

// Stop waits for a running purge to finish or ctx to end.
func (r *Retention) Stop(ctx context.Context) {
	done := r.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

// RunOnce purges everything older than now minus the window.
func (r *Retention) RunOnce(ctx context.Context) (int64, error) {
	cutoff := r.clock().UTC().Add(-r.window)
	n, err := r.purger.PurgeBefore(ctx, cutoff)
	if err != nil {
		r.logger.Error("retention purge failed", zap.Time("cutoff", cutoff), zap.Error(err))
		return 0, err
	}
	r.logger.Info("retention purge done", zap.Time("cutoff", cutoff), zap.Int64("deleted", n))
	return n, nil
}
