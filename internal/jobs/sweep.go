package jobs

import (
	"context"
	"time"

	"github.com/emrgen/rard/internal/metrics"
	"github.com/sirupsen/logrus"
)

const DefaultSweepSchedule = "@every 10m"

// Reconciler rebuilds every position index of the catalogue.
type Reconciler interface {
	Reconcile(ctx context.Context) (int, error)
}

// ConsistencySweep periodically reconciles the whole catalogue. Edits keep the indices
// consistent on their own; the sweep repairs what direct database writes broke.
type ConsistencySweep struct {
	reconciler Reconciler
	cron       string
	timeout    time.Duration
}

func NewConsistencySweep(schedule string, timeout time.Duration, reconciler Reconciler) *ConsistencySweep {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	return &ConsistencySweep{
		reconciler: reconciler,
		cron:       schedule,
		timeout:    timeout,
	}
}

func (c *ConsistencySweep) ID() string {
	return "consistency_sweep"
}

func (c *ConsistencySweep) Schedule() string {
	return c.cron
}

func (c *ConsistencySweep) Run() {
	ctx := context.Background()
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	writes, err := c.reconciler.Reconcile(ctx)
	if err != nil {
		metrics.SweepRuns.WithLabelValues("failed").Inc()
		logrus.Errorf("consistency sweep failed: %v", err)
		return
	}

	if writes > 0 {
		metrics.SweepRuns.WithLabelValues("repaired").Inc()
		logrus.Warnf("consistency sweep repaired %d positions in %v", writes, time.Since(start))
		return
	}
	metrics.SweepRuns.WithLabelValues("clean").Inc()
	logrus.Debugf("consistency sweep found nothing to repair in %v", time.Since(start))
}
