package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/emrgen/rard/internal/reconcile"
	"github.com/sirupsen/logrus"
)

// Checker reports the broken invariants of the catalogue without writing.
type Checker interface {
	Check(ctx context.Context) ([]reconcile.Violation, error)
}

// ViolationWatcher checks the catalogue on a fixed interval and logs what it finds. The
// violation gauge is updated by every check.
type ViolationWatcher struct {
	checker  Checker
	interval time.Duration
	done     chan struct{}
	once     sync.Once
}

// NewViolationWatcher creates a new ViolationWatcher instance.
func NewViolationWatcher(interval time.Duration, checker Checker) *ViolationWatcher {
	return &ViolationWatcher{
		checker:  checker,
		interval: interval,
		done:     make(chan struct{}),
	}
}

func (w *ViolationWatcher) Stop() {
	w.once.Do(func() { close(w.done) })
}

// Run blocks until Stop is called.
func (w *ViolationWatcher) Run() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.check()
		}
	}
}

func (w *ViolationWatcher) check() {
	ctx, cancel := context.WithTimeout(context.Background(), w.interval)
	defer cancel()

	violations, err := w.checker.Check(ctx)
	if err != nil {
		logrus.Errorf("violation check failed: %v", err)
		return
	}
	if len(violations) == 0 {
		return
	}

	logrus.Warnf("found %d violations", len(violations))
	for _, v := range violations {
		logrus.WithField("rule", v.Rule).Debug(v.String())
	}
}
