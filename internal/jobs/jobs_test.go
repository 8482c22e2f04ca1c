package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/emrgen/rard/internal/metrics"
	"github.com/emrgen/rard/internal/reconcile"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReconciler struct {
	writes int
	err    error
	calls  atomic.Int32
}

func (f *fakeReconciler) Reconcile(context.Context) (int, error) {
	f.calls.Add(1)
	return f.writes, f.err
}

type fakeChecker struct {
	calls atomic.Int32
}

func (f *fakeChecker) Check(context.Context) ([]reconcile.Violation, error) {
	f.calls.Add(1)
	return []reconcile.Violation{{Rule: reconcile.RuleLinkOrder, Scope: "antiquarian 1", Detail: "gap"}}, nil
}

func TestConsistencySweep_Outcomes(t *testing.T) {
	tests := []struct {
		name    string
		writes  int
		err     error
		outcome string
	}{
		{"clean", 0, nil, "clean"},
		{"repaired", 3, nil, "repaired"},
		{"failed", 0, errors.New("database is locked"), "failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counter := metrics.SweepRuns.WithLabelValues(tt.outcome)
			before := testutil.ToFloat64(counter)

			r := &fakeReconciler{writes: tt.writes, err: tt.err}
			NewConsistencySweep("", time.Second, r).Run()

			assert.Equal(t, int32(1), r.calls.Load())
			assert.Equal(t, before+1, testutil.ToFloat64(counter))
		})
	}
}

func TestConsistencySweep_DefaultSchedule(t *testing.T) {
	sweep := NewConsistencySweep("", 0, &fakeReconciler{})
	assert.Equal(t, DefaultSweepSchedule, sweep.Schedule())
	assert.Equal(t, "@every 5m", NewConsistencySweep("@every 5m", 0, &fakeReconciler{}).Schedule())
}

func TestViolationWatcher_StopsRunning(t *testing.T) {
	checker := &fakeChecker{}
	w := NewViolationWatcher(10*time.Millisecond, checker)

	done := make(chan struct{})
	go func() {
		w.Run()
		close(done)
	}()

	require.Eventually(t, func() bool { return checker.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	w.Stop()
	w.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestExclusive_SkipsRunningJob(t *testing.T) {
	var mu sync.Mutex
	running := mapset.NewThreadUnsafeSet[string]()

	release := make(chan struct{})
	started := make(chan struct{})
	var runs atomic.Int32
	go exclusive(&mu, running, "sweep", func() {
		runs.Add(1)
		close(started)
		<-release
	})
	<-started

	exclusive(&mu, running, "sweep", func() { runs.Add(1) })
	assert.Equal(t, int32(1), runs.Load(), "an overlapping run is skipped")

	close(release)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return !running.Contains("sweep")
	}, time.Second, 5*time.Millisecond)

	exclusive(&mu, running, "sweep", func() { runs.Add(1) })
	assert.Equal(t, int32(2), runs.Load())
}

func TestTaskExecutor_RunsCronJobs(t *testing.T) {
	r := &fakeReconciler{}
	executor := NewTaskExecutor(nil, []CronJob{NewConsistencySweep("@every 1s", time.Second, r)})
	require.NoError(t, executor.Run())
	defer executor.Stop()

	require.Eventually(t, func() bool { return r.calls.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
}

func TestTaskExecutor_RejectsBadSchedule(t *testing.T) {
	executor := NewTaskExecutor(nil, []CronJob{NewConsistencySweep("every tuesday", 0, &fakeReconciler{})})
	assert.Error(t, executor.Run())
}
