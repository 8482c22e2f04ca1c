package jobs

import (
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	cron "github.com/robfig/cron"
	"github.com/sirupsen/logrus"
)

type Job interface {
	Run()
}

type CronJob interface {
	Schedule() string
	Job
}

// TaskExecutor runs background jobs on the cron scheduler. A job never overlaps with
// a still running instance of itself.
type TaskExecutor struct {
	cron            *cron.Cron
	jobs            []Job
	cronJobs        []CronJob
	runningJobs     mapset.Set[Job]
	runningCronJobs mapset.Set[CronJob]
	muJobs          sync.Mutex
	muCronJobs      sync.Mutex
}

func NewTaskExecutor(jobs []Job, cronJobs []CronJob) *TaskExecutor {
	return &TaskExecutor{
		cron:            cron.New(),
		jobs:            jobs,
		cronJobs:        cronJobs,
		runningCronJobs: mapset.NewThreadUnsafeSet[CronJob](),
		runningJobs:     mapset.NewThreadUnsafeSet[Job](),
	}
}

// Run schedules the jobs and starts the cron in its own goroutine. Plain jobs are polled
// every second.
func (t *TaskExecutor) Run() error {
	for _, job := range t.cronJobs {
		err := t.cron.AddFunc(job.Schedule(), func() {
			exclusive(&t.muCronJobs, t.runningCronJobs, job, job.Run)
		})
		if err != nil {
			logrus.Errorf("failed to add task to cron: %v", err)
			return err
		}
	}

	for _, job := range t.jobs {
		err := t.cron.AddFunc("@every 1s", func() {
			exclusive(&t.muJobs, t.runningJobs, job, job.Run)
		})
		if err != nil {
			return err
		}
	}

	t.cron.Start()
	return nil
}

func (t *TaskExecutor) Stop() {
	logrus.Infof("stopping all tasks")
	t.cron.Stop()
}

// exclusive runs f unless job is already marked running in set.
func exclusive[T comparable](mu *sync.Mutex, running mapset.Set[T], job T, f func()) {
	mu.Lock()
	if running.Contains(job) {
		mu.Unlock()
		logrus.Warn("task is already running")
		return
	}
	running.Add(job)
	mu.Unlock()

	defer func() {
		mu.Lock()
		defer mu.Unlock()
		running.Remove(job)
	}()

	f()
}
