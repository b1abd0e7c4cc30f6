package schedule

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

type blockingJob struct {
	runs    atomic.Int64
	started chan struct{}
	release chan struct{}
}

func newBlockingJob() *blockingJob {
	return &blockingJob{
		started: make(chan struct{}, 4),
		release: make(chan struct{}),
	}
}

func (j *blockingJob) Name() string { return "blocking" }

func (j *blockingJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	j.started <- struct{}{}
	<-j.release
	return nil
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	s := NewCronScheduler()
	job := newBlockingJob()
	require.Error(t, s.AddJob(job, "not a cron spec"))
	require.Error(t, s.AddJob(job, "0 0 * * * *"), "second-resolution specs are rejected")
	require.NoError(t, s.AddJob(job, "*/5 * * * *"))
}

func TestSchedulerSkipsOverlappingRuns(t *testing.T) {
	s := NewCronScheduler()
	job := newBlockingJob()
	tick := s.wrap(job)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		tick()
	}()
	<-job.started
	tick()
	require.EqualValues(t, 1, job.runs.Load(), "overlapping tick must be skipped")

	close(job.release)
	wg.Wait()
	tick()
	require.EqualValues(t, 2, job.runs.Load(), "job runs again once the previous run finished")
}
