package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	xerrors "github.com/soratv/vod-api/errors"
	"github.com/stretchr/testify/require"
)

type blockingRunner struct {
	mu      sync.Mutex
	started []int64
	release chan struct{}
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{release: make(chan struct{})}
}

func (r *blockingRunner) RunJob(ctx context.Context, job Job) error {
	r.mu.Lock()
	r.started = append(r.started, job.VideoID)
	r.mu.Unlock()
	<-r.release
	return nil
}

func (r *blockingRunner) startedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.started)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.FailNow(t, "condition not met in time")
}

func TestDispatchRejectsDuplicateVideo(t *testing.T) {
	runner := newBlockingRunner()
	c := NewCoordinator(runner, 4)

	require.NoError(t, c.Dispatch(Job{RequestID: "a", VideoID: 1}))
	waitFor(t, func() bool { return runner.startedCount() == 1 })
	require.True(t, c.InFlight(1))

	err := c.Dispatch(Job{RequestID: "b", VideoID: 1})
	require.ErrorIs(t, err, xerrors.JobAlreadyActiveError)

	// A different video is admitted fine.
	require.NoError(t, c.Dispatch(Job{RequestID: "c", VideoID: 2}))
	waitFor(t, func() bool { return runner.startedCount() == 2 })

	close(runner.release)
	waitFor(t, func() bool { return !c.InFlight(1) && !c.InFlight(2) })

	// Once the first job finished, the video can be dispatched again.
	runner.release = make(chan struct{})
	require.NoError(t, c.Dispatch(Job{RequestID: "d", VideoID: 1}))
	close(runner.release)
	waitFor(t, func() bool { return !c.InFlight(1) })
}

func TestDispatchBoundsConcurrency(t *testing.T) {
	runner := newBlockingRunner()
	c := NewCoordinator(runner, 1)

	require.NoError(t, c.Dispatch(Job{RequestID: "a", VideoID: 1}))
	waitFor(t, func() bool { return runner.startedCount() == 1 })

	// Admitted immediately, but held back by the semaphore.
	require.NoError(t, c.Dispatch(Job{RequestID: "b", VideoID: 2}))
	require.True(t, c.InFlight(2))
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 1, runner.startedCount())

	close(runner.release)
	waitFor(t, func() bool { return runner.startedCount() == 2 })
	waitFor(t, func() bool { return !c.InFlight(1) && !c.InFlight(2) })
}

type panickyRunner struct{}

func (panickyRunner) RunJob(ctx context.Context, job Job) error {
	panic("encoder exploded")
}

func TestDispatchRecoversFromPanicAndReleasesAdmission(t *testing.T) {
	c := NewCoordinator(panickyRunner{}, 1)
	require.NoError(t, c.Dispatch(Job{RequestID: "a", VideoID: 1}))
	waitFor(t, func() bool { return !c.InFlight(1) })

	// The admission slot and the semaphore slot are both free again.
	require.NoError(t, c.Dispatch(Job{RequestID: "b", VideoID: 1}))
	waitFor(t, func() bool { return !c.InFlight(1) })
}
