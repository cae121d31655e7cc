package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/soratv/vod-api/cache"
	xerrors "github.com/soratv/vod-api/errors"
	"github.com/soratv/vod-api/log"
	"github.com/soratv/vod-api/metrics"
)

// JobRunner executes a single job; implemented by Worker, faked in tests.
type JobRunner interface {
	RunJob(ctx context.Context, job Job) error
}

// JobInfo is the coordinator's admission record for one in-flight job.
type JobInfo struct {
	VideoID   int64
	RequestID string
	StartedAt time.Time
}

// Coordinator admits transcode jobs and runs them in the background. At most
// one job per video may be in flight at a time, and the total number of
// concurrently running jobs is bounded by the semaphore.
type Coordinator struct {
	runner JobRunner
	// One entry per video with a job in flight, keyed by video ID. Admission
	// happens here, atomically, before the goroutine is spawned.
	jobs *cache.Cache[*JobInfo]
	sem  chan struct{}
}

func NewCoordinator(runner JobRunner, maxInFlight int) *Coordinator {
	if maxInFlight <= 0 {
		maxInFlight = 1
	}
	return &Coordinator{
		runner: runner,
		jobs:   cache.New[*JobInfo](),
		sem:    make(chan struct{}, maxInFlight),
	}
}

// Dispatch admits the job and starts it in the background. A second dispatch
// for the same video while the first is still running is rejected with
// JobAlreadyActiveError; the caller translates that to HTTP 409.
func (c *Coordinator) Dispatch(job Job) error {
	key := strconv.FormatInt(job.VideoID, 10)
	admitted := c.jobs.StoreIfAbsent(key, &JobInfo{
		VideoID:   job.VideoID,
		RequestID: job.RequestID,
		StartedAt: time.Now(),
	})
	if !admitted {
		metrics.Metrics.TranscodeJobRejected.Inc()
		log.Log(job.RequestID, "rejecting transcode job, another is in flight", "video_id", job.VideoID)
		return xerrors.JobAlreadyActiveError
	}
	metrics.Metrics.TranscodeJobCount.Inc()

	// nolint:errcheck
	go recovered(job.RequestID, func() error {
		defer c.jobs.Remove(key)
		c.sem <- struct{}{}
		defer func() { <-c.sem }()
		return c.runner.RunJob(context.Background(), job)
	})
	return nil
}

// InFlight reports whether a job for the given video is currently admitted.
func (c *Coordinator) InFlight(videoID int64) bool {
	return c.jobs.Get(strconv.FormatInt(videoID, 10)) != nil
}

func recovered(requestID string, f func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			log.LogNoRequestID("panic in transcode job goroutine, recovering", "err", rec, "request_id", requestID)
			err = fmt.Errorf("panic in transcode job: %v", rec)
		}
	}()
	return f()
}
