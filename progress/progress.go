package progress

import (
	"context"
	"math"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/soratv/vod-api/log"
)

var Clock = clock.New()

var progressReportBuckets = []float64{0, 0.25, 0.5, 0.75, 1}

const minProgressReportInterval = 10 * time.Second
const progressCheckInterval = 1 * time.Second

// ReportDownloadProgress logs the download fraction until ctx is cancelled.
// A line is emitted when the fraction crosses into a new quartile, or at most
// every 10s otherwise. Runs in its own goroutine; cancel ctx when the
// download finishes.
func ReportDownloadProgress(ctx context.Context, requestID string, size uint64, getCount func() uint64) {
	if size == 0 {
		return
	}
	var (
		timer        = Clock.Ticker(progressCheckInterval)
		lastProgress = float64(0)
		lastReport   time.Time
	)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			progress := calcProgress(getCount(), size)
			if Clock.Since(lastReport) < minProgressReportInterval &&
				progressBucket(progress) == progressBucket(lastProgress) {
				continue
			}
			log.Log(requestID, "source download progress", "progress", progress, "bytes", getCount(), "size", size)
			lastProgress = progress
			lastReport = Clock.Now()
		}
	}
}

// calcProgress returns the completed fraction in [0, 0.99], rounded to two
// decimals. Never reports 1: Content-Length can lie, completion is logged by
// the downloader itself.
func calcProgress(count, size uint64) float64 {
	progress := float64(count) / float64(size)
	progress = math.Round(progress*100) / 100
	return math.Min(progress, 0.99)
}

func progressBucket(progress float64) int {
	for i := len(progressReportBuckets) - 1; i >= 0; i-- {
		if progress >= progressReportBuckets[i] {
			return i
		}
	}
	return -1
}
