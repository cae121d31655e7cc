package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type VodAPIMetrics struct {
	TranscodeJobCount        prometheus.Counter
	TranscodeJobRejected     prometheus.Counter
	TranscodeJobResults      *prometheus.CounterVec
	TranscodeJobDurationSec  prometheus.Histogram
	RenditionResults         *prometheus.CounterVec
	PlaylistRewriteCount     *prometheus.CounterVec
	SegmentSignFailureCount  prometheus.Counter
	ArtifactUploadDurationSec prometheus.Histogram
}

func NewMetrics() *VodAPIMetrics {
	m := &VodAPIMetrics{
		TranscodeJobCount: promauto.NewCounter(prometheus.CounterOpts{
			Name: "transcode_job_count",
			Help: "The total number of transcode jobs dispatched",
		}),
		TranscodeJobRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "transcode_job_rejected_count",
			Help: "Dispatches rejected because a job was already in flight for the video",
		}),
		TranscodeJobResults: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "transcode_job_results",
			Help: "Completed transcode jobs broken up by success",
		}, []string{"success"}),
		TranscodeJobDurationSec: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "transcode_job_duration_seconds",
			Help:    "Time taken to run one end-to-end transcode job",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 1800},
		}),
		RenditionResults: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rendition_results",
			Help: "Per-rendition terminal statuses broken up by representation and status",
		}, []string{"representation", "status"}),
		PlaylistRewriteCount: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "playlist_rewrite_count",
			Help: "Playlist rewrite requests broken up by playlist kind",
		}, []string{"kind"}),
		SegmentSignFailureCount: promauto.NewCounter(prometheus.CounterOpts{
			Name: "segment_sign_failure_count",
			Help: "Segment lines emitted unsigned because URL signing failed",
		}),
		ArtifactUploadDurationSec: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "artifact_upload_duration_seconds",
			Help:    "Time taken to upload all artifacts of one job",
			Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
	}
	return m
}

var Metrics = NewMetrics()
