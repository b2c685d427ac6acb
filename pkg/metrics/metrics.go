package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AcquisitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agrisentry_acquisitions_total",
		Help: "Total number of video acquisitions, by result",
	}, []string{"result"})

	FramesExtractedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agrisentry_frames_extracted_total",
		Help: "Total number of frames written across all extractions",
	})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "agrisentry_stage_duration_seconds",
		Help:    "Duration of dataset pipeline stages",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"stage"})

	DatasetBuildsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agrisentry_dataset_builds_total",
		Help: "Total number of dataset builds, by result",
	}, []string{"result"})

	ActiveJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "agrisentry_active_jobs",
		Help: "Number of dataset builds currently running in the API server",
	})
)

// Result labels.
const (
	ResultOK = "ok"
)
