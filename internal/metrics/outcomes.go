package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values.
const (
	OutcomeCompleted = "completed"
	OutcomeSkipped   = "skipped"
	OutcomeFailed    = "failed"
)

var (
	jobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "streamforge",
		Subsystem: "transcode",
		Name:      "jobs_total",
		Help:      "Transcode jobs by codec, backend and outcome",
	}, []string{"codec", "backend", "outcome"})

	jobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "streamforge",
		Subsystem: "transcode",
		Name:      "job_duration_seconds",
		Help:      "Wall time of completed transcode jobs",
		Buckets:   prometheus.ExponentialBuckets(10, 2, 10),
	}, []string{"codec"})

	extractionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "streamforge",
		Subsystem: "extract",
		Name:      "tracks_total",
		Help:      "Extracted audio and subtitle tracks by outcome",
	}, []string{"kind", "outcome"})

	packagingTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "streamforge",
		Subsystem: "package",
		Name:      "runs_total",
		Help:      "Packager invocations by outcome",
	}, []string{"outcome"})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "streamforge",
		Name:      "runs_total",
		Help:      "Pipeline runs by outcome",
	}, []string{"outcome"})

	runsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "streamforge",
		Name:      "runs_active",
		Help:      "Pipeline runs in progress",
	})
)

// RecordJob counts a finished job. Duration is observed for completed jobs only.
func RecordJob(codec, backend, outcome string, seconds float64) {
	jobsTotal.WithLabelValues(codec, backend, outcome).Inc()
	if outcome == OutcomeCompleted {
		jobDuration.WithLabelValues(codec).Observe(seconds)
	}
}

// RecordExtraction counts one extracted track.
func RecordExtraction(kind, outcome string) {
	extractionsTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordPackaging counts one packager invocation.
func RecordPackaging(outcome string) {
	packagingTotal.WithLabelValues(outcome).Inc()
}

// RunStarted marks a run as active.
func RunStarted() {
	runsActive.Inc()
}

// RunFinished marks a run as done and counts its outcome.
func RunFinished(outcome string) {
	runsActive.Dec()
	runsTotal.WithLabelValues(outcome).Inc()
}
