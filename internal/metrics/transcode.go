// Package metrics provides Prometheus metrics for transcode runs.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transcodeFPS = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "streamforge",
		Subsystem: "transcode",
		Name:      "fps",
		Help:      "Current encoder frames per second",
	}, []string{"job_id"})

	transcodeSpeed = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "streamforge",
		Subsystem: "transcode",
		Name:      "speed",
		Help:      "Encoder speed as a multiple of realtime",
	}, []string{"job_id"})

	transcodePercent = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "streamforge",
		Subsystem: "transcode",
		Name:      "percent",
		Help:      "Completion of the current pass",
	}, []string{"job_id"})

	// Local cache for the progress reporter.
	jobCache   = make(map[string]*JobMetrics)
	jobCacheMu sync.RWMutex
)

// JobMetrics holds the latest progress values for a job.
type JobMetrics struct {
	Pass    int
	Passes  int
	FPS     float64
	Speed   float64
	Percent float64
	ETA     float64
}

// SetJobProgress records the latest progress sample of a job.
func SetJobProgress(jobID string, m JobMetrics) {
	transcodeFPS.WithLabelValues(jobID).Set(m.FPS)
	transcodeSpeed.WithLabelValues(jobID).Set(m.Speed)
	transcodePercent.WithLabelValues(jobID).Set(m.Percent)

	jobCacheMu.Lock()
	defer jobCacheMu.Unlock()
	dup := m
	jobCache[jobID] = &dup
}

// DeleteJobMetrics removes all gauges for a job.
func DeleteJobMetrics(jobID string) {
	transcodeFPS.DeleteLabelValues(jobID)
	transcodeSpeed.DeleteLabelValues(jobID)
	transcodePercent.DeleteLabelValues(jobID)

	jobCacheMu.Lock()
	delete(jobCache, jobID)
	jobCacheMu.Unlock()
}

// GetJobMetrics returns the latest values for a job, or nil.
func GetJobMetrics(jobID string) *JobMetrics {
	jobCacheMu.RLock()
	defer jobCacheMu.RUnlock()
	if m, ok := jobCache[jobID]; ok {
		dup := *m
		return &dup
	}
	return nil
}

// GetAllJobMetrics returns metrics for all running jobs.
func GetAllJobMetrics() map[string]*JobMetrics {
	jobCacheMu.RLock()
	defer jobCacheMu.RUnlock()
	result := make(map[string]*JobMetrics, len(jobCache))
	for id, m := range jobCache {
		dup := *m
		result[id] = &dup
	}
	return result
}
