package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSetJobProgress(t *testing.T) {
	jobID := "test-1080p_hevc"
	defer DeleteJobMetrics(jobID)

	SetJobProgress(jobID, JobMetrics{Pass: 1, Passes: 1, FPS: 96.5, Speed: 4, Percent: 50})

	if got := testutil.ToFloat64(transcodeFPS.WithLabelValues(jobID)); got != 96.5 {
		t.Errorf("fps gauge = %v, want 96.5", got)
	}
	if got := testutil.ToFloat64(transcodePercent.WithLabelValues(jobID)); got != 50 {
		t.Errorf("percent gauge = %v, want 50", got)
	}

	m := GetJobMetrics(jobID)
	if m == nil || m.Speed != 4 {
		t.Fatalf("cached metrics = %+v", m)
	}
	m.Speed = 99
	if GetJobMetrics(jobID).Speed != 4 {
		t.Error("GetJobMetrics must return a copy")
	}
}

func TestDeleteJobMetrics(t *testing.T) {
	jobID := "test-720p_vp9"
	SetJobProgress(jobID, JobMetrics{FPS: 10})
	DeleteJobMetrics(jobID)

	if GetJobMetrics(jobID) != nil {
		t.Error("expected cache entry to be removed")
	}
	if _, ok := GetAllJobMetrics()[jobID]; ok {
		t.Error("deleted job should not be listed")
	}
}

func TestGetAllJobMetrics(t *testing.T) {
	ids := []string{"all-a", "all-b"}
	for i, id := range ids {
		SetJobProgress(id, JobMetrics{Percent: float64(i * 10)})
		defer DeleteJobMetrics(id)
	}

	all := GetAllJobMetrics()
	for _, id := range ids {
		if _, ok := all[id]; !ok {
			t.Errorf("missing %s", id)
		}
	}
}

func TestRecordJob(t *testing.T) {
	completed := jobsTotal.WithLabelValues("vp9", "software", OutcomeCompleted)
	failed := jobsTotal.WithLabelValues("vp9", "software", OutcomeFailed)
	c0, f0 := testutil.ToFloat64(completed), testutil.ToFloat64(failed)

	RecordJob("vp9", "software", OutcomeCompleted, 30)
	RecordJob("vp9", "software", OutcomeFailed, 0)

	if got := testutil.ToFloat64(completed) - c0; got != 1 {
		t.Errorf("completed delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(failed) - f0; got != 1 {
		t.Errorf("failed delta = %v, want 1", got)
	}
}

func TestRunLifecycle(t *testing.T) {
	active := testutil.ToFloat64(runsActive)
	RunStarted()
	if got := testutil.ToFloat64(runsActive); got != active+1 {
		t.Errorf("active runs = %v, want %v", got, active+1)
	}
	RunFinished(OutcomeFailed)
	if got := testutil.ToFloat64(runsActive); got != active {
		t.Errorf("active runs = %v, want %v", got, active)
	}
	if testutil.ToFloat64(runsTotal.WithLabelValues(OutcomeFailed)) < 1 {
		t.Error("expected a failed run to be counted")
	}
}
