package exporters

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/streamforge/internal/metrics"
)

type recordingLogger struct {
	mu   sync.Mutex
	msgs []string
}

func (l *recordingLogger) record(msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msgs = append(l.msgs, fmt.Sprint(append([]any{msg}, args...)...))
}

func (l *recordingLogger) Debug(msg string, args ...any) { l.record(msg, args...) }
func (l *recordingLogger) Info(msg string, args ...any)  { l.record(msg, args...) }
func (l *recordingLogger) Warn(msg string, args ...any)  { l.record(msg, args...) }
func (l *recordingLogger) Error(msg string, args ...any) { l.record(msg, args...) }

func (l *recordingLogger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.msgs)
}

func TestProgressReporterLogsJobs(t *testing.T) {
	metrics.SetJobProgress("reporter-job", metrics.JobMetrics{Pass: 1, Passes: 2, Percent: 40, ETA: 90})
	defer metrics.DeleteJobMetrics("reporter-job")

	logger := &recordingLogger{}
	r := NewProgressReporter(logger, 10*time.Millisecond)
	r.Start(context.Background())

	deadline := time.Now().Add(time.Second)
	for logger.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	r.Stop()

	if logger.count() == 0 {
		t.Fatal("expected at least one progress line")
	}
}

func TestProgressReporterStopWithoutStart(_ *testing.T) {
	NewProgressReporter(&recordingLogger{}, 0).Stop()
}
