// Package collectors feeds pipeline events into the metrics package.
package collectors

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/smazurov/streamforge/internal/events"
	"github.com/smazurov/streamforge/internal/metrics"
)

// EventCollector updates metrics from the event bus.
type EventCollector struct {
	bus      *events.Bus
	unsubs   []func()
	stopOnce sync.Once
	// last is the time the most recent event was handled, in unix nanos.
	last atomic.Int64
}

// NewEventCollector creates a collector for bus.
func NewEventCollector(bus *events.Bus) *EventCollector {
	return &EventCollector{bus: bus}
}

// Start subscribes to the events the collector turns into metrics.
func (c *EventCollector) Start() {
	c.unsubs = append(c.unsubs,
		c.bus.Subscribe(c.onRunStarted),
		c.bus.Subscribe(c.onProgress),
		c.bus.Subscribe(c.onJobCompleted),
		c.bus.Subscribe(c.onJobFailed),
		c.bus.Subscribe(c.onTrackExtracted),
		c.bus.Subscribe(c.onPackaged),
		c.bus.Subscribe(c.onRunFinished),
	)
}

// Stop unsubscribes from the bus. It is safe to call more than once.
func (c *EventCollector) Stop() {
	c.stopOnce.Do(func() {
		for _, unsub := range c.unsubs {
			unsub()
		}
		c.unsubs = nil
	})
}

// Drain waits until no event has been handled for quiet, or until timeout.
// Bus delivery is asynchronous, so call it before reading final values.
func (c *EventCollector) Drain(quiet, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if time.Since(time.Unix(0, c.last.Load())) >= quiet {
			return
		}
		time.Sleep(quiet / 4)
	}
}

func (c *EventCollector) seen() {
	c.last.Store(time.Now().UnixNano())
}

func (c *EventCollector) onRunStarted(events.RunStartedEvent) {
	c.seen()
	metrics.RunStarted()
}

func (c *EventCollector) onProgress(e events.JobProgressEvent) {
	c.seen()
	metrics.SetJobProgress(e.JobID, metrics.JobMetrics{
		Pass:    e.Pass,
		Passes:  e.Passes,
		FPS:     e.FPS,
		Speed:   e.Speed,
		Percent: e.Percent,
		ETA:     e.ETASeconds,
	})
}

func (c *EventCollector) onJobCompleted(e events.JobCompletedEvent) {
	c.seen()
	metrics.DeleteJobMetrics(e.JobID)
	outcome := metrics.OutcomeCompleted
	if e.Skipped {
		outcome = metrics.OutcomeSkipped
	}
	metrics.RecordJob(e.Codec, e.Backend, outcome, e.DurationSeconds)
}

func (c *EventCollector) onJobFailed(e events.JobFailedEvent) {
	c.seen()
	metrics.DeleteJobMetrics(e.JobID)
	metrics.RecordJob(e.Codec, e.Backend, metrics.OutcomeFailed, 0)
}

func (c *EventCollector) onTrackExtracted(e events.TrackExtractedEvent) {
	c.seen()
	metrics.RecordExtraction(e.Kind, outcome(e.Error, e.Skipped))
}

func (c *EventCollector) onPackaged(e events.PackagedEvent) {
	c.seen()
	metrics.RecordPackaging(outcome(e.Error, false))
}

func (c *EventCollector) onRunFinished(e events.RunFinishedEvent) {
	c.seen()
	if e.Success {
		metrics.RunFinished(metrics.OutcomeCompleted)
		return
	}
	metrics.RunFinished(metrics.OutcomeFailed)
}

func outcome(errMsg string, skipped bool) string {
	switch {
	case errMsg != "":
		return metrics.OutcomeFailed
	case skipped:
		return metrics.OutcomeSkipped
	default:
		return metrics.OutcomeCompleted
	}
}
