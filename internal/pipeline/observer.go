package pipeline

import (
	"errors"
	"time"

	"github.com/smazurov/streamforge/internal/events"
	"github.com/smazurov/streamforge/internal/transcode"
	"github.com/smazurov/streamforge/internal/types"
)

// Observer is notified as a run advances. Progress and pass callbacks come
// from the goroutine draining the encoder output; the rest come from the
// goroutine calling Run. Every Observer is also a transcode.Observer.
type Observer interface {
	OnStep(step Step)
	OnProgress(job *transcode.Job, p transcode.Progress)
	OnPassComplete(job *transcode.Job, pass, passes int)
	OnJobComplete(job *transcode.Job, res *transcode.Result)
	OnJobError(job *transcode.Job, err error)
}

// NopObserver ignores every notification.
type NopObserver struct{}

// OnStep implements Observer.
func (NopObserver) OnStep(Step) {}

// OnProgress implements Observer.
func (NopObserver) OnProgress(*transcode.Job, transcode.Progress) {}

// OnPassComplete implements Observer.
func (NopObserver) OnPassComplete(*transcode.Job, int, int) {}

// OnJobComplete implements Observer.
func (NopObserver) OnJobComplete(*transcode.Job, *transcode.Result) {}

// OnJobError implements Observer.
func (NopObserver) OnJobError(*transcode.Job, error) {}

// multiObserver fans notifications out in order.
type multiObserver []Observer

func (m multiObserver) OnStep(step Step) {
	for _, o := range m {
		o.OnStep(step)
	}
}

func (m multiObserver) OnProgress(job *transcode.Job, p transcode.Progress) {
	for _, o := range m {
		o.OnProgress(job, p)
	}
}

func (m multiObserver) OnPassComplete(job *transcode.Job, pass, passes int) {
	for _, o := range m {
		o.OnPassComplete(job, pass, passes)
	}
}

func (m multiObserver) OnJobComplete(job *transcode.Job, res *transcode.Result) {
	for _, o := range m {
		o.OnJobComplete(job, res)
	}
}

func (m multiObserver) OnJobError(job *transcode.Job, err error) {
	for _, o := range m {
		o.OnJobError(job, err)
	}
}

// busObserver publishes observer callbacks as events.
type busObserver struct {
	bus   *events.Bus
	runID string
}

func (b busObserver) OnStep(step Step) {
	b.bus.Publish(events.StepChangedEvent{RunID: b.runID, Step: step.String(), Timestamp: timestamp()})
}

func (b busObserver) OnProgress(job *transcode.Job, p transcode.Progress) {
	b.bus.Publish(events.JobProgressEvent{
		RunID:       b.runID,
		JobID:       job.ID(),
		Quality:     job.Rendition.Quality,
		Codec:       string(job.Codec),
		Pass:        p.Pass,
		Passes:      p.Passes,
		Frame:       p.Frame,
		TotalFrames: p.TotalFrames,
		FPS:         p.FPS,
		Speed:       p.Speed,
		Percent:     p.Percent,
		ETASeconds:  p.ETA.Seconds(),
	})
}

func (b busObserver) OnPassComplete(job *transcode.Job, pass, passes int) {
	b.bus.Publish(events.PassCompletedEvent{RunID: b.runID, JobID: job.ID(), Pass: pass, Passes: passes})
}

func (b busObserver) OnJobComplete(job *transcode.Job, res *transcode.Result) {
	b.bus.Publish(events.JobCompletedEvent{
		RunID:           b.runID,
		JobID:           job.ID(),
		Quality:         job.Rendition.Quality,
		Codec:           string(job.Codec),
		Backend:         string(job.Backend.Method),
		Output:          res.Output,
		Skipped:         res.Skipped,
		DurationSeconds: res.Duration.Seconds(),
		Timestamp:       timestamp(),
	})
}

func (b busObserver) OnJobError(job *transcode.Job, err error) {
	b.bus.Publish(events.JobFailedEvent{
		RunID:     b.runID,
		JobID:     job.ID(),
		Quality:   job.Rendition.Quality,
		Codec:     string(job.Codec),
		Backend:   string(job.Backend.Method),
		Error:     err.Error(),
		ExitCode:  exitCode(err),
		Timestamp: timestamp(),
	})
}

// exitCode returns the tool exit code carried by err, or 0.
func exitCode(err error) int {
	var e *types.Error
	if errors.As(err, &e) {
		return e.ExitCode
	}
	return 0
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
