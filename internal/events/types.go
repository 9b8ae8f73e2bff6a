package events

// Event type constants for kelindar/event.
const (
	TypeRunStarted uint32 = iota + 1
	TypeStepChanged
	TypeJobProgress
	TypePassCompleted
	TypeJobCompleted
	TypeJobFailed
	TypeTrackExtracted
	TypePackaged
	TypeRunFinished
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// RunStartedEvent is published once a source has been accepted.
type RunStartedEvent struct {
	RunID     string `json:"run_id"`
	Input     string `json:"input"`
	Output    string `json:"output"`
	Mode      string `json:"mode"`
	Timestamp string `json:"timestamp"`
}

// Type returns the event type identifier for RunStartedEvent.
func (e RunStartedEvent) Type() uint32 { return TypeRunStarted }

// StepChangedEvent marks a transition of the pipeline state machine.
type StepChangedEvent struct {
	RunID     string `json:"run_id"`
	Step      string `json:"step"`
	Timestamp string `json:"timestamp"`
}

// Type returns the event type identifier for StepChangedEvent.
func (e StepChangedEvent) Type() uint32 { return TypeStepChanged }

// JobProgressEvent carries the encoder's latest status line.
type JobProgressEvent struct {
	RunID       string  `json:"run_id"`
	JobID       string  `json:"job_id"`
	Quality     string  `json:"quality"`
	Codec       string  `json:"codec"`
	Pass        int     `json:"pass"`
	Passes      int     `json:"passes"`
	Frame       int64   `json:"frame"`
	TotalFrames int64   `json:"total_frames"`
	FPS         float64 `json:"fps"`
	Speed       float64 `json:"speed"`
	Percent     float64 `json:"percent"`
	ETASeconds  float64 `json:"eta_seconds"`
}

// Type returns the event type identifier for JobProgressEvent.
func (e JobProgressEvent) Type() uint32 { return TypeJobProgress }

// PassCompletedEvent is published after each encoder pass exits cleanly.
type PassCompletedEvent struct {
	RunID  string `json:"run_id"`
	JobID  string `json:"job_id"`
	Pass   int    `json:"pass"`
	Passes int    `json:"passes"`
}

// Type returns the event type identifier for PassCompletedEvent.
func (e PassCompletedEvent) Type() uint32 { return TypePassCompleted }

// JobCompletedEvent is published when a rendition finished or was skipped.
type JobCompletedEvent struct {
	RunID           string  `json:"run_id"`
	JobID           string  `json:"job_id"`
	Quality         string  `json:"quality"`
	Codec           string  `json:"codec"`
	Backend         string  `json:"backend"`
	Output          string  `json:"output"`
	Skipped         bool    `json:"skipped"`
	DurationSeconds float64 `json:"duration_seconds"`
	Timestamp       string  `json:"timestamp"`
}

// Type returns the event type identifier for JobCompletedEvent.
func (e JobCompletedEvent) Type() uint32 { return TypeJobCompleted }

// JobFailedEvent is published when a rendition could not be encoded.
type JobFailedEvent struct {
	RunID     string `json:"run_id"`
	JobID     string `json:"job_id"`
	Quality   string `json:"quality"`
	Codec     string `json:"codec"`
	Backend   string `json:"backend"`
	Error     string `json:"error"`
	ExitCode  int    `json:"exit_code,omitempty"`
	Timestamp string `json:"timestamp"`
}

// Type returns the event type identifier for JobFailedEvent.
func (e JobFailedEvent) Type() uint32 { return TypeJobFailed }

// TrackExtractedEvent reports the outcome of one audio or subtitle extraction.
type TrackExtractedEvent struct {
	RunID   string `json:"run_id"`
	Kind    string `json:"kind"`
	Track   string `json:"track"`
	Path    string `json:"path,omitempty"`
	Skipped bool   `json:"skipped,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Type returns the event type identifier for TrackExtractedEvent.
func (e TrackExtractedEvent) Type() uint32 { return TypeTrackExtracted }

// PackagedEvent reports the packaging outcome.
type PackagedEvent struct {
	RunID          string `json:"run_id"`
	Streams        int    `json:"streams"`
	MasterPlaylist string `json:"master_playlist,omitempty"`
	Manifest       string `json:"manifest,omitempty"`
	Error          string `json:"error,omitempty"`
}

// Type returns the event type identifier for PackagedEvent.
func (e PackagedEvent) Type() uint32 { return TypePackaged }

// RunFinishedEvent is the last event of a run.
type RunFinishedEvent struct {
	RunID           string  `json:"run_id"`
	Success         bool    `json:"success"`
	Completed       int     `json:"completed"`
	Failed          int     `json:"failed"`
	Error           string  `json:"error,omitempty"`
	DurationSeconds float64 `json:"duration_seconds"`
	Timestamp       string  `json:"timestamp"`
}

// Type returns the event type identifier for RunFinishedEvent.
func (e RunFinishedEvent) Type() uint32 { return TypeRunFinished }
