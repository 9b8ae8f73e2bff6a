package transcode

import (
	"os"
	"path/filepath"
	"time"

	"github.com/smazurov/streamforge/internal/encoders"
	"github.com/smazurov/streamforge/internal/ladder"
	"github.com/smazurov/streamforge/internal/plan"
	"github.com/smazurov/streamforge/internal/types"
)

// TempDirName holds intermediates and pass logs under the output dir.
const TempDirName = "tmp"

// State is the lifecycle position of a Job.
type State string

// Job states. A VP9 software job in two-pass mode visits both running
// states; every other job goes from Pass1Running straight to an end state.
const (
	StatePending      State = "pending"
	StatePass1Running State = "pass1_running"
	StatePass2Running State = "pass2_running"
	StateCompleted    State = "completed"
	StateFailed       State = "failed"
)

// Job encodes one rendition in one codec.
type Job struct {
	Rendition ladder.Rendition
	Codec     types.Codec
	Backend   encoders.Backend
	Settings  plan.Settings
	Source    *types.MediaDescriptor
	// WorkDir is the run's output directory; intermediates go to WorkDir/tmp.
	WorkDir string
	// SkipExisting completes the job without encoding when its output is
	// already present.
	SkipExisting bool

	State State
}

// ID names the job by quality and codec, e.g. "1080p_vp9".
func (j *Job) ID() string {
	return j.Rendition.Quality + "_" + string(j.Codec)
}

// TempDir is where the job writes its output and pass log.
func (j *Job) TempDir() string {
	return filepath.Join(j.WorkDir, TempDirName)
}

// OutputPath is the encoded elementary stream.
func (j *Job) OutputPath() string {
	return filepath.Join(j.TempDir(), OutputName(j.Rendition.Quality, j.Codec))
}

// OutputName returns the file name for a rendition in codec.
func OutputName(quality string, codec types.Codec) string {
	ext := ".mp4"
	if codec == types.CodecVP9 {
		ext = ".webm"
	}
	return quality + "_" + string(codec) + ext
}

// Progress is reported while a pass runs.
type Progress struct {
	Pass        int
	Passes      int
	Frame       int64
	TotalFrames int64
	FPS         float64
	Speed       float64
	// Percent is clamped to 100 and never decreases within a pass.
	Percent float64
	ETA     time.Duration
}

// Result describes a finished job.
type Result struct {
	JobID    string
	Output   string
	Plan     plan.EncodePlan
	Skipped  bool
	Duration time.Duration
}

// Observer receives progress from a running job. Calls arrive on the
// goroutine draining the encoder's output.
type Observer interface {
	OnProgress(job *Job, p Progress)
	OnPassComplete(job *Job, pass, passes int)
}

type nopObserver struct{}

func (nopObserver) OnProgress(*Job, Progress)     {}
func (nopObserver) OnPassComplete(*Job, int, int) {}

// Exists reports whether path is a non-empty regular file.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}
