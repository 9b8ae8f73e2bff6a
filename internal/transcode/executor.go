// Package transcode runs encode plans as supervised ffmpeg passes.
package transcode

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/smazurov/streamforge/internal/ffmpeg"
	"github.com/smazurov/streamforge/internal/logging"
	"github.com/smazurov/streamforge/internal/plan"
	"github.com/smazurov/streamforge/internal/process"
	"github.com/smazurov/streamforge/internal/types"
)

// Executor runs transcode jobs one at a time.
type Executor struct {
	runner process.Runner
	binary string
	logger logging.Logger
}

// NewExecutor creates an Executor that runs binary (usually "ffmpeg").
func NewExecutor(runner process.Runner, binary string, logger logging.Logger) *Executor {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &Executor{runner: runner, binary: binary, logger: logger}
}

// Run executes every pass of job. A non-zero exit fails the job with
// TranscodeFailed carrying the exit code and the encoder's last output
// lines. There is no retry; re-running with SkipExisting resumes.
func (e *Executor) Run(ctx context.Context, job *Job, obs Observer) (*Result, error) {
	if obs == nil {
		obs = nopObserver{}
	}
	job.State = StatePending
	start := time.Now()

	// ffmpeg runs inside the temp dir, so relative paths would resolve
	// against it instead of the caller's working directory.
	input, err := filepath.Abs(job.Source.Path)
	if err != nil {
		job.State = StateFailed
		return nil, types.NewError(types.ErrCodeTranscodeFailed, "cannot resolve source path", err)
	}
	if job.WorkDir, err = filepath.Abs(job.WorkDir); err != nil {
		job.State = StateFailed
		return nil, types.NewError(types.ErrCodeTranscodeFailed, "cannot resolve work dir", err)
	}
	output := job.OutputPath()

	p := plan.Synthesize(job.Rendition, job.Codec, job.Backend, job.Source.Video, job.Settings)
	if p.Passes > 1 {
		p.PassLogPath = filepath.Join(job.TempDir(), plan.PassLogName(job.Rendition.Quality))
	}
	result := &Result{JobID: job.ID(), Output: output, Plan: p}

	if job.SkipExisting && Exists(output) {
		e.logger.Info("Output exists, skipping transcode", "job", job.ID(), "output", output)
		job.State = StateCompleted
		result.Skipped = true
		return result, nil
	}

	if err := os.MkdirAll(job.TempDir(), 0o755); err != nil {
		job.State = StateFailed
		return nil, types.NewError(types.ErrCodeTranscodeFailed, "failed to create temp dir", err)
	}

	e.logger.Info("Starting transcode",
		"job", job.ID(),
		"encoder", p.Encoder,
		"backend", job.Backend.Method,
		"passes", p.Passes,
		"tone_map", p.ToneMap,
		"hw_decode", p.HWDecode)

	for pass := 1; pass <= p.Passes; pass++ {
		if pass == 1 {
			job.State = StatePass1Running
		} else {
			job.State = StatePass2Running
		}

		if err := e.runPass(ctx, job, p, input, pass, obs); err != nil {
			job.State = StateFailed
			removePartial(output)
			return nil, err
		}
		obs.OnPassComplete(job, pass, p.Passes)
	}

	job.State = StateCompleted
	result.Duration = time.Since(start)
	e.logger.Info("Transcode complete", "job", job.ID(), "output", output, "duration", result.Duration.Round(time.Second))
	return result, nil
}

func (e *Executor) runPass(ctx context.Context, job *Job, p plan.EncodePlan, input string, pass int, obs Observer) error {
	src := job.Source
	parser := ffmpeg.NewProgressParser(src.Duration, src.Video.FrameRate)

	// ffmpeg writes its status line to stderr only, so the parser sees a
	// single goroutine.
	handler := process.OutputHandlerFunc(func(source, line string) {
		if source != "stderr" {
			return
		}
		if prog, ok := parser.Feed(line); ok {
			obs.OnProgress(job, Progress{
				Pass:        pass,
				Passes:      p.Passes,
				Frame:       prog.Frame,
				TotalFrames: prog.TotalFrames,
				FPS:         prog.FPS,
				Speed:       prog.Speed,
				Percent:     prog.Percent,
				ETA:         prog.ETA,
			})
		}
	})

	args := ffmpeg.BuildArgs(p.Params(input, job.OutputPath(), pass))
	res, err := e.runner.Run(ctx, process.Command{
		Name:    e.binary,
		Args:    args,
		Dir:     job.TempDir(),
		Handler: handler,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("transcode %s cancelled: %w", job.ID(), err)
		}
		return types.NewError(types.ErrCodeTranscodeFailed, fmt.Sprintf("%s pass %d could not run", job.ID(), pass), err)
	}
	if res.ExitCode != 0 {
		e.logger.Error("Transcode pass failed",
			"job", job.ID(),
			"pass", pass,
			"exit_code", res.ExitCode,
			"output", res.Output())
		return types.NewToolError(types.ErrCodeTranscodeFailed,
			fmt.Sprintf("%s pass %d failed", job.ID(), pass), res.ExitCode, res.Output())
	}
	return nil
}

// removePartial drops a half-written output so a later skip-if-exists run
// does not mistake it for a finished encode.
func removePartial(path string) {
	_ = os.Remove(path)
}
