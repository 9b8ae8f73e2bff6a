package transcode

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/smazurov/streamforge/internal/encoders"
	"github.com/smazurov/streamforge/internal/ladder"
	"github.com/smazurov/streamforge/internal/logging"
	"github.com/smazurov/streamforge/internal/plan"
	"github.com/smazurov/streamforge/internal/process"
	"github.com/smazurov/streamforge/internal/process/processtest"
	"github.com/smazurov/streamforge/internal/types"
)

var statusLines = []string{
	"[info] Stream mapping:",
	"frame=  120 fps= 60 q=-0.0 size=     512KiB time=00:00:05.00 bitrate= 838.9kbits/s speed=2.5x",
	"frame=  240 fps= 60 q=-0.0 size=    1024KiB time=00:00:10.00 bitrate= 838.9kbits/s speed=2.5x",
}

type recorder struct {
	mu       sync.Mutex
	progress []Progress
	passes   []int
}

func (r *recorder) OnProgress(_ *Job, p Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, p)
}

func (r *recorder) OnPassComplete(_ *Job, pass, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.passes = append(r.passes, pass)
}

func newJob(t *testing.T, quality string, codec types.Codec, mode string) *Job {
	t.Helper()
	settings, err := plan.SettingsFor(mode)
	if err != nil {
		t.Fatal(err)
	}
	var rendition ladder.Rendition
	for _, r := range ladder.Catalog() {
		if r.Quality == quality {
			rendition = r
		}
	}
	return &Job{
		Rendition: rendition,
		Codec:     codec,
		Backend:   encoders.Software(),
		Settings:  settings,
		Source: &types.MediaDescriptor{
			Path:     "/media/film.mkv",
			Duration: 20,
			Video:    types.VideoTrack{Width: 1920, Height: 1080, FrameRate: 24, DynamicRange: types.DynamicRangeSDR},
		},
		WorkDir: t.TempDir(),
	}
}

func TestRunTwoPassVP9(t *testing.T) {
	job := newJob(t, "1080p", types.CodecVP9, "prod")
	runner := &processtest.Runner{Respond: func(processtest.Call) processtest.Response {
		return processtest.Response{Lines: statusLines}
	}}
	obs := &recorder{}

	res, err := NewExecutor(runner, "ffmpeg", logging.Nop()).Run(context.Background(), job, obs)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if job.State != StateCompleted {
		t.Errorf("State = %s, want completed", job.State)
	}

	calls := runner.CallsTo("ffmpeg")
	if len(calls) != 2 {
		t.Fatalf("expected 2 passes, got %d calls", len(calls))
	}
	passLog := filepath.Join(job.TempDir(), "passlog_1080p")
	if !calls[0].Has("-pass", "1", "-passlogfile", passLog) || !calls[0].Has("-f", "null", os.DevNull) {
		t.Errorf("pass 1 should go to the null muxer: %s", calls[0])
	}
	if !calls[1].Has("-pass", "2", "-passlogfile", passLog) || !calls[1].Has("-maxrate", "6750k") {
		t.Errorf("unexpected pass 2: %s", calls[1])
	}
	if calls[1].Args[len(calls[1].Args)-1] != job.OutputPath() {
		t.Errorf("pass 2 output = %s, want %s", calls[1].Args[len(calls[1].Args)-1], job.OutputPath())
	}
	if calls[0].Dir != job.TempDir() {
		t.Errorf("Dir = %s, want %s", calls[0].Dir, job.TempDir())
	}
	for _, c := range calls {
		if !c.Has("-an") {
			t.Errorf("video encode must drop audio: %s", c)
		}
	}

	if res.Output != filepath.Join(job.WorkDir, "tmp", "1080p_vp9.webm") || !Exists(res.Output) {
		t.Errorf("output %s missing", res.Output)
	}
	if len(obs.passes) != 2 || obs.passes[0] != 1 || obs.passes[1] != 2 {
		t.Errorf("pass completions = %v, want [1 2]", obs.passes)
	}
	if len(obs.progress) != 4 {
		t.Fatalf("expected 4 progress reports, got %d", len(obs.progress))
	}
	last := obs.progress[3]
	if last.Pass != 2 || last.Passes != 2 || last.Frame != 240 || last.TotalFrames != 480 || last.Percent != 50 {
		t.Errorf("unexpected last progress: %+v", last)
	}
	if last.FPS != 60 || last.Speed != 2.5 || last.ETA.Seconds() != 4 {
		t.Errorf("unexpected rate fields: %+v", last)
	}
}

func TestRunSinglePassHEVC(t *testing.T) {
	job := newJob(t, "720p", types.CodecHEVC, "dev")
	runner := &processtest.Runner{}

	res, err := NewExecutor(runner, "ffmpeg", logging.Nop()).Run(context.Background(), job, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	calls := runner.CallsTo("ffmpeg")
	if len(calls) != 1 {
		t.Fatalf("expected 1 pass, got %d", len(calls))
	}
	if !calls[0].Has("-c:v", "libx265") || !calls[0].Has("-tag:v", "hvc1") || !calls[0].Has("-vf", "scale=-2:720") {
		t.Errorf("unexpected HEVC args: %s", calls[0])
	}
	if filepath.Base(res.Output) != "720p_hevc.mp4" {
		t.Errorf("output = %s, want 720p_hevc.mp4", res.Output)
	}
	if res.Plan.PassLogPath != "" {
		t.Errorf("single pass should not use a pass log, got %s", res.Plan.PassLogPath)
	}
}

func TestRunSkipsExistingOutput(t *testing.T) {
	job := newJob(t, "1080p", types.CodecHEVC, "dev")
	job.SkipExisting = true
	if err := os.MkdirAll(job.TempDir(), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(job.OutputPath(), []byte("encoded"), 0o644); err != nil {
		t.Fatal(err)
	}
	runner := &processtest.Runner{}

	res, err := NewExecutor(runner, "ffmpeg", logging.Nop()).Run(context.Background(), job, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !res.Skipped || job.State != StateCompleted {
		t.Errorf("Skipped = %v, State = %s; want skipped and completed", res.Skipped, job.State)
	}
	if n := len(runner.Calls()); n != 0 {
		t.Errorf("expected no subprocess, got %d calls", n)
	}
}

func TestRunIgnoresEmptyExistingOutput(t *testing.T) {
	job := newJob(t, "1080p", types.CodecHEVC, "dev")
	job.SkipExisting = true
	if err := os.MkdirAll(job.TempDir(), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(job.OutputPath(), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	runner := &processtest.Runner{}

	if _, err := NewExecutor(runner, "ffmpeg", logging.Nop()).Run(context.Background(), job, nil); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if n := len(runner.Calls()); n != 1 {
		t.Errorf("empty output should be re-encoded, got %d calls", n)
	}
}

func TestRunFailure(t *testing.T) {
	job := newJob(t, "1080p", types.CodecVP9, "prod")
	if err := os.MkdirAll(job.TempDir(), 0o755); err != nil {
		t.Fatal(err)
	}
	// A stale partial output from an interrupted run.
	if err := os.WriteFile(job.OutputPath(), []byte("partial"), 0o644); err != nil {
		t.Fatal(err)
	}

	runner := &processtest.Runner{Respond: func(c processtest.Call) processtest.Response {
		if c.Has("-pass", "2") {
			return processtest.Response{Lines: []string{"[error] Error while opening encoder"}, ExitCode: 1}
		}
		return processtest.Response{}
	}}

	_, err := NewExecutor(runner, "ffmpeg", logging.Nop()).Run(context.Background(), job, nil)
	if !errors.Is(err, types.ErrTranscodeFailed) {
		t.Fatalf("error = %v, want TranscodeFailed", err)
	}
	var e *types.Error
	if !errors.As(err, &e) || e.ExitCode != 1 || !strings.Contains(e.Output, "Error while opening encoder") {
		t.Errorf("error should carry exit code and tail, got %+v", e)
	}
	if job.State != StateFailed {
		t.Errorf("State = %s, want failed", job.State)
	}
	if _, statErr := os.Stat(job.OutputPath()); !os.IsNotExist(statErr) {
		t.Error("partial output should be removed after a failure")
	}
}

func TestRunCancelled(t *testing.T) {
	job := newJob(t, "720p", types.CodecHEVC, "dev")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewExecutor(&processtest.Runner{}, "ffmpeg", logging.Nop()).Run(ctx, job, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if errors.Is(err, types.ErrTranscodeFailed) {
		t.Error("cancellation must not be reported as an encoder failure")
	}
}

func TestOutputName(t *testing.T) {
	if got := OutputName("2160p", types.CodecVP9); got != "2160p_vp9.webm" {
		t.Errorf("OutputName = %s", got)
	}
	if got := OutputName("480p", types.CodecHEVC); got != "480p_hevc.mp4" {
		t.Errorf("OutputName = %s", got)
	}
}

// fakeEncoder fails like ffmpeg when the -i input is missing and otherwise
// creates its last argument.
const fakeEncoder = `#!/bin/sh
in=""
prev=""
for a in "$@"; do
	[ "$prev" = "-i" ] && in="$a"
	prev="$a"
done
if [ ! -f "$in" ]; then
	echo "$in: No such file or directory" >&2
	exit 1
fi
eval out=\${$#}
: > "$out"
`

func TestRunRelativePaths(t *testing.T) {
	bin := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(bin, []byte(fakeEncoder), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Chdir(t.TempDir())
	if err := os.WriteFile("src.mkv", []byte("matroska"), 0o644); err != nil {
		t.Fatal(err)
	}

	job := newJob(t, "720p", types.CodecHEVC, "dev")
	job.Source.Path = "src.mkv"
	job.WorkDir = "out"

	res, err := NewExecutor(process.NewExecRunner(logging.Nop()), bin, logging.Nop()).Run(context.Background(), job, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	want, err := filepath.Abs(filepath.Join("out", "tmp", "720p_hevc.mp4"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Output != want || !fileExists(want) {
		t.Errorf("output = %s, want %s on disk", res.Output, want)
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
