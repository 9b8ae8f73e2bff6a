package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/streamforge/internal/events"
	"github.com/smazurov/streamforge/internal/ladder"
	"github.com/smazurov/streamforge/internal/logging"
	"github.com/smazurov/streamforge/internal/plan"
	"github.com/smazurov/streamforge/internal/process/processtest"
	"github.com/smazurov/streamforge/internal/store"
	"github.com/smazurov/streamforge/internal/transcode"
	"github.com/smazurov/streamforge/internal/types"
)

// uhdFilm is a 4K HDR10 source with one 5.1 track and one forced subtitle.
const uhdFilm = `{
  "format": {"format_name": "matroska,webm", "duration": "600.0", "size": "4000000000"},
  "streams": [
    {"index": 0, "codec_type": "video", "codec_name": "hevc", "pix_fmt": "yuv420p10le",
     "width": 3840, "height": 2160, "avg_frame_rate": "24/1",
     "color_primaries": "bt2020", "color_transfer": "smpte2084", "color_space": "bt2020nc"},
    {"index": 1, "codec_type": "audio", "codec_name": "ac3", "channels": 6, "channel_layout": "5.1(side)",
     "tags": {"language": "eng"}},
    {"index": 2, "codec_type": "subtitle", "codec_name": "subrip", "disposition": {"forced": 1},
     "tags": {"language": "eng"}}
  ]
}`

const lowResFilm = `{"streams": [{"codec_type": "video", "width": 854, "height": 480}]}`

const softwareEncoders = `Encoders:
 V..... = Video
 ------
 V....D libx265              libx265 H.265 / HEVC (codec hevc)
 V....D libvpx-vp9           libvpx VP9 (codec vp9)
 A....D eac3                 ATSC A/52 E-AC-3
`

// toolchain scripts ffprobe, ffmpeg queries and the packager. fail, when
// set, decides which remaining calls exit non-zero.
func toolchain(probeJSON string, fail func(processtest.Call) bool) *processtest.Runner {
	return &processtest.Runner{Respond: func(c processtest.Call) processtest.Response {
		switch {
		case c.Name == "ffprobe":
			return processtest.Response{Stdout: []byte(probeJSON)}
		case c.Has("-hwaccels"):
			return processtest.Response{Stdout: []byte("Hardware acceleration methods:\n")}
		case c.Has("-encoders"):
			return processtest.Response{Stdout: []byte(softwareEncoders)}
		case fail != nil && fail(c):
			return processtest.Response{Lines: []string{"[error] Error while encoding"}, ExitCode: 1}
		}
		return processtest.Response{}
	}}
}

func newTestPipeline(runner *processtest.Runner, opts ...Option) *Pipeline {
	p := New(runner, Tools{}, logging.Nop(), opts...)
	p.lookPath = func(name string) (string, error) { return "/usr/bin/" + name, nil }
	return p
}

func sourceFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "film.mkv")
	if err := os.WriteFile(path, []byte("matroska"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

type recordingObserver struct {
	NopObserver
	mu        sync.Mutex
	steps     []Step
	completed []string
	failed    []string
}

func (o *recordingObserver) OnStep(s Step) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.steps = append(o.steps, s)
}

func (o *recordingObserver) OnJobComplete(job *transcode.Job, _ *transcode.Result) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.completed = append(o.completed, job.ID())
}

func (o *recordingObserver) OnJobError(job *transcode.Job, _ error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failed = append(o.failed, job.ID())
}

func encodeCalls(runner *processtest.Runner) []processtest.Call {
	var out []processtest.Call
	for _, c := range runner.CallsTo("ffmpeg") {
		if c.Has("-an") {
			out = append(out, c)
		}
	}
	return out
}

func TestRunEndToEnd(t *testing.T) {
	out := t.TempDir()
	runner := toolchain(uhdFilm, nil)
	obs := &recordingObserver{}

	res, err := newTestPipeline(runner, WithObserver(obs)).Run(context.Background(), Request{
		Input:  sourceFile(t),
		Output: out,
		Mode:   plan.ModeDev,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(res.Ladder) != 5 {
		t.Errorf("ladder = %d tiers, want 5", len(res.Ladder))
	}
	if len(res.Completed) != 10 || len(res.Failed) != 0 {
		t.Errorf("completed %d, failed %d; want 10, 0", len(res.Completed), len(res.Failed))
	}
	if len(res.Audio) != 1 || res.Audio[0].Codec != "eac3" {
		t.Errorf("audio = %+v, want one eac3 track", res.Audio)
	}
	if len(res.Subtitles) != 1 || filepath.Base(res.Subtitles[0].Path) != "eng_forced.vtt" {
		t.Errorf("subtitles = %+v, want eng_forced.vtt", res.Subtitles)
	}
	if res.Package == nil || res.Package.MasterPlaylist != filepath.Join(out, "master.m3u8") {
		t.Fatalf("package = %+v", res.Package)
	}
	if res.Package.Streams != 12 {
		t.Errorf("packaged %d streams, want 12", res.Package.Streams)
	}

	wantSteps := []Step{StepToolCheck, StepInput, StepProbe, StepInfo, StepSelect, StepTranscode, StepPackage, StepComplete}
	if !slices.Equal(obs.steps, wantSteps) {
		t.Errorf("steps = %v, want %v", obs.steps, wantSteps)
	}

	calls := encodeCalls(runner)
	if len(calls) != 10 {
		t.Fatalf("got %d encodes, want 10", len(calls))
	}
	if !strings.HasSuffix(calls[0].Args[len(calls[0].Args)-1], "2160p_vp9.webm") ||
		!strings.HasSuffix(calls[1].Args[len(calls[1].Args)-1], "2160p_hevc.mp4") {
		t.Errorf("each rendition should encode VP9 then HEVC: %s / %s", calls[0], calls[1])
	}

	if _, err := os.Stat(filepath.Join(out, transcode.TempDirName)); !os.IsNotExist(err) {
		t.Error("tmp/ should be removed after a successful run")
	}

	m, err := store.Load(out)
	if err != nil {
		t.Fatalf("manifest: %v", err)
	}
	if m.Status != store.StatusCompleted || m.RunID != res.RunID || len(m.Jobs) != 10 {
		t.Errorf("manifest = %+v", m)
	}
	if m.Package == nil || m.Package.Streams != 12 {
		t.Errorf("manifest package = %+v", m.Package)
	}
}

func TestRunVP9FailureContinues(t *testing.T) {
	out := t.TempDir()
	failed := filepath.Join(out, transcode.TempDirName, "1080p_vp9.webm")
	runner := toolchain(uhdFilm, func(c processtest.Call) bool {
		return slices.Contains(c.Args, failed)
	})
	obs := &recordingObserver{}

	res, err := newTestPipeline(runner, WithObserver(obs)).Run(context.Background(), Request{
		Input:  sourceFile(t),
		Output: out,
		Mode:   plan.ModeDev,
	})
	if err != nil {
		t.Fatalf("a single job failure must not fail the run: %v", err)
	}

	if len(res.Completed) != 9 || len(res.Failed) != 1 || res.Failed[0].JobID != "1080p_vp9" {
		t.Fatalf("completed %d, failed %+v", len(res.Completed), res.Failed)
	}
	if !errors.Is(res.Failed[0].Err, types.ErrTranscodeFailed) {
		t.Errorf("failure = %v, want TranscodeFailed", res.Failed[0].Err)
	}
	if !slices.Equal(obs.failed, []string{"1080p_vp9"}) || len(obs.completed) != 9 {
		t.Errorf("observer saw completed=%v failed=%v", obs.completed, obs.failed)
	}
	if !slices.Contains(obs.completed, "1080p_hevc") || !slices.Contains(obs.completed, "720p_vp9") {
		t.Error("HEVC of the same rendition and later renditions must still run")
	}

	pkg := runner.CallsTo("packager")
	if len(pkg) != 1 {
		t.Fatalf("expected one packager call, got %d", len(pkg))
	}
	for _, arg := range pkg[0].Args {
		if strings.Contains(arg, "1080p_vp9") {
			t.Errorf("failed rendition must not be packaged: %s", arg)
		}
	}
	if !pkg[0].Has(findArg(pkg[0].Args, "videos/1080p_hevc/")) {
		t.Error("1080p HEVC should be packaged")
	}

	m, err := store.Load(out)
	if err != nil {
		t.Fatal(err)
	}
	if j := m.Jobs["1080p_vp9"]; j.Status != store.StatusFailed || j.ExitCode != 1 {
		t.Errorf("manifest job = %+v", j)
	}
}

func findArg(args []string, substr string) string {
	for _, a := range args {
		if strings.Contains(a, substr) {
			return a
		}
	}
	return "\x00missing"
}

func TestRunTwoPassVP9(t *testing.T) {
	runner := toolchain(uhdFilm, nil)
	p := newTestPipeline(runner, WithSelector(StaticSelector{Qualities: []string{"1080p"}, Codecs: []string{"vp9"}}))

	res, err := p.Run(context.Background(), Request{Input: sourceFile(t), Output: t.TempDir(), Mode: plan.ModeProd})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Completed) != 1 {
		t.Fatalf("completed %d jobs, want 1", len(res.Completed))
	}

	calls := encodeCalls(runner)
	if len(calls) != 2 {
		t.Fatalf("got %d passes, want 2", len(calls))
	}
	if !calls[0].Has("-pass", "1") || calls[0].Args[len(calls[0].Args)-1] != os.DevNull {
		t.Errorf("pass 1 should go to the null sink: %s", calls[0])
	}
	if !calls[1].Has("-pass", "2") {
		t.Errorf("second call should be pass 2: %s", calls[1])
	}
}

func TestRunSourceErrors(t *testing.T) {
	tests := []struct {
		name  string
		probe string
		input func(t *testing.T) string
		want  error
	}{
		{"missing input", uhdFilm, func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope.mkv") }, types.ErrNotFound},
		{"resolution too low", lowResFilm, sourceFile, types.ErrResolutionTooLow},
		{"not json", "garbage", sourceFile, types.ErrProbeFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := toolchain(tt.probe, nil)
			obs := &recordingObserver{}

			_, err := newTestPipeline(runner, WithObserver(obs)).Run(context.Background(), Request{
				Input:  tt.input(t),
				Output: t.TempDir(),
				Mode:   plan.ModeDev,
			})
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
			if obs.steps[len(obs.steps)-1] != StepError {
				t.Errorf("last step = %s, want error", obs.steps[len(obs.steps)-1])
			}
			if len(encodeCalls(runner)) != 0 || len(runner.CallsTo("packager")) != 0 {
				t.Error("no work may be scheduled for an unusable source")
			}
		})
	}
}

func TestRunMissingTools(t *testing.T) {
	runner := toolchain(uhdFilm, nil)
	p := newTestPipeline(runner)
	p.lookPath = func(name string) (string, error) {
		if name == "packager" {
			return "", errors.New("not found")
		}
		return name, nil
	}

	out := t.TempDir()
	_, err := p.Run(context.Background(), Request{Input: sourceFile(t), Output: out, Mode: plan.ModeDev})
	if !errors.Is(err, types.ErrToolUnavailable) || !strings.Contains(err.Error(), "packager") {
		t.Fatalf("error = %v, want ToolUnavailable naming packager", err)
	}
	if len(runner.Calls()) != 0 {
		t.Error("nothing should run when tools are missing")
	}
	if _, statErr := os.Stat(filepath.Join(out, store.FileName)); !os.IsNotExist(statErr) {
		t.Error("no manifest should be written before the input is accepted")
	}
}

func TestRunPackagingFailure(t *testing.T) {
	out := t.TempDir()
	runner := toolchain(uhdFilm, func(c processtest.Call) bool { return c.Name == "packager" })

	res, err := newTestPipeline(runner).Run(context.Background(), Request{Input: sourceFile(t), Output: out, Mode: plan.ModeDev})
	if !errors.Is(err, types.ErrPackagingFailed) {
		t.Fatalf("error = %v, want PackagingFailed", err)
	}
	if len(res.Completed) != 10 {
		t.Errorf("transcodes should be reported even when packaging fails, got %d", len(res.Completed))
	}
	if _, statErr := os.Stat(filepath.Join(out, transcode.TempDirName)); statErr != nil {
		t.Error("tmp/ must be kept when packaging fails")
	}

	m, loadErr := store.Load(out)
	if loadErr != nil {
		t.Fatal(loadErr)
	}
	if m.Status != store.StatusFailed || m.Package == nil || m.Package.Error == "" {
		t.Errorf("manifest = %+v, package = %+v", m, m.Package)
	}
}

func TestRunAllJobsFail(t *testing.T) {
	runner := toolchain(uhdFilm, func(c processtest.Call) bool { return c.Has("-an") })

	res, err := newTestPipeline(runner).Run(context.Background(), Request{Input: sourceFile(t), Output: t.TempDir(), Mode: plan.ModeDev})
	if !errors.Is(err, types.ErrPackagingFailed) {
		t.Fatalf("error = %v, want PackagingFailed", err)
	}
	if len(res.Failed) != 10 {
		t.Errorf("failed %d jobs, want 10", len(res.Failed))
	}
	if len(runner.CallsTo("packager")) != 0 {
		t.Error("packager must not run without video")
	}
}

func TestRunSkipExisting(t *testing.T) {
	out := t.TempDir()
	input := sourceFile(t)
	req := Request{Input: input, Output: out, Mode: plan.ModeDev, SkipExisting: true}

	if _, err := newTestPipeline(toolchain(uhdFilm, nil)).Run(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(out, transcode.TempDirName)); err != nil {
		t.Fatal("tmp/ must be kept in skip-existing mode")
	}

	rerun := toolchain(uhdFilm, nil)
	res, err := newTestPipeline(rerun).Run(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range rerun.CallsTo("ffmpeg") {
		if !c.Has("-hwaccels") && !c.Has("-encoders") {
			t.Errorf("re-run should not encode or extract: %s", c)
		}
	}
	for _, r := range res.Completed {
		if !r.Skipped {
			t.Errorf("%s should be skipped", r.JobID)
		}
	}
	if len(rerun.CallsTo("packager")) != 1 {
		t.Error("packaging always runs")
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner := &processtest.Runner{}
	inner := toolchain(uhdFilm, nil)
	runner.Respond = func(c processtest.Call) processtest.Response {
		if c.Has("-an") {
			cancel()
		}
		return inner.Respond(c)
	}

	res, err := newTestPipeline(runner).Run(ctx, Request{Input: sourceFile(t), Output: t.TempDir(), Mode: plan.ModeDev})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if len(res.Completed) != 1 {
		t.Errorf("completed %d jobs before cancel, want 1", len(res.Completed))
	}
	if len(runner.CallsTo("packager")) != 0 {
		t.Error("cancelled run must not package")
	}
}

func TestRunPublishesEvents(t *testing.T) {
	bus := events.New()
	finished := make(chan events.RunFinishedEvent, 1)
	unsub := bus.Subscribe(func(e events.RunFinishedEvent) { finished <- e })
	defer unsub()

	var mu sync.Mutex
	var failures []string
	unsubFail := bus.Subscribe(func(e events.JobFailedEvent) {
		mu.Lock()
		defer mu.Unlock()
		failures = append(failures, e.JobID)
	})
	defer unsubFail()

	out := t.TempDir()
	failed := filepath.Join(out, transcode.TempDirName, "720p_hevc.mp4")
	runner := toolchain(uhdFilm, func(c processtest.Call) bool { return slices.Contains(c.Args, failed) })

	res, err := newTestPipeline(runner, WithEventBus(bus)).Run(context.Background(), Request{Input: sourceFile(t), Output: out, Mode: plan.ModeDev})
	if err != nil {
		t.Fatal(err)
	}

	select {
	case e := <-finished:
		if !e.Success || e.Completed != 9 || e.Failed != 1 || e.RunID != res.RunID {
			t.Errorf("run finished event = %+v", e)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no RunFinishedEvent")
	}

	// Per-subscriber order is preserved, but subscribers run independently.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(failures)
		mu.Unlock()
		if n == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	mu.Lock()
	defer mu.Unlock()
	if !slices.Equal(failures, []string{"720p_hevc"}) {
		t.Errorf("job failed events = %v", failures)
	}
}

func TestStaticSelector(t *testing.T) {
	src := &types.MediaDescriptor{Video: types.VideoTrack{Width: 1920, Height: 1080}}

	tests := []struct {
		name      string
		sel       StaticSelector
		wantQ     int
		wantCodec []types.Codec
		wantErr   error
	}{
		{"defaults", StaticSelector{}, 3, []types.Codec{types.CodecVP9, types.CodecHEVC}, nil},
		{"subset", StaticSelector{Qualities: []string{"720p"}, Codecs: []string{"h265"}}, 1, []types.Codec{types.CodecHEVC}, nil},
		{"codec order", StaticSelector{Codecs: []string{"hevc", "vp9"}}, 3, []types.Codec{types.CodecVP9, types.CodecHEVC}, nil},
		{"codec case", StaticSelector{Codecs: []string{"VP9", " HEVC"}}, 3, []types.Codec{types.CodecVP9, types.CodecHEVC}, nil},
		{"unavailable quality", StaticSelector{Qualities: []string{"2160p"}}, 0, nil, types.ErrInvalidSelection},
		{"unknown codec", StaticSelector{Codecs: []string{"av1"}}, 0, nil, types.ErrInvalidSelection},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.sel.Select(context.Background(), src, ladder.Build(src.Video), nil)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if len(got.Renditions) != tt.wantQ || !slices.Equal(got.Codecs, tt.wantCodec) || got.Backend != "auto" {
				t.Errorf("selection = %+v", got)
			}
		})
	}
}

func TestStepString(t *testing.T) {
	if StepToolCheck.String() != "tool_check" || StepComplete.String() != "complete" || Step(99).String() != "unknown" {
		t.Error("unexpected step names")
	}
	if !StepError.Terminal() || StepPackage.Terminal() {
		t.Error("only complete and error are terminal")
	}
}

func TestRunRelativePaths(t *testing.T) {
	t.Chdir(t.TempDir())
	if err := os.WriteFile("film.mkv", []byte("matroska"), 0o644); err != nil {
		t.Fatal(err)
	}
	runner := toolchain(uhdFilm, nil)
	runner.CheckInputs = true

	res, err := newTestPipeline(runner).Run(context.Background(), Request{
		Input:  "film.mkv",
		Output: "out",
		Mode:   plan.ModeDev,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(res.Completed) != 10 || len(res.Failed) != 0 {
		t.Errorf("completed %d, failed %d; want 10, 0", len(res.Completed), len(res.Failed))
	}

	out, err := filepath.Abs("out")
	if err != nil {
		t.Fatal(err)
	}
	if res.Package.MasterPlaylist != filepath.Join(out, "master.m3u8") {
		t.Errorf("master playlist = %s, want under %s", res.Package.MasterPlaylist, out)
	}
	for _, c := range runner.CallsTo("ffmpeg") {
		i := slices.Index(c.Args, "-i")
		if i < 0 {
			continue
		}
		if in := c.Args[i+1]; !filepath.IsAbs(in) {
			t.Errorf("ffmpeg input %q should be absolute: %s", in, c)
		}
		if last := c.Args[len(c.Args)-1]; !filepath.IsAbs(last) {
			t.Errorf("ffmpeg output %q should be absolute: %s", last, c)
		}
	}
	if _, err := os.Stat(filepath.Join("out", "tmp", "out")); !os.IsNotExist(err) {
		t.Error("outputs must not nest the output dir inside itself")
	}
	if _, err := store.Load("out"); err != nil {
		t.Errorf("manifest not written to ./out: %v", err)
	}
}
