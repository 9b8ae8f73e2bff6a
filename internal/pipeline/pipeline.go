// Package pipeline sequences probing, detection, extraction, transcoding and
// packaging into one run and applies the per-job failure policy.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/smazurov/streamforge/internal/encoders"
	"github.com/smazurov/streamforge/internal/events"
	"github.com/smazurov/streamforge/internal/extract"
	"github.com/smazurov/streamforge/internal/ladder"
	"github.com/smazurov/streamforge/internal/logging"
	"github.com/smazurov/streamforge/internal/packager"
	"github.com/smazurov/streamforge/internal/plan"
	"github.com/smazurov/streamforge/internal/probe"
	"github.com/smazurov/streamforge/internal/process"
	"github.com/smazurov/streamforge/internal/store"
	"github.com/smazurov/streamforge/internal/transcode"
	"github.com/smazurov/streamforge/internal/types"
)

// Tools names the external binaries a run needs.
type Tools struct {
	FFmpeg   string
	FFprobe  string
	Packager string
}

// DefaultTools uses the binaries found on PATH.
func DefaultTools() Tools {
	return Tools{FFmpeg: "ffmpeg", FFprobe: "ffprobe", Packager: "packager"}
}

// Request describes one run.
type Request struct {
	Input  string
	Output string
	Mode   plan.Mode
	// SkipExisting reuses outputs of an earlier run and keeps tmp/.
	SkipExisting bool
	// KeepTemp keeps tmp/ after a successful run.
	KeepTemp bool
}

// JobFailure records a job that produced nothing.
type JobFailure struct {
	JobID string
	Err   error
}

// Result summarizes a run. On error it holds whatever was produced before
// the failure.
type Result struct {
	RunID     string
	Source    *types.MediaDescriptor
	Ladder    []ladder.Rendition
	Backends  []encoders.Backend
	Selection encoders.Selection
	Completed []*transcode.Result
	Failed    []JobFailure
	Audio     []extract.ExtractedAudio
	Subtitles []extract.ExtractedSubtitle
	Package   *packager.Result
	Duration  time.Duration
}

// tally counts finished jobs.
type tally struct {
	completed atomic.Int32
	failed    atomic.Int32
}

// Pipeline runs requests one at a time.
type Pipeline struct {
	runner          process.Runner
	tools           Tools
	logger          logging.Logger
	observer        Observer
	selector        Selector
	bus             *events.Bus
	verifyEncoders  bool
	segmentDuration int
	lookPath        func(string) (string, error)
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithObserver sets the run observer.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) {
		if o != nil {
			p.observer = o
		}
	}
}

// WithSelector replaces the default StaticSelector.
func WithSelector(s Selector) Option {
	return func(p *Pipeline) {
		if s != nil {
			p.selector = s
		}
	}
}

// WithEventBus publishes run events on bus.
func WithEventBus(bus *events.Bus) Option {
	return func(p *Pipeline) {
		p.bus = bus
	}
}

// WithVerifyEncoders test-encodes hardware backends during detection.
func WithVerifyEncoders(verify bool) Option {
	return func(p *Pipeline) {
		p.verifyEncoders = verify
	}
}

// WithSegmentDuration sets the packager segment length in seconds.
func WithSegmentDuration(seconds int) Option {
	return func(p *Pipeline) {
		p.segmentDuration = seconds
	}
}

// New creates a Pipeline.
func New(runner process.Runner, tools Tools, logger logging.Logger, opts ...Option) *Pipeline {
	defaults := DefaultTools()
	if tools.FFmpeg == "" {
		tools.FFmpeg = defaults.FFmpeg
	}
	if tools.FFprobe == "" {
		tools.FFprobe = defaults.FFprobe
	}
	if tools.Packager == "" {
		tools.Packager = defaults.Packager
	}

	p := &Pipeline{
		runner:          runner,
		tools:           tools,
		logger:          logger,
		observer:        NopObserver{},
		selector:        StaticSelector{},
		segmentDuration: packager.DefaultSegmentDuration,
		lookPath:        exec.LookPath,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// run carries the state of one Run call.
type run struct {
	*Pipeline
	id       string
	req      Request
	obs      Observer
	manifest *store.Store
	result   *Result
	tally    tally
	// began is set once the input is accepted and the manifest exists.
	began bool
}

// Run executes req. Source problems abort before any work; a failing job is
// recorded and the loop moves on; a packaging failure ends the run with an
// error. Cancelling ctx stops the running tool and aborts the run.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	// Tools run with their working directory inside the output, so every
	// path handed to them must be absolute.
	req, err := absolutePaths(req)
	if err != nil {
		return &Result{}, err
	}

	r := &run{
		Pipeline: p,
		id:       uuid.NewString(),
		req:      req,
		manifest: store.New(req.Output),
	}
	r.result = &Result{RunID: r.id}
	r.obs = p.observer
	if p.bus != nil {
		r.obs = multiObserver{p.observer, busObserver{bus: p.bus, runID: r.id}}
	}

	start := time.Now()
	err = r.execute(ctx)
	r.result.Duration = time.Since(start)
	r.finish(err)
	return r.result, err
}

func (r *run) execute(ctx context.Context) error {
	r.step(StepToolCheck)
	if err := r.checkTools(); err != nil {
		return err
	}

	r.step(StepInput)
	if err := r.checkInput(); err != nil {
		return err
	}
	r.begin()

	r.step(StepProbe)
	src, err := probe.New(r.runner, r.tools.FFprobe, logging.GetLogger("probe")).Probe(ctx, r.req.Input)
	if err != nil {
		return err
	}
	r.result.Source = src

	r.step(StepInfo)
	r.describe(src)

	if err := r.discover(ctx, src); err != nil {
		return err
	}

	r.step(StepSelect)
	sel, err := r.selector.Select(ctx, src, r.result.Ladder, r.result.Backends)
	if err != nil {
		return err
	}
	backends, err := encoders.Select(r.result.Backends, sel.Backend)
	if err != nil {
		return err
	}
	r.result.Selection = backends
	r.logger.Info("Selected",
		"renditions", strings.Join(ladder.Qualities(sel.Renditions), ","),
		"codecs", fmt.Sprint(sel.Codecs),
		"backend", backends.String())
	r.record(func(m *store.Manifest) {
		m.Backends = &store.BackendRecord{
			HEVC:   string(backends.HEVC.Method),
			VP9:    string(backends.VP9.Method),
			Hybrid: backends.IsHybrid(),
		}
	})

	settings, err := plan.SettingsFor(r.req.Mode)
	if err != nil {
		return err
	}

	r.step(StepTranscode)
	if err := r.extract(ctx, src); err != nil {
		return err
	}
	videos, err := r.transcode(ctx, src, sel, backends, settings)
	if err != nil {
		return err
	}

	r.step(StepPackage)
	if err := r.pack(ctx, videos); err != nil {
		return err
	}

	r.cleanup()
	return nil
}

func (r *run) step(s Step) {
	r.logger.Debug("Step", "run_id", r.id, "step", s.String())
	r.obs.OnStep(s)
}

// checkTools fails with ToolUnavailable listing every missing binary.
func (r *run) checkTools() error {
	var missing []string
	for _, name := range []string{r.tools.FFmpeg, r.tools.FFprobe, r.tools.Packager} {
		if _, err := r.lookPath(name); err != nil {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return types.NewError(types.ErrCodeToolUnavailable, "missing tools: "+strings.Join(missing, ", "), nil)
	}
	return nil
}

func absolutePaths(req Request) (Request, error) {
	for _, path := range []*string{&req.Input, &req.Output} {
		if *path == "" {
			continue
		}
		abs, err := filepath.Abs(*path)
		if err != nil {
			return req, types.NewError(types.ErrCodeInvalidParameters, "cannot resolve path "+*path, err)
		}
		*path = abs
	}
	return req, nil
}

func (r *run) checkInput() error {
	info, err := os.Stat(r.req.Input)
	if err != nil {
		return types.NewError(types.ErrCodeNotFound, "input file does not exist: "+r.req.Input, err)
	}
	if !info.Mode().IsRegular() {
		return types.NewError(types.ErrCodeNotFound, "input is not a regular file: "+r.req.Input, nil)
	}
	if r.req.Output == "" {
		return types.NewError(types.ErrCodeInvalidParameters, "no output directory given", nil)
	}
	if err := os.MkdirAll(r.req.Output, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return nil
}

func (r *run) begin() {
	r.began = true
	if err := r.manifest.Begin(r.id, r.req.Input, r.req.Output, string(r.req.Mode)); err != nil {
		r.logger.Warn("Failed to write run manifest", "error", err)
	}
	r.publish(events.RunStartedEvent{
		RunID:     r.id,
		Input:     r.req.Input,
		Output:    r.req.Output,
		Mode:      string(r.req.Mode),
		Timestamp: timestamp(),
	})
	r.logger.Info("Run started", "run_id", r.id, "input", r.req.Input, "output", r.req.Output, "mode", r.req.Mode)
}

func (r *run) describe(src *types.MediaDescriptor) {
	logging.Section(r.logger, "Source")
	r.logger.Info("Video",
		"resolution", fmt.Sprintf("%dx%d", src.Video.Width, src.Video.Height),
		"codec", src.Video.Codec,
		"dynamic_range", src.Video.DynamicRange,
		"fps", src.Video.FrameRate,
		"duration", time.Duration(src.Duration*float64(time.Second)).Round(time.Second).String())
	for _, a := range src.Audio {
		r.logger.Info("Audio", "index", a.Index, "language", a.Language, "codec", a.Codec, "layout", a.Layout)
	}
	for _, s := range src.Subtitles {
		r.logger.Info("Subtitle", "index", s.Index, "language", s.Language, "codec", s.Codec, "kind", s.Kind)
	}

	r.record(func(m *store.Manifest) {
		m.Source = &store.SourceRecord{
			Duration:     src.Duration,
			Width:        src.Video.Width,
			Height:       src.Video.Height,
			VideoCodec:   src.Video.Codec,
			DynamicRange: string(src.Video.DynamicRange),
			Audio:        len(src.Audio),
			Subtitles:    len(src.Subtitles),
		}
	})
}

// discover builds the ladder and detects backends concurrently. Detection
// problems fall back to software and never fail the run.
func (r *run) discover(ctx context.Context, src *types.MediaDescriptor) error {
	detector := encoders.NewDetector(r.runner, r.tools.FFmpeg, logging.GetLogger("encoders"),
		encoders.WithVerify(r.verifyEncoders))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r.result.Ladder = ladder.Build(src.Video)
		return nil
	})
	g.Go(func() error {
		backends, err := detector.Detect(gctx)
		if err != nil {
			r.logger.Warn("Hardware detection incomplete", "error", err)
		}
		r.result.Backends = backends
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	r.logger.Info("Ladder", "renditions", strings.Join(ladder.Qualities(r.result.Ladder), ","))
	return nil
}

func (r *run) tempDir() string {
	return filepath.Join(r.req.Output, transcode.TempDirName)
}

// extract pulls subtitles then audio into tmp/. Only cancellation is fatal.
func (r *run) extract(ctx context.Context, src *types.MediaDescriptor) error {
	x := extract.New(r.runner, r.tools.FFmpeg, logging.GetLogger("extract"), extract.WithSkipExisting(r.req.SkipExisting))

	subs, err := x.Subtitles(ctx, src, r.tempDir())
	r.result.Subtitles = subs
	for _, s := range subs {
		r.publishTrack("subtitle", s.Track.Language+"_"+string(s.Track.Kind), s.Path, s.Skipped)
	}
	if err := r.extractionErrors(ctx, "subtitle", err); err != nil {
		return err
	}

	audio, err := x.Audio(ctx, src, r.tempDir())
	r.result.Audio = audio
	for _, a := range audio {
		r.publishTrack("audio", a.Track.Language+"_"+fmt.Sprint(a.Track.Index), a.Path, a.Skipped)
	}
	if err := r.extractionErrors(ctx, "audio", err); err != nil {
		return err
	}

	r.record(func(m *store.Manifest) {
		m.Subtitles = m.Subtitles[:0]
		for _, s := range subs {
			m.Subtitles = append(m.Subtitles, store.TrackRecord{
				Index: s.Track.Index, Language: s.Track.Language, Kind: string(s.Track.Kind), Path: s.Path, Skipped: s.Skipped,
			})
		}
		m.Audio = m.Audio[:0]
		for _, a := range audio {
			m.Audio = append(m.Audio, store.TrackRecord{
				Index: a.Track.Index, Language: a.Track.Language, Kind: string(a.Track.Layout), Path: a.Path, Skipped: a.Skipped,
			})
		}
	})
	return nil
}

// extractionErrors logs per-track failures and returns only a cancellation.
func (r *run) extractionErrors(ctx context.Context, kind string, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return err
	}
	for _, e := range unjoin(err) {
		r.logger.Warn("Track omitted", "kind", kind, "error", e)
		r.publish(events.TrackExtractedEvent{RunID: r.id, Kind: kind, Error: e.Error()})
	}
	return nil
}

func (r *run) publishTrack(kind, track, path string, skipped bool) {
	r.publish(events.TrackExtractedEvent{RunID: r.id, Kind: kind, Track: track, Path: path, Skipped: skipped})
}

// transcode encodes each rendition in each codec, VP9 first. A failed job
// never stops the loop; only cancellation does.
func (r *run) transcode(ctx context.Context, src *types.MediaDescriptor, sel Selection, backends encoders.Selection, settings plan.Settings) ([]packager.Video, error) {
	executor := transcode.NewExecutor(r.runner, r.tools.FFmpeg, logging.GetLogger("transcode"))
	var videos []packager.Video

	total := len(sel.Renditions) * len(sel.Codecs)
	n := 0
	for _, rendition := range sel.Renditions {
		for _, codec := range sel.Codecs {
			n++
			job := &transcode.Job{
				Rendition:    rendition,
				Codec:        codec,
				Backend:      backends.For(codec),
				Settings:     settings,
				Source:       src,
				WorkDir:      r.req.Output,
				SkipExisting: r.req.SkipExisting,
			}
			logging.Section(r.logger, fmt.Sprintf("[%d/%d] %s on %s", n, total, job.ID(), job.Backend.Label))

			res, err := executor.Run(ctx, job, r.obs)
			if err != nil {
				if ctx.Err() != nil {
					return videos, err
				}
				r.jobFailed(job, err)
				continue
			}
			r.jobCompleted(job, res)
			videos = append(videos, packager.Video{Quality: rendition.Quality, Codec: codec, Path: res.Output})
		}
	}

	r.logger.Info("Transcoding finished", "completed", r.tally.completed.Load(), "failed", r.tally.failed.Load())
	return videos, nil
}

func (r *run) jobCompleted(job *transcode.Job, res *transcode.Result) {
	r.tally.completed.Add(1)
	r.result.Completed = append(r.result.Completed, res)
	r.obs.OnJobComplete(job, res)

	status := store.StatusCompleted
	if res.Skipped {
		status = store.StatusSkipped
	}
	r.recordJob(job, store.JobRecord{
		Encoder:         res.Plan.Encoder,
		Status:          status,
		Output:          res.Output,
		DurationSeconds: res.Duration.Seconds(),
	})
}

func (r *run) jobFailed(job *transcode.Job, err error) {
	r.tally.failed.Add(1)
	r.result.Failed = append(r.result.Failed, JobFailure{JobID: job.ID(), Err: err})
	r.logger.Error("Job failed, continuing", "job", job.ID(), "error", err)
	r.obs.OnJobError(job, err)

	r.recordJob(job, store.JobRecord{
		Status:   store.StatusFailed,
		ExitCode: exitCode(err),
		Error:    err.Error(),
	})
}

func (r *run) recordJob(job *transcode.Job, rec store.JobRecord) {
	rec.Quality = job.Rendition.Quality
	rec.Codec = string(job.Codec)
	rec.Backend = string(job.Backend.Method)
	if err := r.manifest.RecordJob(job.ID(), rec); err != nil {
		r.logger.Warn("Failed to update run manifest", "error", err)
	}
}

func (r *run) pack(ctx context.Context, videos []packager.Video) error {
	descriptors := packager.Build(videos, r.result.Audio, r.result.Subtitles)
	pk := packager.New(r.runner, r.tools.Packager, logging.GetLogger("packager"),
		packager.WithSegmentDuration(r.segmentDuration))

	res, err := pk.Package(ctx, descriptors, r.req.Output)
	rec := &store.PackageRecord{Streams: len(descriptors)}
	ev := events.PackagedEvent{RunID: r.id, Streams: len(descriptors)}
	if err != nil {
		rec.Error = err.Error()
		ev.Error = err.Error()
	} else {
		r.result.Package = res
		rec.MasterPlaylist, rec.Manifest = res.MasterPlaylist, res.Manifest
		ev.MasterPlaylist, ev.Manifest = res.MasterPlaylist, res.Manifest
	}
	r.record(func(m *store.Manifest) { m.Package = rec })
	r.publish(ev)
	return err
}

// cleanup removes tmp/ unless outputs are meant to be reused or kept.
func (r *run) cleanup() {
	if r.req.SkipExisting || r.req.KeepTemp {
		r.logger.Info("Keeping intermediates", "dir", r.tempDir())
		return
	}
	if err := os.RemoveAll(r.tempDir()); err != nil {
		r.logger.Warn("Failed to remove intermediates", "dir", r.tempDir(), "error", err)
	}
}

func (r *run) finish(err error) {
	completed := int(r.tally.completed.Load())
	failed := int(r.tally.failed.Load())

	if err != nil {
		r.step(StepError)
		r.logger.Error("Run failed", "run_id", r.id, "error", err)
	} else {
		r.step(StepComplete)
		r.logger.Info("Run complete",
			"run_id", r.id,
			"completed", completed,
			"failed", failed,
			"master_playlist", r.result.Package.MasterPlaylist,
			"duration", r.result.Duration.Round(time.Second))
	}

	// A run rejected before its input was accepted leaves no trace.
	if !r.began {
		return
	}
	if saveErr := r.manifest.Finish(err); saveErr != nil {
		r.logger.Warn("Failed to finalize run manifest", "error", saveErr)
	}

	ev := events.RunFinishedEvent{
		RunID:           r.id,
		Success:         err == nil,
		Completed:       completed,
		Failed:          failed,
		DurationSeconds: r.result.Duration.Seconds(),
		Timestamp:       timestamp(),
	}
	if err != nil {
		ev.Error = err.Error()
	}
	r.publish(ev)
}

func (r *run) record(fn func(*store.Manifest)) {
	if err := r.manifest.Update(fn); err != nil {
		r.logger.Warn("Failed to update run manifest", "error", err)
	}
}

func (r *run) publish(ev events.Event) {
	if r.bus != nil {
		r.bus.Publish(ev)
	}
}

// unjoin splits an errors.Join result back into its parts.
func unjoin(err error) []error {
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		return joined.Unwrap()
	}
	return []error{err}
}
