// Package cmd holds the streamforge subcommands and the wiring they share.
package cmd

import (
	"context"
	"strings"
	"time"

	"github.com/smazurov/streamforge/internal/config"
	"github.com/smazurov/streamforge/internal/events"
	"github.com/smazurov/streamforge/internal/ffmpeg"
	"github.com/smazurov/streamforge/internal/logging"
	"github.com/smazurov/streamforge/internal/metrics/collectors"
	"github.com/smazurov/streamforge/internal/metrics/exporters"
	"github.com/smazurov/streamforge/internal/pipeline"
	"github.com/smazurov/streamforge/internal/plan"
	"github.com/smazurov/streamforge/internal/process"
)

// OptionsFunc returns the parsed options of the current invocation.
type OptionsFunc func() *config.Options

// resolve returns the parsed options or the defaults.
func (f OptionsFunc) resolve() config.Options {
	if f != nil {
		if opts := f(); opts != nil {
			return *opts
		}
	}
	return config.Defaults()
}

// progressInterval is how often running jobs are logged.
const progressInterval = 10 * time.Second

// NewRunner creates the subprocess runner with ffmpeg output re-logged on
// the "ffmpeg" module logger.
func NewRunner() process.Runner {
	return process.NewExecRunner(logging.GetLogger("process"),
		process.WithProcessLog(logging.GetLogger("ffmpeg"), ffmpeg.ParseProcessLine))
}

// Runtime is the long-lived state shared by every run of one process: the
// runner, the event bus, metrics collection and progress reporting.
type Runtime struct {
	Runner process.Runner
	Bus    *events.Bus

	opts      config.Options
	logger    logging.Logger
	collector *collectors.EventCollector
	reporter  *exporters.ProgressReporter
	cancel    context.CancelFunc
}

// NewRuntime starts metrics collection, progress reporting and, when
// configured, the metrics listener. Close releases them.
func NewRuntime(ctx context.Context, opts config.Options) *Runtime {
	ctx, cancel := context.WithCancel(ctx)
	rt := &Runtime{
		Runner: NewRunner(),
		Bus:    events.New(),
		opts:   opts,
		logger: logging.GetLogger("main"),
		cancel: cancel,
	}

	rt.collector = collectors.NewEventCollector(rt.Bus)
	rt.collector.Start()

	rt.reporter = exporters.NewProgressReporter(logging.GetLogger("transcode"), progressInterval)
	rt.reporter.Start(ctx)

	if opts.MetricsAddr != "" {
		go func() {
			if err := exporters.Serve(ctx, opts.MetricsAddr, rt.logger); err != nil {
				rt.logger.Error("Metrics listener failed", "addr", opts.MetricsAddr, "error", err)
			}
		}()
	}
	return rt
}

// Pipeline builds a pipeline for opts on this runtime.
func (rt *Runtime) Pipeline(opts config.Options) *pipeline.Pipeline {
	tools := pipeline.Tools{
		FFmpeg:   opts.ToolsFfmpeg,
		FFprobe:  opts.ToolsFfprobe,
		Packager: opts.ToolsPackager,
	}
	selector := pipeline.StaticSelector{
		Qualities: opts.RenditionList(),
		Codecs:    opts.CodecList(),
		Backend:   opts.Backend,
	}
	return pipeline.New(rt.Runner, tools, logging.GetLogger("pipeline"),
		pipeline.WithSelector(selector),
		pipeline.WithEventBus(rt.Bus),
		pipeline.WithSegmentDuration(opts.SegmentDuration))
}

// Close stops background work and writes the metrics textfile if configured.
func (rt *Runtime) Close() {
	rt.reporter.Stop()
	rt.cancel()
	rt.collector.Drain(100*time.Millisecond, 2*time.Second)
	rt.collector.Stop()

	if rt.opts.MetricsTextfile != "" {
		if err := exporters.WriteTextfile(rt.opts.MetricsTextfile); err != nil {
			rt.logger.Warn("Failed to write metrics textfile", "path", rt.opts.MetricsTextfile, "error", err)
		}
	}
}

// RequestFrom builds a pipeline request for input and output from opts.
func RequestFrom(opts config.Options, input, output string) pipeline.Request {
	return pipeline.Request{
		Input:        input,
		Output:       output,
		Mode:         plan.Mode(strings.ToLower(opts.Mode)),
		SkipExisting: opts.SkipExisting,
		KeepTemp:     opts.KeepTemp,
	}
}
