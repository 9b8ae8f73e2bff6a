package packager

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/smazurov/streamforge/internal/logging"
	"github.com/smazurov/streamforge/internal/process"
	"github.com/smazurov/streamforge/internal/types"
)

// Output names at the package root.
const (
	MasterPlaylist = "master.m3u8"
	Manifest       = "manifest.mpd"
)

// DefaultSegmentDuration is the segment and fragment length in seconds.
const DefaultSegmentDuration = 5

// Packager invokes the external packager once per run.
type Packager struct {
	runner          process.Runner
	binary          string
	logger          logging.Logger
	segmentDuration int
}

// Option configures a Packager.
type Option func(*Packager)

// WithSegmentDuration overrides the segment length in seconds.
func WithSegmentDuration(seconds int) Option {
	return func(p *Packager) {
		if seconds > 0 {
			p.segmentDuration = seconds
		}
	}
}

// New creates a Packager running binary (usually "packager").
func New(runner process.Runner, binary string, logger logging.Logger, opts ...Option) *Packager {
	if binary == "" {
		binary = "packager"
	}
	p := &Packager{runner: runner, binary: binary, logger: logger, segmentDuration: DefaultSegmentDuration}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Result locates the produced manifests.
type Result struct {
	MasterPlaylist string
	Manifest       string
	Streams        int
}

// Args builds the packager command line for descriptors.
func (p *Packager) Args(descriptors []Descriptor) []string {
	args := make([]string, 0, len(descriptors)+9)
	for _, d := range descriptors {
		args = append(args, d.String())
	}
	seg := strconv.Itoa(p.segmentDuration)
	return append(args,
		"--segment_duration", seg,
		"--fragment_duration", seg,
		"--generate_static_live_mpd",
		"--hls_master_playlist_output", MasterPlaylist,
		"--mpd_output", Manifest,
	)
}

// Package writes segments, playlists and manifests under outDir. Any
// failure is PackagingFailed carrying the packager's combined output.
func (p *Packager) Package(ctx context.Context, descriptors []Descriptor, outDir string) (*Result, error) {
	if !hasVideo(descriptors) {
		return nil, types.NewError(types.ErrCodePackagingFailed, "no video streams to package", nil)
	}

	// The packager runs inside outDir; inputs must not resolve against it.
	outDir, err := filepath.Abs(outDir)
	if err != nil {
		return nil, types.NewError(types.ErrCodePackagingFailed, "cannot resolve output dir", err)
	}
	descriptors = slices.Clone(descriptors)
	for i := range descriptors {
		if descriptors[i].Input, err = filepath.Abs(descriptors[i].Input); err != nil {
			return nil, types.NewError(types.ErrCodePackagingFailed, "cannot resolve stream input", err)
		}
	}

	for _, d := range descriptors {
		if err := os.MkdirAll(filepath.Join(outDir, filepath.Dir(d.InitSegment)), 0o755); err != nil {
			return nil, types.NewError(types.ErrCodePackagingFailed, "failed to create stream dir", err)
		}
	}

	p.logger.Info("Packaging", "streams", len(descriptors), "output", outDir, "segment_duration", p.segmentDuration)
	res, err := p.runner.Run(ctx, process.Command{Name: p.binary, Args: p.Args(descriptors), Dir: outDir})
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("packaging cancelled: %w", err)
		}
		return nil, types.NewError(types.ErrCodePackagingFailed, "packager could not run", err)
	}
	if res.ExitCode != 0 {
		p.logger.Error("Packager failed", "exit_code", res.ExitCode, "output", res.Output())
		return nil, types.NewToolError(types.ErrCodePackagingFailed, "packager failed", res.ExitCode, res.Output())
	}

	return &Result{
		MasterPlaylist: filepath.Join(outDir, MasterPlaylist),
		Manifest:       filepath.Join(outDir, Manifest),
		Streams:        len(descriptors),
	}, nil
}

func hasVideo(descriptors []Descriptor) bool {
	for _, d := range descriptors {
		if d.Kind == KindVideo {
			return true
		}
	}
	return false
}
