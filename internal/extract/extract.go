// Package extract pulls audio and subtitle tracks out of the source into
// standalone files for the packager.
//
// Streams are always selected by their index among streams of the same
// type (0:a:N, 0:s:N). Absolute stream indexes shift between containers
// with different track mixes and would pick the wrong track.
package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/smazurov/streamforge/internal/ffmpeg"
	"github.com/smazurov/streamforge/internal/logging"
	"github.com/smazurov/streamforge/internal/process"
	"github.com/smazurov/streamforge/internal/types"
)

// ExtractedSubtitle is a subtitle track converted to WebVTT.
type ExtractedSubtitle struct {
	Track   types.SubtitleTrack
	Path    string
	Skipped bool
}

// ExtractedAudio is an audio track re-encoded into its own MP4.
type ExtractedAudio struct {
	Track   types.AudioTrack
	Path    string
	Codec   string
	Bitrate string
	Skipped bool
}

// AudioEncoding is the target for one audio layout.
type AudioEncoding struct {
	Codec    string
	Bitrate  string
	Channels int
}

// EncodingFor returns the codec, bitrate and channel count for a layout.
// Surround layouts go to E-AC3, Atmos at a higher rate; stereo to AAC.
func EncodingFor(layout types.AudioLayout) AudioEncoding {
	switch layout {
	case types.AudioLayoutAtmos:
		return AudioEncoding{Codec: "eac3", Bitrate: "768k", Channels: 6}
	case types.AudioLayoutSurround:
		return AudioEncoding{Codec: "eac3", Bitrate: "640k", Channels: 6}
	}
	return AudioEncoding{Codec: "aac", Bitrate: "128k", Channels: 2}
}

// Extractor runs one ffmpeg invocation per track.
type Extractor struct {
	runner       process.Runner
	binary       string
	logger       logging.Logger
	skipExisting bool
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithSkipExisting leaves tracks whose output file is already present.
func WithSkipExisting(skip bool) Option {
	return func(x *Extractor) {
		x.skipExisting = skip
	}
}

// New creates an Extractor running binary (usually "ffmpeg").
func New(runner process.Runner, binary string, logger logging.Logger, opts ...Option) *Extractor {
	if binary == "" {
		binary = "ffmpeg"
	}
	x := &Extractor{runner: runner, binary: binary, logger: logger}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// SubtitleName returns the WebVTT file name for a track: language and kind,
// with the track index appended when another track already took the name.
func SubtitleName(track types.SubtitleTrack, taken map[string]bool) string {
	base := fmt.Sprintf("%s_%s", track.Language, track.Kind)
	name := base + ".vtt"
	if taken[name] {
		name = fmt.Sprintf("%s_%d.vtt", base, track.Index)
	}
	taken[name] = true
	return name
}

// AudioName returns the file name for an audio track.
func AudioName(track types.AudioTrack) string {
	return fmt.Sprintf("audio_%s_%d.mp4", track.Language, track.Index)
}

// Subtitles converts every text subtitle track to WebVTT under dir.
// Failed tracks are omitted from the result; their errors are joined into
// the returned error, which is ExtractionFailed unless ctx was cancelled.
// Image-based tracks cannot become WebVTT and are skipped with a warning.
func (x *Extractor) Subtitles(ctx context.Context, src *types.MediaDescriptor, dir string) ([]ExtractedSubtitle, error) {
	var (
		out  []ExtractedSubtitle
		errs []error
	)
	taken := make(map[string]bool)
	input, dir, err := absolute(src.Path, dir)
	if err != nil {
		return nil, err
	}

	for _, track := range src.Subtitles {
		if track.Bitmap {
			x.logger.Warn("Skipping image-based subtitle", "index", track.Index, "codec", track.Codec, "language", track.Language)
			continue
		}

		path := filepath.Join(dir, SubtitleName(track, taken))
		args := ffmpeg.BuildSubtitleArgs(&ffmpeg.SubtitleParams{Input: input, Output: path, Index: track.Index})

		skipped, err := x.run(ctx, "subtitle "+track.Language+"_"+string(track.Kind), path, args)
		if err != nil {
			if ctx.Err() != nil {
				return out, err
			}
			errs = append(errs, err)
			continue
		}
		out = append(out, ExtractedSubtitle{Track: track, Path: path, Skipped: skipped})
	}
	return out, errors.Join(errs...)
}

// Audio re-encodes every audio track under dir. Failures are handled as
// in Subtitles.
func (x *Extractor) Audio(ctx context.Context, src *types.MediaDescriptor, dir string) ([]ExtractedAudio, error) {
	var (
		out  []ExtractedAudio
		errs []error
	)
	input, dir, err := absolute(src.Path, dir)
	if err != nil {
		return nil, err
	}

	for _, track := range src.Audio {
		enc := EncodingFor(track.Layout)
		path := filepath.Join(dir, AudioName(track))
		args := ffmpeg.BuildAudioArgs(&ffmpeg.AudioParams{
			Input:    input,
			Output:   path,
			Index:    track.Index,
			Codec:    enc.Codec,
			Bitrate:  enc.Bitrate,
			Channels: enc.Channels,
		})

		skipped, err := x.run(ctx, "audio "+track.Language+"_"+strconv.Itoa(track.Index), path, args)
		if err != nil {
			if ctx.Err() != nil {
				return out, err
			}
			errs = append(errs, err)
			continue
		}
		out = append(out, ExtractedAudio{
			Track:   track,
			Path:    path,
			Codec:   enc.Codec,
			Bitrate: enc.Bitrate,
			Skipped: skipped,
		})
	}
	return out, errors.Join(errs...)
}

// absolute resolves the source and output dir. ffmpeg runs inside the
// output dir, where relative paths would no longer point at them.
func absolute(input, dir string) (string, string, error) {
	absInput, err := filepath.Abs(input)
	if err != nil {
		return "", "", types.NewError(types.ErrCodeExtractionFailed, "cannot resolve source path", err)
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", "", types.NewError(types.ErrCodeExtractionFailed, "cannot resolve output dir", err)
	}
	return absInput, absDir, nil
}

func (x *Extractor) run(ctx context.Context, label, path string, args []string) (bool, error) {
	if x.skipExisting && exists(path) {
		x.logger.Info("Output exists, skipping extraction", "track", label, "output", path)
		return true, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, types.NewError(types.ErrCodeExtractionFailed, "failed to create output dir for "+label, err)
	}

	x.logger.Info("Extracting track", "track", label, "output", path)
	res, err := x.runner.Run(ctx, process.Command{Name: x.binary, Args: args, Dir: filepath.Dir(path)})
	if err != nil {
		_ = os.Remove(path)
		if ctx.Err() != nil {
			return false, fmt.Errorf("extracting %s cancelled: %w", label, err)
		}
		x.logger.Error("Extraction failed", "track", label, "error", err)
		return false, types.NewError(types.ErrCodeExtractionFailed, label+" could not run", err)
	}
	if res.ExitCode != 0 {
		_ = os.Remove(path)
		x.logger.Error("Extraction failed", "track", label, "exit_code", res.ExitCode, "output", res.Output())
		return false, types.NewToolError(types.ErrCodeExtractionFailed, label+" failed", res.ExitCode, res.Output())
	}
	return false, nil
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}
