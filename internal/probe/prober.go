package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/smazurov/streamforge/internal/logging"
	"github.com/smazurov/streamforge/internal/process"
	"github.com/smazurov/streamforge/internal/types"
)

// MinHeight is the smallest source height accepted for packaging.
const MinHeight = 720

// Prober inspects source files with ffprobe.
type Prober struct {
	runner process.Runner
	binary string
	logger logging.Logger
}

// New creates a Prober that runs binary (usually "ffprobe") through runner.
func New(runner process.Runner, binary string, logger logging.Logger) *Prober {
	if binary == "" {
		binary = "ffprobe"
	}
	return &Prober{runner: runner, binary: binary, logger: logger}
}

// Probe runs a single ffprobe JSON call against path and classifies the result.
func (p *Prober) Probe(ctx context.Context, path string) (*types.MediaDescriptor, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, types.NewError(types.ErrCodeNotFound, "input file does not exist: "+path, err)
		}
		return nil, types.NewError(types.ErrCodeNotFound, "input file is not accessible: "+path, err)
	}

	out, err := p.runner.Output(ctx, p.binary,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format", "-show_streams",
		path,
	)
	if err != nil {
		return nil, types.NewError(types.ErrCodeProbeFailed, "ffprobe failed for "+path, err)
	}

	desc, err := Parse(path, out)
	if err != nil {
		return nil, err
	}

	p.logger.Info("Probed source",
		"path", path,
		"resolution", fmt.Sprintf("%dx%d", desc.Video.Width, desc.Video.Height),
		"codec", desc.Video.Codec,
		"dynamic_range", desc.Video.DynamicRange,
		"fps", desc.Video.FrameRate,
		"duration", desc.Duration,
		"audio_tracks", len(desc.Audio),
		"subtitle_tracks", len(desc.Subtitles),
	)
	return desc, nil
}

// Parse converts raw ffprobe JSON into a MediaDescriptor and enforces the
// source requirements. Exported for testing without a real ffprobe binary.
func Parse(path string, data []byte) (*types.MediaDescriptor, error) {
	var raw ffprobeOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, types.NewError(types.ErrCodeProbeFailed, "invalid ffprobe output", err)
	}

	desc := &types.MediaDescriptor{
		Path:       path,
		Duration:   parseFloat(raw.Format.Duration),
		Size:       parseInt64(raw.Format.Size),
		FormatName: raw.Format.FormatName,
	}

	var video *ffprobeStream
	for i := range raw.Streams {
		s := &raw.Streams[i]
		switch s.CodecType {
		case "video":
			if video == nil && s.Disposition["attached_pic"] != 1 {
				video = s
			}
		case "audio":
			desc.Audio = append(desc.Audio, convertAudio(s, len(desc.Audio)))
		case "subtitle":
			desc.Subtitles = append(desc.Subtitles, convertSubtitle(s, len(desc.Subtitles)))
		}
	}

	if video == nil {
		return nil, types.NewError(types.ErrCodeNoVideoStream, "no video stream in "+path, nil)
	}
	desc.Video = convertVideo(video)

	if desc.Video.Height < MinHeight {
		return nil, types.NewError(types.ErrCodeResolutionTooLow,
			fmt.Sprintf("source height %d is below the %dp minimum", desc.Video.Height, MinHeight), nil)
	}

	return desc, nil
}

func convertVideo(s *ffprobeStream) types.VideoTrack {
	rate := s.AvgFrameRate
	if rate == "" || rate == "0/0" {
		rate = s.RFrameRate
	}
	return types.VideoTrack{
		Width:          s.Width,
		Height:         s.Height,
		Codec:          s.CodecName,
		PixelFormat:    s.PixFmt,
		FrameRate:      ParseFrameRate(rate),
		BitRate:        parseInt64(s.BitRate),
		DynamicRange:   ClassifyDynamicRange(s),
		ColorPrimaries: s.ColorPrimaries,
		ColorTransfer:  s.ColorTransfer,
		ColorSpace:     s.ColorSpace,
	}
}

func convertAudio(s *ffprobeStream, index int) types.AudioTrack {
	channels := s.Channels
	if channels <= 0 {
		channels = 2
	}
	return types.AudioTrack{
		Index:         index,
		Codec:         s.CodecName,
		Language:      language(s),
		Title:         s.tag("title"),
		Channels:      channels,
		ChannelLayout: s.ChannelLayout,
		Layout:        ClassifyAudioLayout(channels, s.ChannelLayout, s.Profile),
		Default:       s.Disposition["default"] == 1,
	}
}

func convertSubtitle(s *ffprobeStream, index int) types.SubtitleTrack {
	return types.SubtitleTrack{
		Index:    index,
		Codec:    s.CodecName,
		Language: language(s),
		Title:    s.tag("title"),
		Kind:     ClassifySubtitle(s.Disposition),
		Default:  s.Disposition["default"] == 1,
		Bitmap:   IsBitmapSubtitle(s.CodecName),
	}
}
