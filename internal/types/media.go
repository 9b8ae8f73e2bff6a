package types

import "strings"

// DynamicRange classifies the colour volume of a video track.
type DynamicRange string

// Dynamic range classes, ordered by detection precedence.
const (
	DynamicRangeSDR         DynamicRange = "SDR"
	DynamicRangeHDR10       DynamicRange = "HDR10"
	DynamicRangeHDR10Plus   DynamicRange = "HDR10+"
	DynamicRangeDolbyVision DynamicRange = "DolbyVision"
)

// IsHDR reports whether the range needs tone-mapping for SDR output.
func (d DynamicRange) IsHDR() bool {
	return d != "" && d != DynamicRangeSDR
}

// AudioLayout classifies an audio track by channel configuration.
type AudioLayout string

// Audio layouts.
const (
	AudioLayoutStereo   AudioLayout = "stereo"
	AudioLayoutSurround AudioLayout = "5.1"
	AudioLayoutAtmos    AudioLayout = "atmos"
)

// SubtitleKind classifies a subtitle track by disposition.
type SubtitleKind string

// Subtitle kinds.
const (
	SubtitleStandard SubtitleKind = "standard"
	SubtitleForced   SubtitleKind = "forced"
	SubtitleSDH      SubtitleKind = "sdh"
)

// Codec is an output video codec.
type Codec string

// Output codecs.
const (
	CodecVP9  Codec = "vp9"
	CodecHEVC Codec = "hevc"
)

// Codecs lists output codecs in the order they are encoded per rendition.
var Codecs = []Codec{CodecVP9, CodecHEVC}

// ParseCodec resolves a codec name case-insensitively, accepting h265 as an
// alias for hevc.
func ParseCodec(s string) (Codec, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "vp9":
		return CodecVP9, true
	case "hevc", "h265":
		return CodecHEVC, true
	}
	return "", false
}

// Method is a hardware acceleration family.
type Method string

// Acceleration methods.
const (
	MethodSoftware     Method = "software"
	MethodNvidia       Method = "nvidia"
	MethodQSV          Method = "qsv"
	MethodAMF          Method = "amf"
	MethodVAAPI        Method = "vaapi"
	MethodVideoToolbox Method = "videotoolbox"
)

// MediaDescriptor is the classified result of probing a source file.
type MediaDescriptor struct {
	Path       string          `toml:"path" json:"path"`
	Duration   float64         `toml:"duration" json:"duration"`
	Size       int64           `toml:"size" json:"size"`
	FormatName string          `toml:"format_name" json:"format_name"`
	Video      VideoTrack      `toml:"video" json:"video"`
	Audio      []AudioTrack    `toml:"audio" json:"audio"`
	Subtitles  []SubtitleTrack `toml:"subtitles" json:"subtitles"`
}

// VideoTrack describes the primary video stream.
type VideoTrack struct {
	Width          int          `toml:"width" json:"width"`
	Height         int          `toml:"height" json:"height"`
	Codec          string       `toml:"codec" json:"codec"`
	PixelFormat    string       `toml:"pixel_format" json:"pixel_format"`
	FrameRate      float64      `toml:"frame_rate" json:"frame_rate"`
	BitRate        int64        `toml:"bit_rate" json:"bit_rate"`
	DynamicRange   DynamicRange `toml:"dynamic_range" json:"dynamic_range"`
	ColorPrimaries string       `toml:"color_primaries,omitempty" json:"color_primaries,omitempty"`
	ColorTransfer  string       `toml:"color_transfer,omitempty" json:"color_transfer,omitempty"`
	ColorSpace     string       `toml:"color_space,omitempty" json:"color_space,omitempty"`
}

// AudioTrack describes one audio stream. Index is relative among audio streams.
type AudioTrack struct {
	Index         int         `toml:"index" json:"index"`
	Codec         string      `toml:"codec" json:"codec"`
	Language      string      `toml:"language" json:"language"`
	Title         string      `toml:"title,omitempty" json:"title,omitempty"`
	Channels      int         `toml:"channels" json:"channels"`
	ChannelLayout string      `toml:"channel_layout,omitempty" json:"channel_layout,omitempty"`
	Layout        AudioLayout `toml:"layout" json:"layout"`
	Default       bool        `toml:"default" json:"default"`
}

// SubtitleTrack describes one subtitle stream. Index is relative among subtitle streams.
type SubtitleTrack struct {
	Index    int          `toml:"index" json:"index"`
	Codec    string       `toml:"codec" json:"codec"`
	Language string       `toml:"language" json:"language"`
	Title    string       `toml:"title,omitempty" json:"title,omitempty"`
	Kind     SubtitleKind `toml:"kind" json:"kind"`
	Default  bool         `toml:"default" json:"default"`
	// Bitmap marks image-based formats that cannot become WebVTT.
	Bitmap bool `toml:"bitmap,omitempty" json:"bitmap,omitempty"`
}
