package config

import (
	"fmt"
	"slices"

	"github.com/smazurov/streamforge/internal/logging"
	"github.com/smazurov/streamforge/internal/types"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Paths
	Input  string `help:"Source video file" short:"i" toml:"paths.input" env:"INPUT"`
	Output string `help:"Output directory for the package" short:"o" default:"output" toml:"paths.output" env:"OUTPUT"`

	// Encoding
	Mode       string `help:"Encoding mode (dev, prod)" short:"m" default:"prod" toml:"encode.mode" env:"MODE"`
	Backend    string `help:"Encoder backend (auto, hybrid, software, nvidia, qsv, amf, vaapi, videotoolbox)" default:"auto" toml:"encode.backend" env:"BACKEND"`
	Renditions string `help:"Comma-separated renditions to produce, empty for the full ladder" toml:"encode.renditions" env:"RENDITIONS"`
	Codecs     string `help:"Comma-separated output codecs" default:"vp9,hevc" toml:"encode.codecs" env:"CODECS"`

	// Run behaviour
	SkipExisting bool `help:"Reuse outputs left by a previous run" toml:"run.skip_existing" env:"SKIP_EXISTING"`
	KeepTemp     bool `help:"Keep intermediate files after packaging" toml:"run.keep_temp" env:"KEEP_TEMP"`

	// External tools
	ToolsFfmpeg   string `help:"ffmpeg binary" default:"ffmpeg" toml:"tools.ffmpeg" env:"TOOLS_FFMPEG"`
	ToolsFfprobe  string `help:"ffprobe binary" default:"ffprobe" toml:"tools.ffprobe" env:"TOOLS_FFPROBE"`
	ToolsPackager string `help:"Shaka packager binary" default:"packager" toml:"tools.packager" env:"TOOLS_PACKAGER"`

	// Packaging
	SegmentDuration int `help:"Segment duration in seconds" default:"5" toml:"packaging.segment_duration" env:"SEGMENT_DURATION"`

	// Metrics
	MetricsAddr     string `help:"Serve Prometheus metrics on this address while running" toml:"metrics.addr" env:"METRICS_ADDR"`
	MetricsTextfile string `help:"Write metrics in textfile-collector format on exit" toml:"metrics.textfile" env:"METRICS_TEXTFILE"`

	// Logging settings
	LoggingLevel     string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat    string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingFfmpeg    string `help:"ffmpeg output logging level" default:"warn" toml:"logging.ffmpeg" env:"LOGGING_FFMPEG"`
	LoggingPipeline  string `help:"Pipeline logging level" default:"info" toml:"logging.pipeline" env:"LOGGING_PIPELINE"`
	LoggingTranscode string `help:"Transcode logging level" default:"info" toml:"logging.transcode" env:"LOGGING_TRANSCODE"`
	LoggingPackager  string `help:"Packager logging level" default:"info" toml:"logging.packager" env:"LOGGING_PACKAGER"`
}

// Defaults returns Options populated with the same defaults the root command
// declares in its struct tags. Subcommands start from these.
func Defaults() Options {
	return Options{
		Config:           "config.toml",
		Output:           "output",
		Mode:             "prod",
		Backend:          "auto",
		Codecs:           "vp9,hevc",
		ToolsFfmpeg:      "ffmpeg",
		ToolsFfprobe:     "ffprobe",
		ToolsPackager:    "packager",
		SegmentDuration:  5,
		LoggingLevel:     "info",
		LoggingFormat:    "text",
		LoggingFfmpeg:    "warn",
		LoggingPipeline:  "info",
		LoggingTranscode: "info",
		LoggingPackager:  "info",
	}
}

// Load reads defaults, then the TOML file at path, then the environment.
// It is the loader used when watching the config file.
func Load(path string) (Options, error) {
	opts := Defaults()
	opts.Config = path
	if err := LoadConfig(&opts, nil); err != nil {
		return Options{}, err
	}
	return opts, nil
}

// Logging returns the logging configuration for these options.
func (o *Options) Logging() logging.Config {
	return logging.Config{
		Level:  o.LoggingLevel,
		Format: o.LoggingFormat,
		Modules: map[string]string{
			"ffmpeg":    o.LoggingFfmpeg,
			"pipeline":  o.LoggingPipeline,
			"transcode": o.LoggingTranscode,
			"packager":  o.LoggingPackager,
		},
	}
}

// RenditionList returns the selected rendition labels, empty for all.
func (o *Options) RenditionList() []string {
	return SplitList(o.Renditions)
}

// CodecList returns the selected codec names.
func (o *Options) CodecList() []string {
	return SplitList(o.Codecs)
}

// Validate checks option values that have a closed set of choices.
func (o *Options) Validate() error {
	if !slices.Contains([]string{"dev", "prod"}, o.Mode) {
		return fmt.Errorf("invalid mode %q: want dev or prod", o.Mode)
	}
	if len(o.CodecList()) == 0 {
		return fmt.Errorf("no codecs selected")
	}
	for _, c := range o.CodecList() {
		if _, ok := types.ParseCodec(c); !ok {
			return fmt.Errorf("invalid codec %q", c)
		}
	}
	if o.SegmentDuration <= 0 {
		return fmt.Errorf("segment duration must be positive, got %d", o.SegmentDuration)
	}
	return nil
}
