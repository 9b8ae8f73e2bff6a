// Package plan turns a rendition, a codec and a backend into the exact
// filter chain and encoder arguments for one ffmpeg job. Everything here is
// pure decision logic; nothing is executed.
package plan

import (
	"os"
	"slices"
	"strconv"

	"github.com/smazurov/streamforge/internal/encoders"
	"github.com/smazurov/streamforge/internal/ffmpeg"
	"github.com/smazurov/streamforge/internal/ladder"
	"github.com/smazurov/streamforge/internal/types"
)

// GOPSize keeps keyframes at a fixed interval so segments align across renditions.
const GOPSize = 120

// EncodePlan is the fully decided recipe for one rendition and codec.
type EncodePlan struct {
	Rendition ladder.Rendition `json:"rendition"`
	Codec     types.Codec      `json:"codec"`
	Backend   encoders.Backend `json:"backend"`
	Encoder   string           `json:"encoder"`

	ToneMap  bool `json:"tone_map"`
	HWDecode bool `json:"hw_decode"`
	// PreserveHDR is set when an HDR source stays HDR in this output.
	PreserveHDR bool `json:"preserve_hdr"`

	FilterChain string   `json:"filter_chain"`
	GlobalArgs  []string `json:"global_args,omitempty"`
	InputArgs   []string `json:"input_args,omitempty"`
	// CodecArgs are shared by every pass.
	CodecArgs []string `json:"codec_args"`
	// FinalArgs are applied only on the last pass.
	FinalArgs []string `json:"final_args,omitempty"`

	Passes int `json:"passes"`
	// PassLogPath is the two-pass statistics prefix, set by the executor.
	PassLogPath string `json:"pass_log_path,omitempty"`
}

// PassLogName is the pass-log file prefix for a quality, relative to the temp dir.
func PassLogName(quality string) string {
	return "passlog_" + quality
}

// IsFinalPass reports whether pass n writes the real output.
func (p EncodePlan) IsFinalPass(n int) bool {
	return n >= p.Passes
}

// PassArgs returns the complete codec argument list for pass n (1-based).
func (p EncodePlan) PassArgs(n int) []string {
	args := slices.Clone(p.CodecArgs)
	if p.Passes > 1 {
		args = append(args, "-pass", strconv.Itoa(n), "-passlogfile", p.PassLogPath)
	}
	if p.IsFinalPass(n) {
		args = append(args, p.FinalArgs...)
	}
	return args
}

// Params builds the ffmpeg parameters for pass n. Passes before the last
// one only gather statistics and go to the null muxer.
func (p EncodePlan) Params(input, output string, n int) *ffmpeg.Params {
	params := &ffmpeg.Params{
		Input:        input,
		Output:       output,
		GlobalArgs:   p.GlobalArgs,
		InputArgs:    p.InputArgs,
		VideoFilters: p.FilterChain,
		CodecArgs:    p.PassArgs(n),
	}
	if !p.IsFinalPass(n) {
		params.Output = os.DevNull
		params.Format = "null"
	}
	return params
}

// Synthesize decides the plan for one rendition and codec. The decisions
// are made in a fixed order: tone-mapping, hardware decode, filter chain,
// then codec arguments, each depending on the ones before it.
func Synthesize(r ladder.Rendition, codec types.Codec, b encoders.Backend, src types.VideoTrack, s Settings) EncodePlan {
	p := EncodePlan{
		Rendition: r,
		Codec:     codec,
		Backend:   b,
		Encoder:   b.Encoder(codec),
		Passes:    1,
	}

	p.ToneMap = needsToneMap(r, codec, b, src)
	p.PreserveHDR = src.DynamicRange.IsHDR() && !p.ToneMap
	p.HWDecode = useHWDecode(codec, b, p.ToneMap)

	if p.HWDecode {
		p.InputArgs = []string{"-hwaccel", b.HWAccel}
		if b.HWAccelOutputFormat != "" {
			p.InputArgs = append(p.InputArgs, "-hwaccel_output_format", b.HWAccelOutputFormat)
		}
	}
	if hardwareEncode(codec, b) || p.HWDecode {
		p.GlobalArgs = slices.Clone(b.GlobalArgs)
	}

	p.FilterChain = filterChain(r.Height, codec, b, p.ToneMap, p.HWDecode)

	build := codecArgBuilders[argKey{method: b.Method, codec: codec, hardware: hardwareEncode(codec, b)}]
	if build == nil {
		build = fallbackBuilder(codec)
	}
	build(&p, s)

	if p.PreserveHDR {
		p.CodecArgs = append(p.CodecArgs, hdrArgs(codec, b)...)
	}
	if codec == types.CodecHEVC {
		p.CodecArgs = append(p.CodecArgs, "-tag:v", "hvc1")
	}
	return p
}

// hardwareEncode reports whether codec is encoded on the device of b.
func hardwareEncode(codec types.Codec, b encoders.Backend) bool {
	if codec == types.CodecVP9 {
		return b.HardwareVP9
	}
	return b.IsHardware()
}

// hardwareVP9 matches the QSV and VAAPI hardware VP9 encoders, which are
// 8-bit only.
func hardwareVP9(codec types.Codec, b encoders.Backend) bool {
	return codec == types.CodecVP9 && b.HardwareVP9 &&
		(b.Method == types.MethodQSV || b.Method == types.MethodVAAPI)
}

func needsToneMap(r ladder.Rendition, codec types.Codec, b encoders.Backend, src types.VideoTrack) bool {
	if !src.DynamicRange.IsHDR() {
		return false
	}
	if !r.PreserveHDR || hardwareVP9(codec, b) {
		return true
	}
	// An encoder without a 10-bit path cannot carry HDR either.
	if codec == types.CodecVP9 {
		return !b.TenBitVP9
	}
	return !b.TenBitHEVC
}

func useHWDecode(codec types.Codec, b encoders.Backend, toneMap bool) bool {
	switch {
	case codec == types.CodecVP9:
		return false
	case b.HWAccel == "":
		return false
	case toneMap:
		// The tone-map filters run on the CPU.
		return false
	}
	return true
}
