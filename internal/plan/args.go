package plan

import (
	"strconv"

	"github.com/smazurov/streamforge/internal/encoders"
	"github.com/smazurov/streamforge/internal/types"
)

// argKey selects a codec argument builder. hardware separates hardware VP9
// from libvpx-vp9 on the same backend.
type argKey struct {
	method   types.Method
	codec    types.Codec
	hardware bool
}

type argBuilder func(p *EncodePlan, s Settings)

var codecArgBuilders = map[argKey]argBuilder{
	{types.MethodNvidia, types.CodecHEVC, true}:       hevcBuilder(nvencPreset),
	{types.MethodQSV, types.CodecHEVC, true}:          hevcBuilder(qsvPreset),
	{types.MethodAMF, types.CodecHEVC, true}:          hevcBuilder(amfPreset),
	{types.MethodVAAPI, types.CodecHEVC, true}:        hevcBuilder(vaapiPreset),
	{types.MethodVideoToolbox, types.CodecHEVC, true}: hevcBuilder(videotoolboxPreset),
	{types.MethodSoftware, types.CodecHEVC, false}:    hevcBuilder(x265Preset),
	{types.MethodQSV, types.CodecVP9, true}:           hardwareVP9Args,
	{types.MethodVAAPI, types.CodecVP9, true}:         hardwareVP9Args,
}

// fallbackBuilder covers software VP9 on every backend.
func fallbackBuilder(codec types.Codec) argBuilder {
	if codec == types.CodecVP9 {
		return softwareVP9Args
	}
	return hevcBuilder(x265Preset)
}

func kbps(v int) string {
	return strconv.Itoa(v) + "k"
}

// rateArgs derives maxrate and bufsize from the target bitrate.
func rateArgs(bitrate int) []string {
	return []string{
		"-b:v", kbps(bitrate),
		"-maxrate", kbps(bitrate * 3 / 2),
		"-bufsize", kbps(bitrate * 2),
	}
}

func hevcBuilder(preset func(Settings) []string) argBuilder {
	return func(p *EncodePlan, s Settings) {
		args := []string{"-c:v", p.Encoder}
		args = append(args, rateArgs(p.Rendition.HEVCBitrate)...)
		args = append(args, "-g", strconv.Itoa(GOPSize))
		p.CodecArgs = append(args, preset(s)...)
	}
}

func nvencPreset(s Settings) []string {
	args := []string{"-preset", s.NVENCPreset, "-tune", "hq"}
	if s.NVENCMultipass {
		args = append(args, "-multipass", "fullres")
	}
	return args
}

func qsvPreset(s Settings) []string {
	return []string{"-preset", s.QSVPreset}
}

func amfPreset(s Settings) []string {
	return []string{"-quality", s.AMFQuality}
}

func vaapiPreset(s Settings) []string {
	return []string{"-compression_level", strconv.Itoa(s.VAAPICompression)}
}

func videotoolboxPreset(s Settings) []string {
	realtime := "0"
	if s.VTRealtime {
		realtime = "1"
	}
	return []string{"-realtime", realtime}
}

func x265Preset(s Settings) []string {
	return []string{"-preset", s.X265Preset, "-x265-params", "log-level=error"}
}

// hardwareVP9Args has no multi-pass rate control to offer.
func hardwareVP9Args(p *EncodePlan, _ Settings) {
	r := p.Rendition
	p.CodecArgs = []string{
		"-c:v", p.Encoder,
		"-b:v", kbps(r.VP9Bitrate),
		"-maxrate", kbps(r.MaxRate),
		"-bufsize", kbps(r.BufSize),
		"-g", strconv.Itoa(GOPSize),
	}
}

// softwareVP9Args applies the rate ceiling only on the final pass of a
// two-pass encode, since pass 1 only gathers statistics.
func softwareVP9Args(p *EncodePlan, s Settings) {
	r := p.Rendition
	p.CodecArgs = []string{
		"-c:v", p.Encoder,
		"-b:v", kbps(r.VP9Bitrate),
		"-deadline", s.VP9Deadline,
		"-cpu-used", strconv.Itoa(s.VP9CPUUsed),
		"-tile-columns", strconv.Itoa(s.VP9TileColumns),
		"-row-mt", "1",
		"-g", strconv.Itoa(GOPSize),
	}
	p.FinalArgs = []string{"-maxrate", kbps(r.MaxRate), "-bufsize", kbps(r.BufSize)}
	if s.VP9Passes > 1 {
		p.Passes = 2
	}
}

// hdrArgs keeps a 10-bit PQ signal and tags it as BT.2020.
func hdrArgs(codec types.Codec, b encoders.Backend) []string {
	var args []string
	switch {
	case codec == types.CodecVP9:
		args = []string{"-pix_fmt", "yuv420p10le", "-profile:v", "2"}
	case b.Method == types.MethodSoftware:
		args = []string{"-pix_fmt", "yuv420p10le", "-profile:v", "main10"}
	default:
		args = []string{"-profile:v", "main10"}
	}
	return append(args,
		"-color_primaries", "bt2020",
		"-color_trc", "smpte2084",
		"-colorspace", "bt2020nc",
	)
}
