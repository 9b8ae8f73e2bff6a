package probe

import (
	"math"
	"strconv"
	"strings"

	"github.com/smazurov/streamforge/internal/types"
)

// DefaultFrameRate is assumed when the stream reports no usable rate.
const DefaultFrameRate = 24.0

// ParseFrameRate parses an ffprobe rational such as "24000/1001".
// A missing denominator means 1; zero, negative and non-finite results
// fall back to DefaultFrameRate.
func ParseFrameRate(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultFrameRate
	}

	num, den, found := strings.Cut(s, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return DefaultFrameRate
	}
	d := 1.0
	if found {
		if d, err = strconv.ParseFloat(den, 64); err != nil {
			return DefaultFrameRate
		}
	}

	rate := n / d
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate <= 0 {
		return DefaultFrameRate
	}
	return rate
}

// ClassifyDynamicRange applies the detection precedence:
// Dolby Vision, then HDR10+, then HDR10 (BT.2020 primaries with PQ transfer),
// then SDR.
func ClassifyDynamicRange(s *ffprobeStream) types.DynamicRange {
	hdr10Plus := false
	for _, sd := range s.SideDataList {
		kind := strings.ToLower(sd.SideDataType)
		switch {
		case strings.Contains(kind, "dovi"), strings.Contains(kind, "dolby vision"):
			return types.DynamicRangeDolbyVision
		case strings.Contains(kind, "smpte2094-40"), strings.Contains(kind, "hdr10+"):
			hdr10Plus = true
		}
	}
	if hdr10Plus {
		return types.DynamicRangeHDR10Plus
	}
	if s.ColorPrimaries == "bt2020" && s.ColorTransfer == "smpte2084" {
		return types.DynamicRangeHDR10
	}
	return types.DynamicRangeSDR
}

// ClassifyAudioLayout maps a channel count and layout name to a layout class.
// profile catches object audio (TrueHD Atmos, E-AC-3 JOC) carried in a 7.1
// or 5.1 bed.
func ClassifyAudioLayout(channels int, layout, profile string) types.AudioLayout {
	layout = strings.ToLower(layout)
	switch {
	case strings.Contains(layout, "atmos"),
		strings.Contains(layout, "7.1"),
		strings.Contains(strings.ToLower(profile), "atmos"),
		channels > 6:
		return types.AudioLayoutAtmos
	case strings.Contains(layout, "5.1"),
		strings.Contains(layout, "6.0"),
		channels == 6:
		return types.AudioLayoutSurround
	default:
		return types.AudioLayoutStereo
	}
}

// ClassifySubtitle maps a stream disposition to a subtitle kind.
// Forced wins over hearing-impaired.
func ClassifySubtitle(disposition map[string]int) types.SubtitleKind {
	switch {
	case disposition["forced"] == 1:
		return types.SubtitleForced
	case disposition["hearing_impaired"] == 1:
		return types.SubtitleSDH
	default:
		return types.SubtitleStandard
	}
}

// bitmapSubtitleCodecs cannot be converted to WebVTT without OCR.
var bitmapSubtitleCodecs = map[string]bool{
	"hdmv_pgs_subtitle": true,
	"dvd_subtitle":      true,
	"dvb_subtitle":      true,
	"xsub":              true,
}

// IsBitmapSubtitle reports whether codec is an image-based subtitle format.
func IsBitmapSubtitle(codec string) bool {
	return bitmapSubtitleCodecs[codec]
}

func language(s *ffprobeStream) string {
	if lang := strings.TrimSpace(s.tag("language")); lang != "" {
		return strings.ToLower(lang)
	}
	return "und"
}

func parseInt64(s string) int64 {
	n, _ := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return n
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f
}
