// Package ladder holds the rendition catalog and derives the set of output
// qualities that make sense for a given source.
package ladder

import (
	"fmt"
	"slices"
	"strings"

	"github.com/smazurov/streamforge/internal/types"
)

// Rendition is one output quality tier. Bitrates are in kbps.
type Rendition struct {
	Quality     string `json:"quality" toml:"quality"`
	Width       int    `json:"width" toml:"width"`
	Height      int    `json:"height" toml:"height"`
	VP9Bitrate  int    `json:"vp9_bitrate" toml:"vp9_bitrate"`
	HEVCBitrate int    `json:"hevc_bitrate" toml:"hevc_bitrate"`
	MaxRate     int    `json:"max_rate" toml:"max_rate"`
	BufSize     int    `json:"buf_size" toml:"buf_size"`
	// PreserveHDR keeps HDR sources in HDR instead of tone-mapping to SDR.
	PreserveHDR bool `json:"preserve_hdr" toml:"preserve_hdr"`
}

// Bitrate returns the target bitrate for codec in kbps.
func (r Rendition) Bitrate(codec types.Codec) int {
	if codec == types.CodecVP9 {
		return r.VP9Bitrate
	}
	return r.HEVCBitrate
}

func (r Rendition) String() string {
	return fmt.Sprintf("%s (%dx%d)", r.Quality, r.Width, r.Height)
}

// catalog is ordered highest quality first.
var catalog = []Rendition{
	{Quality: "2160p", Width: 3840, Height: 2160, VP9Bitrate: 18000, HEVCBitrate: 12000, MaxRate: 27000, BufSize: 36000, PreserveHDR: true},
	{Quality: "1440p", Width: 2560, Height: 1440, VP9Bitrate: 9000, HEVCBitrate: 6000, MaxRate: 13500, BufSize: 18000, PreserveHDR: true},
	{Quality: "1080p", Width: 1920, Height: 1080, VP9Bitrate: 4500, HEVCBitrate: 3000, MaxRate: 6750, BufSize: 9000, PreserveHDR: true},
	{Quality: "720p", Width: 1280, Height: 720, VP9Bitrate: 2500, HEVCBitrate: 1500, MaxRate: 3750, BufSize: 5000},
	{Quality: "480p", Width: 854, Height: 480, VP9Bitrate: 1000, HEVCBitrate: 800, MaxRate: 1500, BufSize: 2000},
}

// Catalog returns a copy of every known tier.
func Catalog() []Rendition {
	return slices.Clone(catalog)
}

// Build keeps the tiers that fit the source. A tier fits when either its
// height or its width does not exceed the source, so ultra-wide and
// cropped sources keep their natural tier.
func Build(video types.VideoTrack) []Rendition {
	var out []Rendition
	for _, r := range catalog {
		if r.Height <= video.Height || r.Width <= video.Width {
			out = append(out, r)
		}
	}
	return out
}

// Filter narrows ladder to the named qualities, keeping ladder order.
// An empty selection keeps everything. Names outside the ladder are an error.
func Filter(ladder []Rendition, qualities []string) ([]Rendition, error) {
	if len(qualities) == 0 {
		return ladder, nil
	}

	wanted := make(map[string]bool, len(qualities))
	for _, q := range qualities {
		q = strings.ToLower(strings.TrimSpace(q))
		if !slices.ContainsFunc(ladder, func(r Rendition) bool { return r.Quality == q }) {
			return nil, types.NewError(types.ErrCodeInvalidSelection,
				fmt.Sprintf("rendition %q is not available for this source (have %s)", q, strings.Join(Qualities(ladder), ", ")), nil)
		}
		wanted[q] = true
	}

	var out []Rendition
	for _, r := range ladder {
		if wanted[r.Quality] {
			out = append(out, r)
		}
	}
	return out, nil
}

// Qualities returns the quality labels of ladder.
func Qualities(ladder []Rendition) []string {
	out := make([]string, len(ladder))
	for i, r := range ladder {
		out[i] = r.Quality
	}
	return out
}
