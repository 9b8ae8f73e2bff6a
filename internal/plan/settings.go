package plan

import (
	"fmt"
	"strings"

	"github.com/smazurov/streamforge/internal/types"
)

// Mode trades encode speed for quality.
type Mode string

// Encode modes.
const (
	ModeDev  Mode = "dev"
	ModeProd Mode = "prod"
)

// Settings holds the mode-dependent encoder knobs.
type Settings struct {
	Mode Mode `json:"mode" toml:"mode"`

	// VP9Passes applies to libvpx-vp9 only. Hardware VP9 is always one pass.
	VP9Passes      int    `json:"vp9_passes" toml:"vp9_passes"`
	VP9Deadline    string `json:"vp9_deadline" toml:"vp9_deadline"`
	VP9CPUUsed     int    `json:"vp9_cpu_used" toml:"vp9_cpu_used"`
	VP9TileColumns int    `json:"vp9_tile_columns" toml:"vp9_tile_columns"`

	NVENCPreset      string `json:"nvenc_preset" toml:"nvenc_preset"`
	NVENCMultipass   bool   `json:"nvenc_multipass" toml:"nvenc_multipass"`
	QSVPreset        string `json:"qsv_preset" toml:"qsv_preset"`
	AMFQuality       string `json:"amf_quality" toml:"amf_quality"`
	VAAPICompression int    `json:"vaapi_compression" toml:"vaapi_compression"`
	VTRealtime       bool   `json:"vt_realtime" toml:"vt_realtime"`
	X265Preset       string `json:"x265_preset" toml:"x265_preset"`
}

var (
	devSettings = Settings{
		Mode:             ModeDev,
		VP9Passes:        1,
		VP9Deadline:      "realtime",
		VP9CPUUsed:       8,
		VP9TileColumns:   2,
		NVENCPreset:      "p1",
		QSVPreset:        "veryfast",
		AMFQuality:       "speed",
		VAAPICompression: 7,
		VTRealtime:       true,
		X265Preset:       "ultrafast",
	}
	prodSettings = Settings{
		Mode:             ModeProd,
		VP9Passes:        2,
		VP9Deadline:      "good",
		VP9CPUUsed:       2,
		VP9TileColumns:   2,
		NVENCPreset:      "p6",
		NVENCMultipass:   true,
		QSVPreset:        "slower",
		AMFQuality:       "quality",
		VAAPICompression: 1,
		X265Preset:       "slow",
	}
)

// SettingsFor returns the settings for a mode name.
func SettingsFor(mode string) (Settings, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(mode))) {
	case ModeDev:
		return devSettings, nil
	case ModeProd:
		return prodSettings, nil
	}
	return Settings{}, types.NewError(types.ErrCodeInvalidParameters,
		fmt.Sprintf("unknown encode mode %q (want %s or %s)", mode, ModeDev, ModeProd), nil)
}
