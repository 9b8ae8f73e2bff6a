package encoders

import (
	"slices"

	"github.com/smazurov/streamforge/internal/types"
)

// DefaultVAAPIDevice is the render node used for VAAPI device init.
const DefaultVAAPIDevice = "/dev/dri/renderD128"

// Backend describes how one acceleration method encodes each output codec.
type Backend struct {
	Method types.Method `json:"method" toml:"method"`
	Label  string       `json:"label" toml:"label"`

	HEVCEncoder string `json:"hevc_encoder" toml:"hevc_encoder"`
	VP9Encoder  string `json:"vp9_encoder" toml:"vp9_encoder"`

	// HWAccel is the -hwaccel value for hardware decode, empty when the
	// backend cannot keep decoded frames on the device.
	HWAccel             string   `json:"hwaccel,omitempty" toml:"hwaccel,omitempty"`
	HWAccelOutputFormat string   `json:"hwaccel_output_format,omitempty" toml:"hwaccel_output_format,omitempty"`
	GlobalArgs          []string `json:"global_args,omitempty" toml:"global_args,omitempty"`
	// ScaleFilter scales frames that live on the device.
	ScaleFilter string `json:"scale_filter" toml:"scale_filter"`

	// HardwareVP9 is set by detection when VP9Encoder is a hardware encoder
	// compiled into ffmpeg.
	HardwareVP9 bool `json:"hardware_vp9" toml:"hardware_vp9"`
	TenBitHEVC  bool `json:"ten_bit_hevc" toml:"ten_bit_hevc"`
	TenBitVP9   bool `json:"ten_bit_vp9" toml:"ten_bit_vp9"`

	// detectAccel is the name `ffmpeg -hwaccels` lists for this backend.
	detectAccel string
	// hardwareVP9Encoder is the VP9 encoder that enables HardwareVP9.
	hardwareVP9Encoder string
}

// IsHardware reports whether the backend uses an accelerator.
func (b Backend) IsHardware() bool {
	return b.Method != types.MethodSoftware
}

// Encoder returns the encoder name for codec.
func (b Backend) Encoder(codec types.Codec) string {
	if codec == types.CodecVP9 {
		return b.VP9Encoder
	}
	return b.HEVCEncoder
}

// catalog lists hardware backends in detection order. Software is appended
// separately because it needs no accelerator.
var catalog = []Backend{
	{
		Method:              types.MethodNvidia,
		Label:               "NVIDIA NVENC",
		HEVCEncoder:         "hevc_nvenc",
		VP9Encoder:          "libvpx-vp9",
		HWAccel:             "cuda",
		HWAccelOutputFormat: "cuda",
		ScaleFilter:         "scale_cuda",
		TenBitHEVC:          true,
		TenBitVP9:           true,
		detectAccel:         "cuda",
	},
	{
		Method:              types.MethodQSV,
		Label:               "Intel Quick Sync",
		HEVCEncoder:         "hevc_qsv",
		VP9Encoder:          "vp9_qsv",
		HWAccel:             "qsv",
		HWAccelOutputFormat: "qsv",
		GlobalArgs:          []string{"-init_hw_device", "qsv=hw", "-filter_hw_device", "hw"},
		ScaleFilter:         "scale_qsv",
		TenBitHEVC:          true,
		detectAccel:         "qsv",
		hardwareVP9Encoder:  "vp9_qsv",
	},
	{
		Method:      types.MethodAMF,
		Label:       "AMD AMF",
		HEVCEncoder: "hevc_amf",
		VP9Encoder:  "libvpx-vp9",
		HWAccel:     "d3d11va",
		ScaleFilter: "scale",
		TenBitHEVC:  true,
		TenBitVP9:   true,
		detectAccel: "d3d11va",
	},
	{
		Method:              types.MethodVAAPI,
		Label:               "VAAPI",
		HEVCEncoder:         "hevc_vaapi",
		VP9Encoder:          "vp9_vaapi",
		HWAccel:             "vaapi",
		HWAccelOutputFormat: "vaapi",
		GlobalArgs:          []string{"-vaapi_device", DefaultVAAPIDevice},
		ScaleFilter:         "scale_vaapi",
		TenBitHEVC:          true,
		detectAccel:         "vaapi",
		hardwareVP9Encoder:  "vp9_vaapi",
	},
	{
		Method:      types.MethodVideoToolbox,
		Label:       "Apple VideoToolbox",
		HEVCEncoder: "hevc_videotoolbox",
		VP9Encoder:  "libvpx-vp9",
		HWAccel:     "videotoolbox",
		ScaleFilter: "scale",
		TenBitHEVC:  true,
		TenBitVP9:   true,
		detectAccel: "videotoolbox",
	},
}

// Software returns the always-available CPU backend.
func Software() Backend {
	return Backend{
		Method:      types.MethodSoftware,
		Label:       "Software (libx265 / libvpx-vp9)",
		HEVCEncoder: "libx265",
		VP9Encoder:  "libvpx-vp9",
		ScaleFilter: "scale",
		TenBitHEVC:  true,
		TenBitVP9:   true,
	}
}

// Lookup returns the catalog entry for method, without detection applied.
func Lookup(method types.Method) (Backend, bool) {
	if method == types.MethodSoftware {
		return Software(), true
	}
	for _, b := range catalog {
		if b.Method == method {
			b.GlobalArgs = slices.Clone(b.GlobalArgs)
			return b, true
		}
	}
	return Backend{}, false
}

// Find returns the backend for method from a detected list.
func Find(backends []Backend, method types.Method) (Backend, bool) {
	for _, b := range backends {
		if b.Method == method {
			return b, true
		}
	}
	return Backend{}, false
}
