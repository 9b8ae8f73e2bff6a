package plan

import (
	"fmt"
	"strings"

	"github.com/smazurov/streamforge/internal/encoders"
	"github.com/smazurov/streamforge/internal/types"
)

// toneMapChain converts PQ/HLG to BT.709 SDR in linear light with the Hable curve.
const toneMapChain = "zscale=t=linear:npl=100,format=gbrpf32le,zscale=p=bt709," +
	"tonemap=tonemap=hable:desat=0,zscale=t=bt709:m=bt709:r=tv,format=yuv420p"

// Upload tails move CPU frames to the encoder's device.
const (
	cudaUpload  = "format=nv12,hwupload_cuda"
	qsvUpload   = "format=nv12,hwupload=extra_hw_frames=64,format=qsv"
	vaapiUpload = "format=nv12,hwupload=extra_hw_frames=64"
)

// ToneMapChain returns the software tone-map chain scaled to height.
func ToneMapChain(height int) string {
	return toneMapChain + "," + cpuScale(height)
}

// cpuScale keeps the aspect ratio with an even width.
func cpuScale(height int) string {
	return fmt.Sprintf("scale=-2:%d", height)
}

// deviceScale scales frames already on the device of b.
func deviceScale(b encoders.Backend, height int) string {
	switch b.ScaleFilter {
	case "scale_cuda":
		return fmt.Sprintf("scale_cuda=-2:%d", height)
	case "scale_qsv":
		return fmt.Sprintf("scale_qsv=w=-2:h=%d", height)
	case "scale_vaapi":
		return fmt.Sprintf("scale_vaapi=w=-2:h=%d", height)
	}
	return cpuScale(height)
}

// uploadTail returns the filters that move CPU frames to the encoder's
// device, or "" when the encoder reads system memory.
func uploadTail(codec types.Codec, b encoders.Backend, toneMap bool) string {
	switch {
	case hardwareVP9(codec, b) && b.Method == types.MethodQSV:
		return qsvUpload
	case hardwareVP9(codec, b) && b.Method == types.MethodVAAPI:
		return vaapiUpload
	case codec == types.CodecHEVC && b.Method == types.MethodNvidia && toneMap:
		return cudaUpload
	case codec == types.CodecHEVC && b.Method == types.MethodVAAPI:
		// hevc_vaapi only takes VAAPI surfaces.
		return vaapiUpload
	}
	return ""
}

func filterChain(height int, codec types.Codec, b encoders.Backend, toneMap, hwDecode bool) string {
	framesOnDevice := hwDecode && b.HWAccelOutputFormat != ""

	var parts []string
	switch {
	case toneMap:
		parts = append(parts, ToneMapChain(height))
	case framesOnDevice:
		return deviceScale(b, height)
	default:
		parts = append(parts, cpuScale(height))
	}

	if tail := uploadTail(codec, b, toneMap); tail != "" {
		parts = append(parts, tail)
	}
	return strings.Join(parts, ",")
}
