// Package encoders discovers which hardware encoders the local ffmpeg can
// drive and chooses a backend per output codec.
//
// Detection parses `ffmpeg -hwaccels` and `ffmpeg -encoders`. A hardware
// backend counts only when both its accelerator and its HEVC encoder are
// present; software (libx265 / libvpx-vp9) is always available and last.
// Few devices encode VP9 in hardware, so Select can pair the fastest HEVC
// backend with a separate hardware VP9 backend.
package encoders
