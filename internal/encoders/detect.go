package encoders

import (
	"context"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/smazurov/streamforge/internal/ffmpeg"
	"github.com/smazurov/streamforge/internal/logging"
	"github.com/smazurov/streamforge/internal/process"
)

// Detector discovers which backends the local ffmpeg can use.
type Detector struct {
	runner process.Runner
	binary string
	logger logging.Logger
	verify bool
}

// DetectorOption configures a Detector.
type DetectorOption func(*Detector)

// WithVerify makes detection test-encode each hardware backend and drop the
// ones whose device cannot actually be opened.
func WithVerify(verify bool) DetectorOption {
	return func(d *Detector) {
		d.verify = verify
	}
}

// NewDetector creates a Detector that queries binary (usually "ffmpeg").
func NewDetector(runner process.Runner, binary string, logger logging.Logger, opts ...DetectorOption) *Detector {
	if binary == "" {
		binary = "ffmpeg"
	}
	d := &Detector{runner: runner, binary: binary, logger: logger}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Detect returns the usable backends in priority order with software last.
// When ffmpeg cannot be queried the result is software only, together with
// the query error so callers can log it.
func (d *Detector) Detect(ctx context.Context) ([]Backend, error) {
	var hwaccelOut, encodersOut []byte

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		out, err := d.runner.Output(gctx, d.binary, ffmpeg.ListArgs("-hwaccels")...)
		if err != nil {
			return fmt.Errorf("failed to list hwaccels: %w", err)
		}
		hwaccelOut = out
		return nil
	})
	g.Go(func() error {
		out, err := d.runner.Output(gctx, d.binary, ffmpeg.ListArgs("-encoders")...)
		if err != nil {
			return fmt.Errorf("failed to list encoders: %w", err)
		}
		encodersOut = out
		return nil
	})
	if err := g.Wait(); err != nil {
		d.logger.Warn("Hardware detection failed, using software only", "error", err)
		return []Backend{Software()}, err
	}

	list, err := ParseEncoders(string(encodersOut))
	if err != nil {
		return []Backend{Software()}, err
	}

	backends := Resolve(ParseHWAccels(string(hwaccelOut)), list)
	if d.verify {
		backends = d.verified(ctx, backends)
	}

	for _, b := range backends {
		d.logger.Info("Detected backend",
			"method", b.Method,
			"hevc", b.HEVCEncoder,
			"vp9", b.VP9Encoder,
			"hardware_vp9", b.HardwareVP9)
	}
	return backends, nil
}

// Resolve applies the detection rule to parsed listings: a hardware backend
// is usable when its accelerator is listed and its HEVC encoder is compiled
// in. Software is always appended last.
func Resolve(hwaccels []string, list []Encoder) []Backend {
	compiled := nameSet(list)

	var backends []Backend
	for _, b := range catalog {
		if !slices.Contains(hwaccels, b.detectAccel) || !compiled[b.HEVCEncoder] {
			continue
		}
		b.GlobalArgs = slices.Clone(b.GlobalArgs)
		if b.hardwareVP9Encoder != "" && compiled[b.hardwareVP9Encoder] {
			b.HardwareVP9 = true
			b.VP9Encoder = b.hardwareVP9Encoder
		} else {
			b.VP9Encoder = "libvpx-vp9"
			b.TenBitVP9 = true
		}
		backends = append(backends, b)
	}
	return append(backends, Software())
}

// verified drops hardware backends whose HEVC test encode fails. A hardware
// VP9 encoder that fails falls back to libvpx-vp9 instead.
func (d *Detector) verified(ctx context.Context, backends []Backend) []Backend {
	var out []Backend
	for _, b := range backends {
		if !b.IsHardware() {
			out = append(out, b)
			continue
		}
		if err := Verify(ctx, d.runner, d.binary, b, b.HEVCEncoder); err != nil {
			d.logger.Warn("Backend failed test encode", "method", b.Method, "encoder", b.HEVCEncoder, "error", err)
			continue
		}
		if b.HardwareVP9 {
			if err := Verify(ctx, d.runner, d.binary, b, b.VP9Encoder); err != nil {
				d.logger.Warn("Hardware VP9 failed test encode", "method", b.Method, "encoder", b.VP9Encoder, "error", err)
				b.HardwareVP9 = false
				b.VP9Encoder = "libvpx-vp9"
				b.TenBitVP9 = true
			}
		}
		out = append(out, b)
	}
	return out
}
