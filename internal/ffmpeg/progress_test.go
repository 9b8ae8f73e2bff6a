package ffmpeg

import (
	"testing"
	"time"
)

func TestTotalFrames(t *testing.T) {
	tests := []struct {
		duration, fps float64
		want          int64
	}{
		{10, 24, 240},
		{10.01, 23.976, 240},
		{0, 24, 0},
		{10, 0, 0},
	}
	for _, tt := range tests {
		if got := TotalFrames(tt.duration, tt.fps); got != tt.want {
			t.Errorf("TotalFrames(%v, %v) = %d, want %d", tt.duration, tt.fps, got, tt.want)
		}
	}
}

func TestProgressParserFeed(t *testing.T) {
	p := NewProgressParser(10, 24) // 240 frames

	if _, ok := p.Feed("[info] Stream mapping:"); ok {
		t.Error("non-status line should not produce progress")
	}

	prog, ok := p.Feed("[info] frame=  120 fps= 60.0 q=28.0 size=    1024kB time=00:00:05.00 bitrate= 838.1kbits/s speed=2.5x")
	if !ok {
		t.Fatal("status line should produce progress")
	}
	if prog.Frame != 120 || prog.TotalFrames != 240 {
		t.Errorf("frame = %d/%d, want 120/240", prog.Frame, prog.TotalFrames)
	}
	if prog.FPS != 60 || prog.Speed != 2.5 {
		t.Errorf("fps = %v speed = %v, want 60 and 2.5", prog.FPS, prog.Speed)
	}
	if prog.Percent != 50 {
		t.Errorf("percent = %v, want 50", prog.Percent)
	}
	if prog.ETA != 2*time.Second {
		t.Errorf("ETA = %v, want 2s", prog.ETA)
	}
}

func TestProgressParserMonotonicAndClamped(t *testing.T) {
	p := NewProgressParser(1, 100) // 100 frames

	prog, _ := p.Feed("frame=   80 fps=40 speed=1.0x")
	if prog.Percent != 80 {
		t.Fatalf("percent = %v, want 80", prog.Percent)
	}

	prog, _ = p.Feed("frame=   60 fps=40 speed=1.0x")
	if prog.Percent != 80 {
		t.Errorf("percent went backwards to %v", prog.Percent)
	}

	prog, _ = p.Feed("frame=  130 fps=40 speed=1.0x")
	if prog.Percent != 100 {
		t.Errorf("percent = %v, want clamp at 100", prog.Percent)
	}
	if prog.ETA != 0 {
		t.Errorf("ETA = %v past the end, want 0", prog.ETA)
	}
}

func TestProgressParserUnknownRate(t *testing.T) {
	p := NewProgressParser(10, 24)

	prog, ok := p.Feed("frame=    0 fps=0.0 q=0.0 size=       0kB time=N/A bitrate=N/A speed=N/A")
	if !ok {
		t.Fatal("expected progress")
	}
	if prog.ETA != 0 || prog.Speed != 0 {
		t.Errorf("unknown rate should give zero ETA and speed, got %v, %v", prog.ETA, prog.Speed)
	}
}

func TestProgressParserUnknownDuration(t *testing.T) {
	p := NewProgressParser(0, 24)

	prog, ok := p.Feed("frame=  500 fps=50 speed=2x")
	if !ok {
		t.Fatal("expected progress")
	}
	if prog.Frame != 500 || prog.Percent != 0 {
		t.Errorf("frame = %d percent = %v, want 500 and 0", prog.Frame, prog.Percent)
	}
}

func TestProgressParserBoundedWindow(t *testing.T) {
	p := NewProgressParser(100, 25)
	for range 1000 {
		p.Feed("[info] frame=  100 fps=25 q=28.0 size=    1024kB time=00:00:04.00 bitrate= 838.1kbits/s speed=1x")
	}
	if p.window.Len() > progressWindow {
		t.Errorf("window grew to %d bytes", p.window.Len())
	}
}
