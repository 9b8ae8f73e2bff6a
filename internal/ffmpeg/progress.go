package ffmpeg

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// progressWindow bounds how much recent output the parser keeps.
const progressWindow = 4096

var (
	frameRe = regexp.MustCompile(`frame=\s*(\d+)`)
	fpsRe   = regexp.MustCompile(`fps=\s*(\d+(?:\.\d+)?)`)
	speedRe = regexp.MustCompile(`speed=\s*(\d+(?:\.\d+)?)x`)
)

// Progress is a snapshot of an encode's status line.
type Progress struct {
	Frame       int64
	TotalFrames int64
	FPS         float64
	Speed       float64
	// Percent is clamped to 100 and never decreases within one parser.
	Percent float64
	// ETA is zero while the encode rate is unknown.
	ETA time.Duration
}

// ProgressParser turns ffmpeg stderr lines into Progress snapshots.
// It is not safe for concurrent use.
type ProgressParser struct {
	totalFrames int64
	window      strings.Builder
	percent     float64
}

// TotalFrames estimates the frame count of a source.
func TotalFrames(duration, frameRate float64) int64 {
	if duration <= 0 || frameRate <= 0 || math.IsInf(duration*frameRate, 0) {
		return 0
	}
	return int64(math.Ceil(duration * frameRate))
}

// NewProgressParser creates a parser for a source of the given duration in
// seconds and frame rate.
func NewProgressParser(duration, frameRate float64) *ProgressParser {
	return &ProgressParser{totalFrames: TotalFrames(duration, frameRate)}
}

// Feed consumes one output line. It reports a snapshot only for status lines.
func (p *ProgressParser) Feed(line string) (Progress, bool) {
	p.window.WriteString(line)
	p.window.WriteByte('\n')
	if p.window.Len() > progressWindow {
		recent := p.window.String()[p.window.Len()-progressWindow:]
		p.window.Reset()
		p.window.WriteString(recent)
	}

	if !strings.Contains(line, "frame=") {
		return Progress{}, false
	}

	text := p.window.String()
	prog := Progress{TotalFrames: p.totalFrames}

	if m := lastMatch(frameRe, text); m != "" {
		prog.Frame, _ = strconv.ParseInt(m, 10, 64)
	}
	if m := lastMatch(fpsRe, text); m != "" {
		prog.FPS, _ = strconv.ParseFloat(m, 64)
	}
	if m := lastMatch(speedRe, text); m != "" {
		prog.Speed, _ = strconv.ParseFloat(m, 64)
	}

	if p.totalFrames > 0 {
		pct := math.Min(float64(prog.Frame)/float64(p.totalFrames)*100, 100)
		if pct > p.percent {
			p.percent = pct
		}
		if prog.FPS > 0 && prog.Frame < p.totalFrames {
			remaining := float64(p.totalFrames-prog.Frame) / prog.FPS
			prog.ETA = time.Duration(remaining * float64(time.Second))
		}
	}
	prog.Percent = p.percent

	return prog, true
}

func lastMatch(re *regexp.Regexp, text string) string {
	matches := re.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return ""
	}
	return matches[len(matches)-1][1]
}
