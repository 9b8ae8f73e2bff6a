package ffmpeg

import (
	"strconv"
	"strings"
)

// ParseLogLevel extracts the log level from ffmpeg output.
// With -loglevel level+info ffmpeg prints "[info] message" or
// "[component @ 0x...] [level] message". The level bracket is stripped and
// the component prefix kept. Lines without a level are treated as info.
func ParseLogLevel(line string) (level, msg string) {
	if len(line) < 3 || line[0] != '[' {
		return "info", line
	}

	end := strings.Index(line, "] ")
	if end == -1 {
		return "info", line
	}

	if bracket := line[1:end]; isLogLevel(bracket) {
		return bracket, line[end+2:]
	}

	component, rest := line[:end+2], line[end+2:]
	if len(rest) > 2 && rest[0] == '[' {
		if next := strings.Index(rest, "] "); next != -1 && isLogLevel(rest[1:next]) {
			return rest[1:next], component + rest[next+2:]
		}
	}

	return "info", line
}

// ParseProcessLine is ParseLogLevel for process supervision: the status line
// ffmpeg rewrites during an encode is demoted to trace so it never floods logs.
func ParseProcessLine(line string) (level, msg string) {
	level, msg = ParseLogLevel(line)
	if level == "info" && isStatusLine(msg) {
		return "trace", msg
	}
	return level, msg
}

func isStatusLine(msg string) bool {
	return strings.HasPrefix(msg, "frame=") || strings.HasPrefix(msg, "size=")
}

func isLogLevel(s string) bool {
	switch s {
	case "quiet", "panic", "fatal", "error", "warning", "info", "verbose", "debug", "trace":
		return true
	}
	return false
}

func itoa(i int) string {
	return strconv.Itoa(i)
}
