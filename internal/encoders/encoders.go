package encoders

import (
	"bufio"
	"fmt"
	"regexp"
	"strings"
)

// EncoderType represents the type of encoder (video, audio, subtitle)
type EncoderType string

const (
	VideoEncoder    EncoderType = "V"
	AudioEncoder    EncoderType = "A"
	SubtitleEncoder EncoderType = "S"
	Unknown         EncoderType = "?"
)

// Encoder represents one line of `ffmpeg -encoders`.
type Encoder struct {
	Type        EncoderType `json:"type"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
}

var encoderRegex = regexp.MustCompile(`^\s*([VASF\.]{6})\s+(\S+)\s+(.+)$`)

// ParseEncoders processes the output of `ffmpeg -encoders`.
func ParseEncoders(output string) ([]Encoder, error) {
	var result []Encoder

	scanner := bufio.NewScanner(strings.NewReader(output))
	encodersStarted := false
	for scanner.Scan() {
		line := scanner.Text()

		// The legend ends with a dashed separator before the list itself.
		if !encodersStarted {
			if strings.HasPrefix(strings.TrimSpace(line), "------") {
				encodersStarted = true
			}
			continue
		}

		matches := encoderRegex.FindStringSubmatch(line)
		if len(matches) != 4 {
			continue
		}

		flags := matches[1]
		encoderType := Unknown
		switch flags[0] {
		case 'V':
			encoderType = VideoEncoder
		case 'A':
			encoderType = AudioEncoder
		case 'S':
			encoderType = SubtitleEncoder
		}

		result = append(result, Encoder{
			Type:        encoderType,
			Name:        matches[2],
			Description: strings.TrimSpace(matches[3]),
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading encoder list: %w", err)
	}
	return result, nil
}

// ParseHWAccels processes the output of `ffmpeg -hwaccels`, which is a header
// line followed by one method name per line.
func ParseHWAccels(output string) []string {
	var methods []string
	started := false
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if !started {
			if strings.HasPrefix(line, "Hardware acceleration methods") {
				started = true
			}
			continue
		}
		if line != "" {
			methods = append(methods, line)
		}
	}
	return methods
}

// nameSet indexes encoder names for membership checks.
func nameSet(list []Encoder) map[string]bool {
	set := make(map[string]bool, len(list))
	for _, e := range list {
		set[e.Name] = true
	}
	return set
}
