package ffmpeg

// baseArgs are shared by every ffmpeg invocation. level+info tags each log
// line with its level for ParseLogLevel; -stats keeps the progress line
// even though the banner is hidden.
var baseArgs = []string{"-hide_banner", "-nostdin", "-y", "-loglevel", "level+info", "-stats"}

// BuildArgs builds the argument list for a video encode.
// Audio is never carried in video renditions.
func BuildArgs(p *Params) []string {
	args := append([]string{}, baseArgs...)
	args = append(args, p.GlobalArgs...)
	args = append(args, p.InputArgs...)
	args = append(args, "-i", p.Input, "-map", "0:v:0")

	if p.VideoFilters != "" {
		args = append(args, "-vf", p.VideoFilters)
	}
	args = append(args, p.CodecArgs...)
	args = append(args, "-an", "-sn", "-dn")

	if p.Format != "" {
		args = append(args, "-f", p.Format)
	}
	return append(args, p.Output)
}

// BuildSubtitleArgs builds the argument list converting one subtitle stream to WebVTT.
func BuildSubtitleArgs(p *SubtitleParams) []string {
	args := append([]string{}, baseArgs...)
	return append(args,
		"-i", p.Input,
		"-map", "0:s:"+itoa(p.Index),
		"-c:s", "webvtt",
		p.Output,
	)
}

// BuildAudioArgs builds the argument list re-encoding one audio stream into
// its own fragmented-friendly MP4.
func BuildAudioArgs(p *AudioParams) []string {
	args := append([]string{}, baseArgs...)
	args = append(args,
		"-i", p.Input,
		"-map", "0:a:"+itoa(p.Index),
		"-vn", "-sn", "-dn",
		"-c:a", p.Codec,
		"-b:a", p.Bitrate,
	)
	if p.Channels > 0 {
		args = append(args, "-ac", itoa(p.Channels))
	}
	return append(args, p.Output)
}

// ListArgs returns the arguments for a capability listing such as
// "-hwaccels" or "-encoders".
func ListArgs(flag string) []string {
	return []string{"-hide_banner", flag}
}
