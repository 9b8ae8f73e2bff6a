package ffmpeg

// Params describes one ffmpeg encode invocation.
type Params struct {
	Input  string
	Output string

	// GlobalArgs precede the input (hardware device initialisation).
	GlobalArgs []string
	// InputArgs precede -i (hardware decode selection).
	InputArgs []string

	// VideoFilters is the -vf chain; empty means no filtering.
	VideoFilters string
	// CodecArgs select and tune the encoder.
	CodecArgs []string

	// Format forces the output muxer, "null" for analysis passes.
	Format string
}

// SubtitleParams describes extraction of one subtitle stream to WebVTT.
type SubtitleParams struct {
	Input  string
	Output string
	// Index is relative among subtitle streams.
	Index int
}

// AudioParams describes extraction of one audio stream.
type AudioParams struct {
	Input  string
	Output string
	// Index is relative among audio streams.
	Index    int
	Codec    string
	Bitrate  string
	Channels int
}
