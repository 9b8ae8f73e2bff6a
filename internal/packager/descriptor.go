// Package packager builds stream descriptors for Shaka Packager and runs it
// to produce the HLS master playlist and the DASH manifest.
package packager

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/smazurov/streamforge/internal/extract"
	"github.com/smazurov/streamforge/internal/types"
)

// Kind is the stream type of a descriptor.
type Kind string

// Descriptor kinds.
const (
	KindVideo Kind = "video"
	KindAudio Kind = "audio"
	KindText  Kind = "text"
)

// Output directories relative to the package root.
const (
	VideosDir    = "videos"
	AudioDir     = "audio"
	SubtitlesDir = "subtitles"
)

// HLS characteristics announced for SDH subtitles.
const sdhCharacteristics = "public.accessibility.transcribes-spoken-dialog;public.accessibility.describes-music-and-sound"

// Descriptor is one packager stream descriptor. Paths other than Input are
// relative to the package root.
type Descriptor struct {
	Kind            Kind
	Input           string
	Stream          string
	InitSegment     string
	SegmentTemplate string
	PlaylistName    string

	HLSGroupID         string
	HLSName            string
	Language           string
	Format             string
	DASHRoles          string
	Forced             bool
	HLSCharacteristics string
}

// Video is an encoded rendition ready for packaging.
type Video struct {
	Quality string
	Codec   types.Codec
	Path    string
}

// Name is the directory name of the rendition, e.g. "1080p_vp9".
func (v Video) Name() string {
	return v.Quality + "_" + string(v.Codec)
}

// String renders the descriptor in the packager's key=value syntax.
func (d Descriptor) String() string {
	fields := []string{
		"in=" + d.Input,
		"stream=" + d.Stream,
		"init_segment=" + d.InitSegment,
		"segment_template=" + d.SegmentTemplate,
		"playlist_name=" + d.PlaylistName,
	}
	add := func(key, value string) {
		if value != "" {
			fields = append(fields, key+"="+clean(value))
		}
	}
	add("format", d.Format)
	add("hls_group_id", d.HLSGroupID)
	add("hls_name", d.HLSName)
	add("language", d.Language)
	add("dash_roles", d.DASHRoles)
	if d.Forced {
		fields = append(fields, "forced_subtitle=1")
	}
	add("hls_characteristics", d.HLSCharacteristics)
	return strings.Join(fields, ",")
}

// clean removes the descriptor separators from free-text values.
func clean(value string) string {
	return strings.NewReplacer(",", " ", "=", " ").Replace(value)
}

// segments fills the per-stream output paths under dir/name.
func segments(d *Descriptor, dir, name string) {
	base := path.Join(dir, name)
	d.InitSegment = path.Join(base, "init.mp4")
	d.SegmentTemplate = path.Join(base, "$Number$.m4s")
	d.PlaylistName = path.Join(base, "playlist.m3u8")
}

// Build creates descriptors for everything that was actually produced:
// videos first, then audio, then subtitles.
func Build(videos []Video, audio []extract.ExtractedAudio, subs []extract.ExtractedSubtitle) []Descriptor {
	out := make([]Descriptor, 0, len(videos)+len(audio)+len(subs))

	for _, v := range videos {
		d := Descriptor{Kind: KindVideo, Input: v.Path, Stream: "video"}
		segments(&d, VideosDir, v.Name())
		out = append(out, d)
	}

	for _, a := range audio {
		d := Descriptor{
			Kind:       KindAudio,
			Input:      a.Path,
			Stream:     "audio",
			HLSGroupID: "audio",
			HLSName:    audioName(a.Track),
			Language:   a.Track.Language,
		}
		segments(&d, AudioDir, stem(a.Path))
		out = append(out, d)
	}

	for _, s := range subs {
		d := Descriptor{
			Kind:       KindText,
			Input:      s.Path,
			Stream:     "text",
			Format:     "vtt+mp4",
			HLSGroupID: "subtitles",
			HLSName:    subtitleName(s.Track),
			Language:   s.Track.Language,
		}
		switch s.Track.Kind {
		case types.SubtitleForced:
			d.Forced = true
			d.DASHRoles = "forced-subtitle"
		case types.SubtitleSDH:
			d.DASHRoles = "caption"
			d.HLSCharacteristics = sdhCharacteristics
		default:
			d.DASHRoles = "subtitle"
		}
		segments(&d, SubtitlesDir, stem(s.Path))
		out = append(out, d)
	}
	return out
}

func audioName(t types.AudioTrack) string {
	if t.Title != "" {
		return t.Title
	}
	return strings.ToUpper(t.Language)
}

func subtitleName(t types.SubtitleTrack) string {
	if t.Title != "" {
		return t.Title
	}
	name := strings.ToUpper(t.Language)
	switch t.Kind {
	case types.SubtitleForced:
		name += " (Forced)"
	case types.SubtitleSDH:
		name += " (SDH)"
	}
	return name
}

func stem(p string) string {
	base := filepath.Base(p)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
