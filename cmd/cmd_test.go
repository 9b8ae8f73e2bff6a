package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/smazurov/streamforge/internal/config"
	"github.com/smazurov/streamforge/internal/ladder"
	"github.com/smazurov/streamforge/internal/plan"
	"github.com/smazurov/streamforge/internal/store"
	"github.com/smazurov/streamforge/internal/types"
)

func TestOptionsFuncResolve(t *testing.T) {
	var none OptionsFunc
	if got := none.resolve(); got.Mode != "prod" || got.Backend != "auto" {
		t.Errorf("nil func should resolve to defaults, got %+v", got)
	}

	opts := config.Defaults()
	opts.Mode = "dev"
	f := OptionsFunc(func() *config.Options { return &opts })
	if got := f.resolve(); got.Mode != "dev" {
		t.Errorf("mode = %s, want dev", got.Mode)
	}
}

func TestRequestFrom(t *testing.T) {
	opts := config.Defaults()
	opts.Mode = "DEV"
	opts.KeepTemp = true

	req := RequestFrom(opts, "/in/film.mkv", "/out/film")
	if req.Mode != plan.ModeDev || !req.KeepTemp || req.SkipExisting {
		t.Errorf("request = %+v", req)
	}
	if req.Input != "/in/film.mkv" || req.Output != "/out/film" {
		t.Errorf("paths = %s -> %s", req.Input, req.Output)
	}
}

func TestApplyReload(t *testing.T) {
	cur := config.Defaults()
	cur.Input = "/keep"
	cur.ToolsFfmpeg = "/opt/ffmpeg"

	next := config.Defaults()
	next.Mode = "dev"
	next.Codecs = "hevc"
	next.ToolsFfmpeg = "ffmpeg"

	got := applyReload(cur, next)
	if got.Mode != "dev" || got.Codecs != "hevc" {
		t.Errorf("encode settings not applied: %+v", got)
	}
	if got.ToolsFfmpeg != "/opt/ffmpeg" || got.Input != "/keep" {
		t.Errorf("tools and paths must not change on reload: %+v", got)
	}
}

func TestPackageName(t *testing.T) {
	tests := map[string]string{
		"/inbox/The Film (2024).mkv": "The Film (2024)",
		"/inbox/show.s01e01.mp4":     "show.s01e01",
	}
	for in, want := range tests {
		if got := packageName(in); got != want {
			t.Errorf("packageName(%s) = %s, want %s", in, got, want)
		}
	}
	if got := packageName("/inbox/.mkv"); !strings.HasPrefix(got, "source-") {
		t.Errorf("empty stem should get a generated name, got %s", got)
	}
}

func TestPrintDescriptor(t *testing.T) {
	desc := &types.MediaDescriptor{
		Path:     "/media/film.mkv",
		Duration: 60,
		Video:    types.VideoTrack{Width: 1920, Height: 1080, Codec: "hevc", FrameRate: 24, DynamicRange: types.DynamicRangeHDR10},
		Subtitles: []types.SubtitleTrack{
			{Index: 0, Language: "eng", Codec: "hdmv_pgs_subtitle", Kind: types.SubtitleStandard, Bitmap: true},
		},
	}
	var buf bytes.Buffer
	printDescriptor(&buf, desc, ladder.Build(desc.Video))

	out := buf.String()
	for _, want := range []string{"1920x1080", "1080p", "preserve HDR", "tone-map to SDR", "image-based"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintManifest(t *testing.T) {
	m := &store.Manifest{
		RunID:  "run-1",
		Status: store.StatusCompleted,
		Jobs: map[string]store.JobRecord{
			"720p_vp9":  {Backend: "software", Status: store.StatusCompleted, DurationSeconds: 42},
			"1080p_vp9": {Backend: "software", Status: store.StatusFailed, Error: "exit 1"},
		},
		Package: &store.PackageRecord{Streams: 3, MasterPlaylist: "/out/master.m3u8"},
	}
	var buf bytes.Buffer
	if err := printManifest(&buf, m); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	if strings.Index(out, "1080p_vp9") > strings.Index(out, "720p_vp9") {
		t.Error("jobs should be listed in sorted order")
	}
	for _, want := range []string{"run-1", "exit 1", "3 streams"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
