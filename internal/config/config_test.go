package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/spf13/cobra"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadConfigFromTOML(t *testing.T) {
	path := writeConfig(t, `
[paths]
input = "/media/film.mkv"
output = "/srv/out"

[encode]
mode = "dev"
renditions = ["1080p", "720p"]

[run]
skip_existing = true

[packaging]
segment_duration = 6
`)

	opts := Defaults()
	opts.Config = path
	if err := LoadConfig(&opts, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if opts.Input != "/media/film.mkv" {
		t.Errorf("Input = %q, want /media/film.mkv", opts.Input)
	}
	if opts.Output != "/srv/out" {
		t.Errorf("Output = %q, want /srv/out", opts.Output)
	}
	if opts.Mode != "dev" {
		t.Errorf("Mode = %q, want dev", opts.Mode)
	}
	if !opts.SkipExisting {
		t.Error("SkipExisting should be true")
	}
	if opts.SegmentDuration != 6 {
		t.Errorf("SegmentDuration = %d, want 6", opts.SegmentDuration)
	}
	if got := opts.RenditionList(); !reflect.DeepEqual(got, []string{"1080p", "720p"}) {
		t.Errorf("RenditionList() = %v, want [1080p 720p]", got)
	}
	// Untouched keys keep their defaults.
	if opts.Backend != "auto" {
		t.Errorf("Backend = %q, want auto", opts.Backend)
	}
}

func TestLoadConfigEnvOverridesTOML(t *testing.T) {
	path := writeConfig(t, `
[encode]
mode = "dev"
backend = "software"
`)
	t.Setenv("STREAMFORGE_MODE", "prod")
	t.Setenv("STREAMFORGE_SKIP_EXISTING", "true")

	opts := Defaults()
	opts.Config = path
	if err := LoadConfig(&opts, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if opts.Mode != "prod" {
		t.Errorf("Mode = %q, want env override prod", opts.Mode)
	}
	if opts.Backend != "software" {
		t.Errorf("Backend = %q, want software from TOML", opts.Backend)
	}
	if !opts.SkipExisting {
		t.Error("SkipExisting should come from env")
	}
}

func TestLoadConfigChangedFlagWins(t *testing.T) {
	path := writeConfig(t, `
[encode]
backend = "software"
`)
	t.Setenv("STREAMFORGE_BACKEND", "vaapi")

	opts := Defaults()
	opts.Config = path

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().StringVar(&opts.Backend, "backend", "auto", "")
	if err := cmd.Flags().Set("backend", "nvidia"); err != nil {
		t.Fatal(err)
	}

	if err := LoadConfig(&opts, cmd); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if opts.Backend != "nvidia" {
		t.Errorf("Backend = %q, want CLI value nvidia", opts.Backend)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	opts := Defaults()
	opts.Config = filepath.Join(t.TempDir(), "missing.toml")
	if err := LoadConfig(&opts, nil); err != nil {
		t.Fatalf("LoadConfig should not fail for missing file: %v", err)
	}
}

func TestLoadConfigInvalidTOML(t *testing.T) {
	opts := Defaults()
	opts.Config = writeConfig(t, "[encode\nmode = ")
	if err := LoadConfig(&opts, nil); err == nil {
		t.Fatal("LoadConfig should fail for invalid TOML")
	}
}

func TestLoadLoggingModuleLevels(t *testing.T) {
	opts, err := Load(writeConfig(t, `
[logging]
level = "debug"
ffmpeg = "error"
packager = "warn"
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	cfg := opts.Logging()
	tests := []struct {
		field string
		got   string
		want  string
	}{
		{"level", cfg.Level, "debug"},
		{"format", cfg.Format, "text"},
		{"ffmpeg", cfg.Modules["ffmpeg"], "error"},
		{"packager", cfg.Modules["packager"], "warn"},
		{"pipeline", cfg.Modules["pipeline"], "info"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %q, want %q", tt.field, tt.got, tt.want)
		}
	}
}

func TestFieldNameToFlag(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Output", "output"},
		{"LoggingLevel", "logging-level"},
		{"SkipExisting", "skip-existing"},
		{"ToolsFfmpeg", "tools-ffmpeg"},
		{"MetricsHTTPAddr", "metrics-http-addr"},
	}
	for _, tt := range tests {
		if got := fieldNameToFlag(tt.in); got != tt.want {
			t.Errorf("fieldNameToFlag(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestGetNestedValue(t *testing.T) {
	data := map[string]any{
		"encode": map[string]any{
			"mode": "dev",
			"nested": map[string]any{
				"value": "deep",
			},
		},
		"root": "root_value",
	}

	tests := []struct {
		path string
		want any
	}{
		{"root", "root_value"},
		{"encode.mode", "dev"},
		{"encode.nested.value", "deep"},
		{"missing", nil},
		{"encode.missing", nil},
		{"root.child", nil},
	}

	for _, tt := range tests {
		if got := getNestedValue(data, tt.path); got != tt.want {
			t.Errorf("getNestedValue(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestSetFieldValue(t *testing.T) {
	type target struct {
		Str   string
		List  string
		Bool  bool
		Int   int
		Float float64
		Slice []string
	}

	s := &target{}
	v := reflect.ValueOf(s).Elem()

	setFieldValue(v.FieldByName("Str"), "value")
	setFieldValue(v.FieldByName("List"), []any{"vp9", "hevc"})
	setFieldValue(v.FieldByName("Bool"), true)
	setFieldValue(v.FieldByName("Int"), int64(42))
	setFieldValue(v.FieldByName("Float"), int64(3))
	setFieldValue(v.FieldByName("Slice"), []any{"a", "b"})

	want := target{Str: "value", List: "vp9,hevc", Bool: true, Int: 42, Float: 3, Slice: []string{"a", "b"}}
	if !reflect.DeepEqual(*s, want) {
		t.Errorf("got %+v, want %+v", *s, want)
	}
}

func TestSetFieldValueFromString(t *testing.T) {
	type target struct {
		Bool  bool
		Int   int
		Float float64
		Slice []string
	}

	s := &target{}
	v := reflect.ValueOf(s).Elem()

	setFieldValueFromString(v.FieldByName("Bool"), "true")
	setFieldValueFromString(v.FieldByName("Int"), "123")
	setFieldValueFromString(v.FieldByName("Float"), "1.5")
	setFieldValueFromString(v.FieldByName("Slice"), " x , y ,, z ")

	want := target{Bool: true, Int: 123, Float: 1.5, Slice: []string{"x", "y", "z"}}
	if !reflect.DeepEqual(*s, want) {
		t.Errorf("got %+v, want %+v", *s, want)
	}

	// Unparsable values leave the field untouched.
	setFieldValueFromString(v.FieldByName("Int"), "abc")
	if s.Int != 123 {
		t.Errorf("Int = %d, want unchanged 123", s.Int)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Options)
		wantErr bool
	}{
		{"defaults", func(*Options) {}, false},
		{"bad mode", func(o *Options) { o.Mode = "fast" }, true},
		{"no codecs", func(o *Options) { o.Codecs = " , " }, true},
		{"bad codec", func(o *Options) { o.Codecs = "vp9,av1" }, true},
		{"h265 alias", func(o *Options) { o.Codecs = "h265" }, false},
		{"upper-case codec", func(o *Options) { o.Codecs = "VP9,HEVC" }, false},
		{"zero segment", func(o *Options) { o.SegmentDuration = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := Defaults()
			tt.mutate(&opts)
			if err := opts.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
