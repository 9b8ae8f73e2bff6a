// Package store persists the run manifest, a TOML record of what a run did,
// next to the package it produced.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// FileName is the manifest's name inside the output directory.
const FileName = "streamforge.toml"

// Run and job status values.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusSkipped   = "skipped"
	StatusFailed    = "failed"
)

// Manifest is the persisted record of one run.
type Manifest struct {
	Version    int                  `toml:"version" json:"version"`
	RunID      string               `toml:"run_id" json:"run_id"`
	Input      string               `toml:"input" json:"input"`
	Output     string               `toml:"output" json:"output"`
	Mode       string               `toml:"mode" json:"mode"`
	Status     string               `toml:"status" json:"status"`
	Error      string               `toml:"error,omitempty" json:"error,omitempty"`
	StartedAt  string               `toml:"started_at" json:"started_at"`
	FinishedAt string               `toml:"finished_at,omitempty" json:"finished_at,omitempty"`
	Source     *SourceRecord        `toml:"source,omitempty" json:"source,omitempty"`
	Backends   *BackendRecord       `toml:"backends,omitempty" json:"backends,omitempty"`
	Jobs       map[string]JobRecord `toml:"jobs" json:"jobs"`
	Audio      []TrackRecord        `toml:"audio,omitempty" json:"audio,omitempty"`
	Subtitles  []TrackRecord        `toml:"subtitles,omitempty" json:"subtitles,omitempty"`
	Package    *PackageRecord       `toml:"package,omitempty" json:"package,omitempty"`
}

// SourceRecord summarizes the probed source.
type SourceRecord struct {
	Duration     float64 `toml:"duration" json:"duration"`
	Width        int     `toml:"width" json:"width"`
	Height       int     `toml:"height" json:"height"`
	VideoCodec   string  `toml:"video_codec" json:"video_codec"`
	DynamicRange string  `toml:"dynamic_range" json:"dynamic_range"`
	Audio        int     `toml:"audio_tracks" json:"audio_tracks"`
	Subtitles    int     `toml:"subtitle_tracks" json:"subtitle_tracks"`
}

// BackendRecord is the encoder backend chosen for each codec.
type BackendRecord struct {
	HEVC   string `toml:"hevc" json:"hevc"`
	VP9    string `toml:"vp9" json:"vp9"`
	Hybrid bool   `toml:"hybrid" json:"hybrid"`
}

// JobRecord is the outcome of one rendition in one codec.
type JobRecord struct {
	Quality         string  `toml:"quality" json:"quality"`
	Codec           string  `toml:"codec" json:"codec"`
	Backend         string  `toml:"backend" json:"backend"`
	Encoder         string  `toml:"encoder,omitempty" json:"encoder,omitempty"`
	Status          string  `toml:"status" json:"status"`
	Output          string  `toml:"output,omitempty" json:"output,omitempty"`
	DurationSeconds float64 `toml:"duration_seconds,omitempty" json:"duration_seconds,omitempty"`
	ExitCode        int     `toml:"exit_code,omitempty" json:"exit_code,omitempty"`
	Error           string  `toml:"error,omitempty" json:"error,omitempty"`
}

// TrackRecord is one extracted audio or subtitle track.
type TrackRecord struct {
	Index    int    `toml:"index" json:"index"`
	Language string `toml:"language" json:"language"`
	Kind     string `toml:"kind" json:"kind"`
	Path     string `toml:"path" json:"path"`
	Skipped  bool   `toml:"skipped,omitempty" json:"skipped,omitempty"`
}

// PackageRecord is the packaging outcome.
type PackageRecord struct {
	Streams        int    `toml:"streams" json:"streams"`
	MasterPlaylist string `toml:"master_playlist,omitempty" json:"master_playlist,omitempty"`
	Manifest       string `toml:"manifest,omitempty" json:"manifest,omitempty"`
	Error          string `toml:"error,omitempty" json:"error,omitempty"`
}

// Store writes a Manifest to disk after every change so an interrupted run
// can still be inspected.
type Store struct {
	path     string
	mu       sync.Mutex
	manifest *Manifest
}

// New creates a store for the manifest inside outDir.
func New(outDir string) *Store {
	return &Store{
		path:     filepath.Join(outDir, FileName),
		manifest: &Manifest{Version: 1, Jobs: make(map[string]JobRecord)},
	}
}

// Path returns the manifest file path.
func (s *Store) Path() string {
	return s.path
}

// Begin starts a fresh manifest for a run. Job records from a previous run
// in the same directory are replaced.
func (s *Store) Begin(runID, input, output, mode string) error {
	return s.Update(func(m *Manifest) {
		*m = Manifest{
			Version:   1,
			RunID:     runID,
			Input:     input,
			Output:    output,
			Mode:      mode,
			Status:    StatusRunning,
			StartedAt: now(),
			Jobs:      make(map[string]JobRecord),
		}
	})
}

// Update applies fn to the manifest and saves it.
func (s *Store) Update(fn func(*Manifest)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.manifest)
	return s.save()
}

// RecordJob stores the outcome of the job with id.
func (s *Store) RecordJob(id string, rec JobRecord) error {
	return s.Update(func(m *Manifest) {
		if m.Jobs == nil {
			m.Jobs = make(map[string]JobRecord)
		}
		m.Jobs[id] = rec
	})
}

// Finish marks the run completed or failed.
func (s *Store) Finish(runErr error) error {
	return s.Update(func(m *Manifest) {
		m.FinishedAt = now()
		m.Status = StatusCompleted
		if runErr != nil {
			m.Status = StatusFailed
			m.Error = runErr.Error()
		}
	})
}

// Snapshot returns a copy of the current manifest.
func (s *Store) Snapshot() Manifest {
	s.mu.Lock()
	defer s.mu.Unlock()
	dup := *s.manifest
	dup.Jobs = make(map[string]JobRecord, len(s.manifest.Jobs))
	for id, j := range s.manifest.Jobs {
		dup.Jobs[id] = j
	}
	dup.Audio = append([]TrackRecord(nil), s.manifest.Audio...)
	dup.Subtitles = append([]TrackRecord(nil), s.manifest.Subtitles...)
	return dup
}

func (s *Store) save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	data, err := toml.Marshal(s.manifest)
	if err != nil {
		return fmt.Errorf("failed to marshal run manifest: %w", err)
	}

	tmp := s.path + ".tmp"
	if writeErr := os.WriteFile(tmp, data, 0o644); writeErr != nil {
		return fmt.Errorf("failed to write run manifest: %w", writeErr)
	}
	if renameErr := os.Rename(tmp, s.path); renameErr != nil {
		return fmt.Errorf("failed to replace run manifest: %w", renameErr)
	}
	return nil
}

// Load reads the manifest from outDir.
func Load(outDir string) (*Manifest, error) {
	path := filepath.Join(outDir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read run manifest: %w", err)
	}

	m := &Manifest{}
	if unmarshalErr := toml.Unmarshal(data, m); unmarshalErr != nil {
		return nil, fmt.Errorf("failed to parse run manifest: %w", unmarshalErr)
	}
	if m.Jobs == nil {
		m.Jobs = make(map[string]JobRecord)
	}
	if m.Version == 0 {
		m.Version = 1
	}
	return m, nil
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
