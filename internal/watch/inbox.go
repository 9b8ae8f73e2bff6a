// Package watch turns an inbox directory into a queue of settled source
// files for the watch daemon.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/smazurov/streamforge/internal/logging"
)

// DefaultExtensions are the source containers picked up from the inbox.
var DefaultExtensions = []string{".mkv", ".mp4", ".mov", ".m2ts", ".ts", ".webm", ".avi"}

// Inbox emits a file once no write to it has been seen for the debounce
// period. Files still being copied in are therefore never handed out early.
type Inbox struct {
	dir      string
	debounce time.Duration
	exts     map[string]bool
	existing bool
	logger   logging.Logger

	watcher *fsnotify.Watcher
	pending map[string]time.Time
	ready   chan string
	cancel  context.CancelFunc
	done    chan struct{}
}

// Option configures an Inbox.
type Option func(*Inbox)

// WithDebounce sets how long a file must be quiet before it is emitted.
// Default is 5s.
func WithDebounce(d time.Duration) Option {
	return func(in *Inbox) {
		if d > 0 {
			in.debounce = d
		}
	}
}

// WithExtensions replaces the accepted file extensions.
func WithExtensions(exts ...string) Option {
	return func(in *Inbox) {
		in.exts = extSet(exts)
	}
}

// WithExisting queues files already in the inbox when watching starts.
func WithExisting(existing bool) Option {
	return func(in *Inbox) {
		in.existing = existing
	}
}

// New creates an inbox for dir.
func New(dir string, logger logging.Logger, opts ...Option) *Inbox {
	in := &Inbox{
		dir:      filepath.Clean(dir),
		debounce: 5 * time.Second,
		exts:     extSet(DefaultExtensions),
		logger:   logger,
		pending:  make(map[string]time.Time),
		ready:    make(chan string, 64),
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Ready delivers settled files. It is closed after Stop.
func (in *Inbox) Ready() <-chan string {
	return in.ready
}

// Start begins watching the inbox directory.
func (in *Inbox) Start(ctx context.Context) error {
	if err := os.MkdirAll(in.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create inbox: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create inbox watcher: %w", err)
	}
	if err := watcher.Add(in.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", in.dir, err)
	}
	in.watcher = watcher

	if in.existing {
		in.scan()
	}

	ctx, in.cancel = context.WithCancel(ctx)
	in.done = make(chan struct{})

	in.logger.Info("Watching inbox", "dir", in.dir, "debounce", in.debounce)
	go in.watch(ctx)
	return nil
}

// Stop stops watching and waits for the loop to exit.
func (in *Inbox) Stop() error {
	if in.cancel == nil {
		return nil
	}
	in.cancel()
	err := in.watcher.Close()
	<-in.done
	return err
}

func (in *Inbox) scan() {
	entries, err := os.ReadDir(in.dir)
	if err != nil {
		in.logger.Warn("Failed to scan inbox", "dir", in.dir, "error", err)
		return
	}
	for _, e := range entries {
		if e.Type().IsRegular() {
			in.touch(filepath.Join(in.dir, e.Name()))
		}
	}
}

func (in *Inbox) watch(ctx context.Context) {
	defer close(in.done)
	defer close(in.ready)

	ticker := time.NewTicker(tick(in.debounce))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			in.logger.Debug("Inbox watcher stopped")
			return

		case event, ok := <-in.watcher.Events:
			if !ok {
				return
			}
			switch {
			case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
				in.touch(event.Name)
			case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				delete(in.pending, filepath.Clean(event.Name))
			}

		case now := <-ticker.C:
			if !in.flush(ctx, now) {
				return
			}

		case err, ok := <-in.watcher.Errors:
			if !ok {
				return
			}
			in.logger.Warn("Inbox watcher error", "error", err)
		}
	}
}

// touch (re)starts the quiet period of path.
func (in *Inbox) touch(path string) {
	path = filepath.Clean(path)
	if !in.accepts(path) {
		return
	}
	in.pending[path] = time.Now().Add(in.debounce)
}

// flush emits every file whose quiet period has passed. It returns false
// when ctx ended while a consumer was not receiving.
func (in *Inbox) flush(ctx context.Context, now time.Time) bool {
	for path, deadline := range in.pending {
		if now.Before(deadline) {
			continue
		}
		delete(in.pending, path)

		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() || info.Size() == 0 {
			continue
		}
		in.logger.Info("Inbox file settled", "path", path, "size", info.Size())
		select {
		case in.ready <- path:
		case <-ctx.Done():
			return false
		}
	}
	return true
}

func (in *Inbox) accepts(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") {
		return false
	}
	return in.exts[strings.ToLower(filepath.Ext(name))]
}

func tick(debounce time.Duration) time.Duration {
	t := debounce / 4
	if t < 10*time.Millisecond {
		t = 10 * time.Millisecond
	}
	return t
}

func extSet(exts []string) map[string]bool {
	set := make(map[string]bool, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		set[e] = true
	}
	return set
}
