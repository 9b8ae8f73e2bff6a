package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/streamforge/internal/config"
	"github.com/smazurov/streamforge/internal/logging"
	"github.com/smazurov/streamforge/internal/systemd"
	"github.com/smazurov/streamforge/internal/watch"
)

// CreateWatchCmd creates the watch command.
func CreateWatchCmd(options OptionsFunc) *cobra.Command {
	var (
		inboxDir   string
		outputRoot string
		debounce   time.Duration
		existing   bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Package every file dropped into an inbox directory",
		Long: `Watches an inbox directory and runs the pipeline for each video file once its size ` +
			`has stopped changing. Each source is packaged into <output-root>/<name>/. Runs are ` +
			`sequential. Changes to the encode and run sections of the config file apply to the next file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if inboxDir == "" || outputRoot == "" {
				return errors.New("--inbox and --output-root are required")
			}
			opts := options.resolve()
			if err := opts.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, opts, inboxDir, outputRoot, debounce, existing)
		},
	}

	cmd.Flags().StringVar(&inboxDir, "inbox", "", "Directory to watch for new sources")
	cmd.Flags().StringVar(&outputRoot, "output-root", "", "Directory receiving one package per source")
	cmd.Flags().DurationVar(&debounce, "debounce", 5*time.Second, "Quiet period before a file counts as complete")
	cmd.Flags().BoolVar(&existing, "existing", false, "Also process files already in the inbox")
	return cmd
}

func runWatch(ctx context.Context, opts config.Options, inboxDir, outputRoot string, debounce time.Duration, existing bool) error {
	logger := logging.GetLogger("watch")

	var current atomic.Pointer[config.Options]
	current.Store(&opts)

	if opts.Config != "" {
		cw := config.NewConfigWatcher(opts.Config, config.Load, logger,
			config.WithErrorHandler[config.Options](func(err error) {
				logger.Warn("Keeping previous settings", "error", err)
			}))
		cw.OnReload(func(next config.Options) {
			merged := applyReload(*current.Load(), next)
			if err := merged.Validate(); err != nil {
				logger.Warn("Ignoring invalid config reload", "error", err)
				return
			}
			current.Store(&merged)
			logger.Info("Settings reloaded", "mode", merged.Mode, "backend", merged.Backend, "codecs", merged.Codecs)
		})
		if err := cw.Start(ctx); err != nil {
			logger.Warn("Config hot reload disabled", "error", err)
		} else {
			defer cw.Stop()
		}
	}

	inbox := watch.New(inboxDir, logger, watch.WithDebounce(debounce), watch.WithExisting(existing))
	if err := inbox.Start(ctx); err != nil {
		return err
	}
	defer inbox.Stop()

	rt := NewRuntime(ctx, opts)
	defer rt.Close()

	notifier := systemd.NewNotifier(logger)
	notifier.Ready()
	notifier.Status("watching %s", inboxDir)
	defer notifier.Stopping()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Watch stopped")
			return nil
		case path, ok := <-inbox.Ready():
			if !ok {
				return nil
			}
			cur := *current.Load()
			out := filepath.Join(outputRoot, packageName(path))
			notifier.Status("packaging %s", filepath.Base(path))
			res, err := rt.Pipeline(cur).Run(ctx, RequestFrom(cur, path, out))
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				logger.Error("Run failed", "input", path, "error", err)
				notifier.Status("watching %s, last run failed", inboxDir)
				continue
			}
			logger.Info("Packaged", "input", path, "output", out,
				"renditions", len(res.Completed), "failed", len(res.Failed),
				"duration", res.Duration.Round(time.Second))
			notifier.Status("watching %s", inboxDir)
		}
	}
}

// applyReload takes the encode and run settings from a reloaded file.
// Paths, tools and logging stay as the process started with.
func applyReload(cur, next config.Options) config.Options {
	cur.Mode = next.Mode
	cur.Backend = next.Backend
	cur.Renditions = next.Renditions
	cur.Codecs = next.Codecs
	cur.SkipExisting = next.SkipExisting
	cur.KeepTemp = next.KeepTemp
	cur.SegmentDuration = next.SegmentDuration
	return cur
}

// packageName is the output directory name for a source file.
func packageName(path string) string {
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	if name == "" {
		return fmt.Sprintf("source-%d", time.Now().Unix())
	}
	return name
}
