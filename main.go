package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/danielgtaylor/huma/v2/humacli"

	"github.com/smazurov/streamforge/cmd"
	"github.com/smazurov/streamforge/internal/config"
	"github.com/smazurov/streamforge/internal/logging"
	"github.com/smazurov/streamforge/internal/types"
	"github.com/smazurov/streamforge/internal/version"
)

// Options for the CLI.
type Options = config.Options

// Exit codes.
const (
	exitOK        = 0
	exitFailed    = 1
	exitUsage     = 2
	exitCancelled = 130
)

func main() {
	var (
		cli      humacli.CLI
		loaded   *Options
		exitCode = exitOK
	)

	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		// Load configuration automatically
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		// Initialize logging system
		logging.Initialize(opts.Logging())
		loaded = opts

		logger := logging.GetLogger("main")

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})

		hooks.OnStart(func() {
			defer close(done)

			if opts.Input == "" {
				logger.Error("No input given, use --input or paths.input")
				exitCode = exitUsage
				return
			}
			if err := opts.Validate(); err != nil {
				logger.Error("Invalid configuration", "error", err)
				exitCode = exitUsage
				return
			}

			rt := cmd.NewRuntime(ctx, *opts)
			res, err := rt.Pipeline(*opts).Run(ctx, cmd.RequestFrom(*opts, opts.Input, opts.Output))
			rt.Close()

			switch {
			case err == nil:
				logger.Info("Done",
					"master", res.Package.MasterPlaylist,
					"renditions", len(res.Completed),
					"failed", len(res.Failed),
					"duration", res.Duration)
			case errors.Is(err, context.Canceled):
				logger.Warn("Run cancelled")
				exitCode = exitCancelled
			default:
				logger.Error("Run failed", "error", err)
				exitCode = exitFailed
				var te *types.Error
				if errors.As(err, &te) && te.Output != "" {
					logger.Debug("Tool output", "output", te.Output)
				}
			}
		})

		hooks.OnStop(func() {
			logger.Info("Stopping run")
			cancel()
			<-done
		})
	})

	root := cli.Root()
	root.Use = "streamforge"
	root.Short = "Encode a video into an adaptive bitrate HLS and DASH package"
	root.Version = version.String()

	options := cmd.OptionsFunc(func() *config.Options { return loaded })
	root.AddCommand(cmd.CreateProbeCmd(options))
	root.AddCommand(cmd.CreateDetectCmd(options))
	root.AddCommand(cmd.CreateWatchCmd(options))
	root.AddCommand(cmd.CreateStatusCmd())
	root.AddCommand(cmd.CreateVersionCmd())

	// Run the CLI
	cli.Run()
	os.Exit(exitCode)
}
