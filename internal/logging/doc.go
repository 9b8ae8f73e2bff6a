// Package logging provides structured logging with per-module log levels.
//
// Output goes to stdout (text or JSON) and, on hosts running journald, to the
// systemd journal as well. Initialize once at startup:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"ffmpeg":   "debug",
//			"packager": "warn",
//		},
//	})
//
// and fetch a module logger where needed:
//
//	logger := logging.GetLogger("transcode").With("quality", "1080p")
//	logger.Info("Pass started", "pass", 1)
//
// Components take the Logger interface rather than *slog.Logger; tests pass
// Nop(). When running under systemd:
//
//	journalctl -t streamforge MODULE=transcode
package logging
