package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/smazurov/streamforge/internal/logging"
)

// ExitCodeKilled is reported when a process had to be force-killed.
const ExitCodeKilled = 137

// maxLineSize bounds a single output line. ffmpeg progress lines are short,
// but banners with long filter graphs can exceed bufio's 64KiB default.
const maxLineSize = 1 << 20

// OutputHandler receives output lines from the subprocess.
// Lines from stdout and stderr arrive on separate goroutines.
type OutputHandler interface {
	HandleLine(source, line string)
}

// OutputHandlerFunc adapts a function to OutputHandler.
type OutputHandlerFunc func(source, line string)

// HandleLine calls f.
func (f OutputHandlerFunc) HandleLine(source, line string) { f(source, line) }

// LogParser parses a log line and returns the log level and message.
type LogParser func(line string) (level, msg string)

// Process supervises a single run of an external tool.
type Process struct {
	id              string
	name            string
	args            []string
	cmd             *exec.Cmd
	dir             string
	logger          logging.Logger
	processLogger   logging.Logger // logger for process output (nil = use logger)
	logParser       LogParser      // nil = every line at debug
	outputHandler   OutputHandler
	tail            *TailBuffer
	gracefulTimeout time.Duration // timeout for graceful shutdown before force kill
	killTimeout     time.Duration // timeout after Kill() before giving up
}

// NewProcess creates a process for name with args. Nothing runs until Run.
func NewProcess(id, name string, args []string, logger logging.Logger) *Process {
	return &Process{
		id:              id,
		name:            name,
		args:            args,
		logger:          logger,
		tail:            NewTailBuffer(DefaultTailLines),
		gracefulTimeout: 5 * time.Second,
		killTimeout:     5 * time.Second,
	}
}

// SetLogParser sets a logger and parser for process output.
func (p *Process) SetLogParser(logger logging.Logger, parser LogParser) {
	p.processLogger = logger
	p.logParser = parser
}

// SetOutputHandler sets the receiver for every output line.
func (p *Process) SetOutputHandler(handler OutputHandler) {
	p.outputHandler = handler
}

// SetDir sets the working directory of the subprocess.
func (p *Process) SetDir(dir string) {
	p.dir = dir
}

// SetTimeouts overrides the graceful and kill timeouts.
func (p *Process) SetTimeouts(graceful, kill time.Duration) {
	p.gracefulTimeout = graceful
	p.killTimeout = kill
}

// Tail returns the last lines of combined output.
func (p *Process) Tail() []string {
	return p.tail.Lines()
}

// CommandLine returns the command formatted for logs.
func (p *Process) CommandLine() string {
	return FormatCommand(p.name, p.args)
}

// Run starts the subprocess and blocks until it exits or ctx is cancelled.
// A non-nil error means the process could not start or was cancelled; a
// process that ran and failed is reported only through the exit code.
func (p *Process) Run(ctx context.Context) (int, error) {
	if p.name == "" {
		return 1, fmt.Errorf("empty command")
	}

	p.cmd = exec.Command(p.name, p.args...)
	p.cmd.Dir = p.dir
	p.cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := p.cmd.StdoutPipe()
	if err != nil {
		return 1, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := p.cmd.StderrPipe()
	if err != nil {
		return 1, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := p.cmd.Start(); err != nil {
		return 1, fmt.Errorf("failed to start %s: %w", p.name, err)
	}

	p.logger.Debug("Process started", "id", p.id, "pid", p.cmd.Process.Pid, "command", p.CommandLine())

	outputDone := make(chan struct{}, 2)
	go func() {
		p.streamOutput(stdout, "stdout")
		outputDone <- struct{}{}
	}()
	go func() {
		p.streamOutput(stderr, "stderr")
		outputDone <- struct{}{}
	}()

	// Wait must not run before the pipes are drained, or trailing output is lost.
	processDone := make(chan error, 1)
	go func() {
		<-outputDone
		<-outputDone
		processDone <- p.cmd.Wait()
	}()

	select {
	case <-ctx.Done():
		p.logger.Info("Context cancelled, stopping process", "id", p.id)
		p.sendStopSignal()
		return p.waitForExit(processDone), ctx.Err()
	case processErr := <-processDone:
		exitCode := exitCodeFromError(processErr)
		if processErr != nil && !isExitError(processErr) {
			p.logger.Error("Process wait failed", "id", p.id, "error", processErr)
		}
		p.logger.Debug("Process exited", "id", p.id, "exit_code", exitCode)
		return exitCode, nil
	}
}

func isExitError(err error) bool {
	var exitErr *exec.ExitError
	return errors.As(err, &exitErr)
}

// exitCodeFromError extracts exit code from process error.
// Returns 0 for nil error, the exit code for ExitError, or 1 for other errors.
func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if code := exitErr.ExitCode(); code >= 0 {
			return code
		}
		// Terminated by a signal.
		return ExitCodeKilled
	}
	return 1
}

// sendStopSignal sends SIGINT to the process group without waiting.
func (p *Process) sendStopSignal() {
	if p.cmd == nil || p.cmd.Process == nil {
		return
	}
	pid := p.cmd.Process.Pid
	p.logger.Debug("Sending SIGINT to process group", "pid", pid)
	if err := syscall.Kill(-pid, syscall.SIGINT); err != nil {
		p.logger.Warn("Failed to send SIGINT", "pid", pid, "error", err)
	}
}

// waitForExit waits for the process to exit, force-killing after the graceful timeout.
func (p *Process) waitForExit(processDone <-chan error) int {
	select {
	case err := <-processDone:
		return exitCodeFromError(err)
	case <-time.After(p.gracefulTimeout):
		p.logger.Warn("Graceful shutdown timeout, forcing kill", "timeout", p.gracefulTimeout)
		if err := syscall.Kill(-p.cmd.Process.Pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
			if killErr := p.cmd.Process.Kill(); killErr != nil && !errors.Is(killErr, os.ErrProcessDone) {
				p.logger.Error("Failed to kill process", "error", killErr)
			}
		}
		select {
		case <-processDone:
		case <-time.After(p.killTimeout):
			p.logger.Error("Process did not exit after kill signal")
		}
		return ExitCodeKilled
	}
}

// streamOutput forwards each line to the handler, the tail buffer and the log.
func (p *Process) streamOutput(reader io.Reader, source string) {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	scanner.Split(ScanLines)

	logger := p.processLogger
	if logger == nil {
		logger = p.logger
	}

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		p.tail.Write(line)
		if p.outputHandler != nil {
			p.outputHandler.HandleLine(source, line)
		}

		level, msg := "debug", line
		if p.logParser != nil {
			level, msg = p.logParser(line)
		}

		switch level {
		case "panic", "fatal", "error":
			logger.Error(msg)
		case "warning":
			logger.Warn(msg)
		default:
			logger.Debug(msg)
		}
	}

	if err := scanner.Err(); err != nil {
		p.logger.Warn("Error reading output", "source", source, "error", err)
		// Drain so the child never blocks on a full pipe.
		_, _ = io.Copy(io.Discard, reader)
	}
}

// FormatCommand renders a command line for logs, quoting arguments that
// contain shell metacharacters.
func FormatCommand(name string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, quoteArg(name))
	for _, a := range args {
		parts = append(parts, quoteArg(a))
	}
	return strings.Join(parts, " ")
}

func quoteArg(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\n'\"\\$;&|<>()*?[]{}!`#~") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
