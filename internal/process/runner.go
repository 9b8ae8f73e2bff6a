package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync/atomic"
	"time"

	"github.com/smazurov/streamforge/internal/logging"
)

// Command describes one supervised invocation.
type Command struct {
	Name string
	Args []string
	// Dir is the working directory, empty for the current one.
	Dir string
	// Handler receives every output line; may be nil.
	Handler OutputHandler
}

// Result reports how a supervised invocation ended.
type Result struct {
	ExitCode int
	Tail     []string
	Duration time.Duration
}

// Output returns the diagnostic tail as a single string.
func (r *Result) Output() string {
	return strings.Join(r.Tail, "\n")
}

// Runner runs external tools. Implementations must be safe for concurrent use.
type Runner interface {
	// Run supervises a long-running command, streaming its output.
	Run(ctx context.Context, cmd Command) (*Result, error)
	// Output runs a short query command and returns its stdout.
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands as real subprocesses.
type ExecRunner struct {
	logger          logging.Logger
	processLogger   logging.Logger
	logParser       LogParser
	gracefulTimeout time.Duration
	seq             atomic.Int64
}

// RunnerOption configures an ExecRunner.
type RunnerOption func(*ExecRunner)

// WithProcessLog routes subprocess output to logger, leveled by parser.
func WithProcessLog(logger logging.Logger, parser LogParser) RunnerOption {
	return func(r *ExecRunner) {
		r.processLogger = logger
		r.logParser = parser
	}
}

// WithGracefulTimeout sets how long a cancelled process gets before SIGKILL.
func WithGracefulTimeout(d time.Duration) RunnerOption {
	return func(r *ExecRunner) {
		r.gracefulTimeout = d
	}
}

// NewExecRunner creates a Runner backed by os/exec.
func NewExecRunner(logger logging.Logger, opts ...RunnerOption) *ExecRunner {
	r := &ExecRunner{
		logger:          logger,
		gracefulTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) (*Result, error) {
	id := fmt.Sprintf("%s-%d", cmd.Name, r.seq.Add(1))
	p := NewProcess(id, cmd.Name, cmd.Args, r.logger)
	p.SetDir(cmd.Dir)
	p.SetTimeouts(r.gracefulTimeout, 5*time.Second)
	if r.processLogger != nil || r.logParser != nil {
		p.SetLogParser(r.processLogger, r.logParser)
	}
	p.SetOutputHandler(cmd.Handler)

	start := time.Now()
	exitCode, err := p.Run(ctx)
	return &Result{
		ExitCode: exitCode,
		Tail:     p.Tail(),
		Duration: time.Since(start),
	}, err
}

// Output implements Runner. A non-zero exit returns an error carrying stderr.
func (r *ExecRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return out, fmt.Errorf("%s exited with code %d: %s", name, exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return out, fmt.Errorf("failed to run %s: %w", name, err)
	}
	return out, nil
}
