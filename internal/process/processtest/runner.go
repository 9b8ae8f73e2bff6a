// Package processtest provides a scripted process.Runner for tests.
package processtest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/smazurov/streamforge/internal/process"
)

// Call records one invocation seen by the Runner.
type Call struct {
	Name string
	Args []string
	Dir  string
}

// String renders the call as a command line.
func (c Call) String() string {
	return process.FormatCommand(c.Name, c.Args)
}

// Has reports whether the call contains the given consecutive arguments.
func (c Call) Has(args ...string) bool {
	if len(args) == 0 {
		return true
	}
	for i := 0; i+len(args) <= len(c.Args); i++ {
		if slices.Equal(c.Args[i:i+len(args)], args) {
			return true
		}
	}
	return false
}

// Response scripts the outcome of a call.
type Response struct {
	// Lines are delivered to the output handler as stderr.
	Lines []string
	// Stdout is returned from Output.
	Stdout   []byte
	ExitCode int
	Err      error
	// NoTouch suppresses creating the output file on success.
	NoTouch bool
}

// Runner is a process.Runner that never spawns anything. On a successful Run
// it creates the command's last argument as a small file, mimicking a tool
// that writes its output path.
type Runner struct {
	// Respond returns the scripted response for a call. Nil means success.
	Respond func(Call) Response
	// CheckInputs fails a call, as the real tool would, when an input named
	// by -i or in= does not exist relative to the call's working directory.
	CheckInputs bool

	mu    sync.Mutex
	calls []Call
}

var _ process.Runner = (*Runner)(nil)

// Run implements process.Runner.
func (r *Runner) Run(ctx context.Context, cmd process.Command) (*process.Result, error) {
	call := r.record(cmd.Name, cmd.Args, cmd.Dir)
	if err := ctx.Err(); err != nil {
		return &process.Result{ExitCode: process.ExitCodeKilled}, err
	}

	if r.CheckInputs {
		if missing := missingInput(cmd.Dir, cmd.Args); missing != "" {
			line := missing + ": No such file or directory"
			if cmd.Handler != nil {
				cmd.Handler.HandleLine("stderr", line)
			}
			return &process.Result{ExitCode: 1, Tail: []string{line}}, nil
		}
	}

	resp := r.respond(call)
	if resp.Err != nil {
		return &process.Result{ExitCode: 1}, resp.Err
	}

	tail := process.NewTailBuffer(process.DefaultTailLines)
	for _, line := range resp.Lines {
		tail.Write(line)
		if cmd.Handler != nil {
			cmd.Handler.HandleLine("stderr", line)
		}
	}

	if resp.ExitCode == 0 && !resp.NoTouch && len(cmd.Args) > 0 {
		out := cmd.Args[len(cmd.Args)-1]
		if out != os.DevNull && !strings.HasPrefix(out, "-") {
			if err := touch(resolve(cmd.Dir, out)); err != nil {
				return nil, err
			}
		}
	}

	return &process.Result{ExitCode: resp.ExitCode, Tail: tail.Lines()}, nil
}

// Output implements process.Runner.
func (r *Runner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	call := r.record(name, args, "")
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resp := r.respond(call)
	if resp.Err != nil {
		return resp.Stdout, resp.Err
	}
	if resp.ExitCode != 0 {
		return resp.Stdout, fmt.Errorf("%s exited with code %d", name, resp.ExitCode)
	}
	return resp.Stdout, nil
}

// Calls returns a copy of the recorded calls.
func (r *Runner) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.calls)
}

// CallsTo returns the recorded calls to the named tool.
func (r *Runner) CallsTo(name string) []Call {
	var out []Call
	for _, c := range r.Calls() {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

func (r *Runner) record(name string, args []string, dir string) Call {
	call := Call{Name: name, Args: slices.Clone(args), Dir: dir}
	r.mu.Lock()
	r.calls = append(r.calls, call)
	r.mu.Unlock()
	return call
}

func (r *Runner) respond(call Call) Response {
	if r.Respond == nil {
		return Response{}
	}
	return r.Respond(call)
}

// missingInput returns the first -i or in= input that does not exist.
func missingInput(dir string, args []string) string {
	for i, a := range args {
		var in string
		switch {
		case a == "-i" && i+1 < len(args):
			in = args[i+1]
		case strings.HasPrefix(a, "in="):
			in, _, _ = strings.Cut(strings.TrimPrefix(a, "in="), ",")
		default:
			continue
		}
		if _, err := os.Stat(resolve(dir, in)); err != nil {
			return in
		}
	}
	return ""
}

// resolve interprets a relative path against dir like a child process
// started in dir would.
func resolve(dir, path string) string {
	if dir != "" && !filepath.IsAbs(path) {
		return filepath.Join(dir, path)
	}
	return path
}

func touch(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte("data"), 0o644)
}
