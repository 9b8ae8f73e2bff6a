package encoders

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/smazurov/streamforge/internal/process"
	"github.com/smazurov/streamforge/internal/types"
)

// testSource is a short synthetic clip used for test encodes.
const testSource = "testsrc2=duration=1:size=1280x720:rate=30"

// VerifyArgs builds a short test encode of encoder on backend into the null
// muxer, using the same device init and upload filters as a real encode.
func VerifyArgs(b Backend, encoder string) []string {
	args := []string{"-hide_banner", "-nostdin", "-loglevel", "error"}
	args = append(args, b.GlobalArgs...)
	args = append(args, "-f", "lavfi", "-i", testSource, "-frames:v", "10")

	if filters := verifyFilters(b, encoder); filters != "" {
		args = append(args, "-vf", filters)
	}
	return append(args, "-c:v", encoder, "-f", "null", os.DevNull)
}

func verifyFilters(b Backend, encoder string) string {
	switch {
	case b.Method == types.MethodNvidia && encoder == b.HEVCEncoder:
		return "format=nv12,hwupload_cuda"
	case b.Method == types.MethodQSV:
		return "format=nv12,hwupload=extra_hw_frames=64,format=qsv"
	case b.Method == types.MethodVAAPI:
		return "format=nv12,hwupload"
	}
	return ""
}

// Verify runs a test encode and reports whether the device actually works.
// An encoder can be compiled in while the hardware behind it is missing.
func Verify(ctx context.Context, runner process.Runner, binary string, b Backend, encoder string) error {
	args := VerifyArgs(b, encoder)
	res, err := runner.Run(ctx, process.Command{Name: binary, Args: args})
	if err != nil {
		return fmt.Errorf("test encode with %s failed to start: %w", encoder, err)
	}
	if res.ExitCode != 0 {
		msg := fmt.Sprintf("test encode with %s failed", encoder)
		if tail := strings.TrimSpace(res.Output()); tail != "" {
			msg += ": " + tail
		}
		return types.NewToolError(types.ErrCodeToolUnavailable, msg, res.ExitCode, res.Output())
	}
	return nil
}
