package types

import "fmt"

// Error is a domain error carrying a stable code.
// ExitCode and Output are set for failures of external tools.
type Error struct {
	Code     string
	Message  string
	Cause    error
	ExitCode int
	Output   string
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.ExitCode != 0 {
		msg = fmt.Sprintf("%s (exit code %d)", msg, e.ExitCode)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches errors by code so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Error codes
const (
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeProbeFailed       = "PROBE_FAILED"
	ErrCodeNoVideoStream     = "NO_VIDEO_STREAM"
	ErrCodeResolutionTooLow  = "RESOLUTION_TOO_LOW"
	ErrCodeToolUnavailable   = "TOOL_UNAVAILABLE"
	ErrCodeTranscodeFailed   = "TRANSCODE_FAILED"
	ErrCodeExtractionFailed  = "EXTRACTION_FAILED"
	ErrCodePackagingFailed   = "PACKAGING_FAILED"
	ErrCodeInvalidSelection  = "INVALID_SELECTION"
	ErrCodeInvalidParameters = "INVALID_PARAMS"
)

// Sentinels for errors.Is checks.
var (
	ErrNotFound          = &Error{Code: ErrCodeNotFound}
	ErrProbeFailed       = &Error{Code: ErrCodeProbeFailed}
	ErrNoVideoStream     = &Error{Code: ErrCodeNoVideoStream}
	ErrResolutionTooLow  = &Error{Code: ErrCodeResolutionTooLow}
	ErrToolUnavailable   = &Error{Code: ErrCodeToolUnavailable}
	ErrTranscodeFailed   = &Error{Code: ErrCodeTranscodeFailed}
	ErrExtractionFailed  = &Error{Code: ErrCodeExtractionFailed}
	ErrPackagingFailed   = &Error{Code: ErrCodePackagingFailed}
	ErrInvalidSelection  = &Error{Code: ErrCodeInvalidSelection}
	ErrInvalidParameters = &Error{Code: ErrCodeInvalidParameters}
)

// NewError creates a new domain error.
func NewError(code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewToolError creates an error for an external tool that exited non-zero.
func NewToolError(code, message string, exitCode int, output string) *Error {
	return &Error{
		Code:     code,
		Message:  message,
		ExitCode: exitCode,
		Output:   output,
	}
}
