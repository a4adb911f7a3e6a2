package runner

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors for classifying invocation failures with errors.Is.
var (
	// ErrLaunchFailed indicates the binary could not be found or started.
	ErrLaunchFailed = errors.New("gemini: failed to start CLI")

	// ErrJSONParse indicates an output record did not match any known shape.
	ErrJSONParse = errors.New("gemini: failed to parse JSON output")

	// ErrAPI indicates the CLI reported an application-level failure.
	ErrAPI = errors.New("gemini: API error")

	// ErrRuntime indicates the CLI exited abnormally without a terminal event.
	ErrRuntime = errors.New("gemini: runtime error")

	// ErrStreamClosed is the outcome of a stream closed before it was drained.
	ErrStreamClosed = errors.New("gemini: stream closed")

	// ErrContextSource indicates a context source could not be opened or read.
	ErrContextSource = errors.New("gemini: context source unreadable")
)

// LaunchError wraps the OS error from resolving or starting the binary.
type LaunchError struct {
	Binary string
	Err    error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("%v: %s: %v", ErrLaunchFailed, e.Binary, e.Err)
}

func (e *LaunchError) Unwrap() error        { return e.Err }
func (e *LaunchError) Is(target error) bool { return target == ErrLaunchFailed }

// SourceError reports a context source that failed while being fed to stdin.
// The prompt is never written after a failed source, so the child is killed.
type SourceError struct {
	Index  int
	Source string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("%v: context source %d (%s): %v", ErrContextSource, e.Index, e.Source, e.Err)
}

func (e *SourceError) Unwrap() error        { return e.Err }
func (e *SourceError) Is(target error) bool { return target == ErrContextSource }

// DecodeError reports a record that could not be decoded into an Event.
type DecodeError struct {
	Record []byte
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%v: %v (record: %s)", ErrJSONParse, e.Err, truncate(string(e.Record), 120))
}

func (e *DecodeError) Unwrap() error        { return e.Err }
func (e *DecodeError) Is(target error) bool { return target == ErrJSONParse }

// APIError carries the CLI's own error payload verbatim.
type APIError struct {
	Detail ErrorDetail
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%v: %s", ErrAPI, e.Detail.Message)
}

func (e *APIError) Is(target error) bool { return target == ErrAPI }

// RuntimeError describes an abnormal exit. Stderr is the full captured error stream.
type RuntimeError struct {
	ExitCode   int           // -1 when killed by a signal
	Stderr     string        // collected error-stream text
	Reason     string        // diagnosis from stderr patterns or the runner, may be empty
	RetryAfter time.Duration // parsed from quota errors, zero if unknown
	Err        error
}

func (e *RuntimeError) Error() string {
	var b strings.Builder
	b.WriteString(ErrRuntime.Error())
	if e.Reason != "" {
		b.WriteString(": " + e.Reason)
	}
	if e.ExitCode != 0 {
		fmt.Fprintf(&b, " (exit %d)", e.ExitCode)
	}
	if msg := strings.TrimSpace(e.Stderr); msg != "" {
		b.WriteString(": " + msg)
	} else if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *RuntimeError) Unwrap() error        { return e.Err }
func (e *RuntimeError) Is(target error) bool { return target == ErrRuntime }

// RateLimited reports whether err is a RuntimeError diagnosed as a quota failure.
func RateLimited(err error) bool {
	var re *RuntimeError
	return errors.As(err, &re) && re.Reason == reasonRateLimited
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
