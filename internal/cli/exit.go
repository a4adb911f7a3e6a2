package cli

import (
	"errors"
	"fmt"

	"github.com/ppiankov/geminirun/internal/runner"
)

// Process exit codes.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitAPIError    = 3
	ExitRateLimited = 4
)

// BatchError reports failed jobs after a batch run.
type BatchError struct {
	Failed      int
	RateLimited int
}

func (e *BatchError) Error() string {
	if e.RateLimited > 0 {
		return fmt.Sprintf("%d jobs failed (%d rate-limited)", e.Failed, e.RateLimited)
	}
	return fmt.Sprintf("%d jobs failed", e.Failed)
}

// ExitCode maps a command error to the process exit status.
func ExitCode(err error) int {
	var be *BatchError
	switch {
	case err == nil:
		return ExitOK
	case errors.As(err, &be):
		if be.RateLimited > 0 && be.RateLimited == be.Failed {
			return ExitRateLimited
		}
		return ExitFailure
	case runner.RateLimited(err):
		return ExitRateLimited
	case errors.Is(err, runner.ErrAPI):
		return ExitAPIError
	default:
		return ExitFailure
	}
}
