package reporter

import (
	"errors"
	"time"

	"github.com/ppiankov/geminirun/internal/runner"
)

// JobResult is the outcome of one batch job.
type JobResult struct {
	ID           string           `json:"id"`
	Mode         string           `json:"mode"`
	InvocationID string           `json:"invocation_id,omitempty"`
	Output       string           `json:"output,omitempty"`
	Response     *runner.Response `json:"response,omitempty"`
	Error        string           `json:"error,omitempty"`
	ErrorKind    string           `json:"error_kind,omitempty"`
	ExitCode     int              `json:"exit_code,omitempty"`
	RetryAfter   time.Duration    `json:"retry_after,omitempty"`
	Duration     time.Duration    `json:"duration"`
}

// Failed reports whether the job ended with an error.
func (r *JobResult) Failed() bool { return r.Error != "" }

// SetError records err and its classification on the result.
func (r *JobResult) SetError(err error) {
	if err == nil {
		return
	}
	r.Error = err.Error()
	r.ErrorKind = ErrorKind(err)

	var re *runner.RuntimeError
	if errors.As(err, &re) {
		r.ExitCode = re.ExitCode
		r.RetryAfter = re.RetryAfter
	}
}

// ErrorKind names the failure class of err for reports.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case runner.RateLimited(err):
		return "rate_limited"
	case errors.Is(err, runner.ErrLaunchFailed):
		return "launch_failed"
	case errors.Is(err, runner.ErrContextSource):
		return "context_source"
	case errors.Is(err, runner.ErrJSONParse):
		return "json_parse"
	case errors.Is(err, runner.ErrAPI):
		return "api_error"
	case errors.Is(err, runner.ErrRuntime):
		return "runtime_error"
	default:
		return "error"
	}
}

// BatchReport summarizes a batch run.
type BatchReport struct {
	StartedAt     time.Time     `json:"started_at"`
	TotalDuration time.Duration `json:"total_duration"`
	TotalJobs     int           `json:"total_jobs"`
	Completed     int           `json:"completed"`
	Failed        int           `json:"failed"`
	RateLimited   int           `json:"rate_limited"`
	Results       []*JobResult  `json:"results"`
}

// NewBatchReport tallies results.
func NewBatchReport(started time.Time, results []*JobResult) *BatchReport {
	rep := &BatchReport{
		StartedAt:     started,
		TotalDuration: time.Since(started),
		TotalJobs:     len(results),
		Results:       results,
	}
	for _, r := range results {
		switch {
		case r.ErrorKind == "rate_limited":
			rep.RateLimited++
			rep.Failed++
		case r.Failed():
			rep.Failed++
		default:
			rep.Completed++
		}
	}
	return rep
}
