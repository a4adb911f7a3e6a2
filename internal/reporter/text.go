package reporter

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ppiankov/geminirun/internal/history"
	"github.com/ppiankov/geminirun/internal/runner"
)

const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorDim    = "\033[2m"
)

// EventPrinter renders stream events as they arrive. Assistant deltas are
// written inline; everything else gets its own line.
type EventPrinter struct {
	w         io.Writer
	color     bool
	showTools bool
	midLine   bool // last write was a delta without a trailing newline
}

// NewEventPrinter creates a printer. If w is nil, defaults to os.Stdout.
func NewEventPrinter(w io.Writer, color, showTools bool) *EventPrinter {
	if w == nil {
		w = os.Stdout
	}
	return &EventPrinter{w: w, color: color, showTools: showTools}
}

var _ runner.Visitor = (*EventPrinter)(nil)

func (p *EventPrinter) VisitInit(e *runner.Init) {
	if !p.showTools {
		return
	}
	p.line(colorDim, fmt.Sprintf("session %s  model %s", orDash(e.SessionID), orDash(e.Model)))
}

func (p *EventPrinter) VisitMessage(e *runner.Message) {
	if e.Role == "user" {
		return
	}
	if e.Delta {
		fmt.Fprint(p.w, e.Content)
		p.midLine = !strings.HasSuffix(e.Content, "\n")
		return
	}
	p.endLine()
	fmt.Fprintln(p.w, strings.TrimRight(e.Content, "\n"))
}

func (p *EventPrinter) VisitToolUse(e *runner.ToolUse) {
	if !p.showTools {
		return
	}
	args := strings.TrimSpace(string(e.Arguments))
	if len(args) > 80 {
		args = args[:80] + "..."
	}
	p.line(colorCyan, fmt.Sprintf("→ %s %s", e.ToolName, args))
}

func (p *EventPrinter) VisitToolResult(e *runner.ToolResult) {
	if !p.showTools {
		return
	}
	if e.Succeeded() {
		p.line(colorGreen, fmt.Sprintf("✓ %s", e.ToolName))
		return
	}
	msg := e.Status
	if e.Error != nil && e.Error.Message != "" {
		msg = e.Error.Message
	}
	p.line(colorRed, fmt.Sprintf("✗ %s: %s", e.ToolName, msg))
}

func (p *EventPrinter) VisitResult(e *runner.Result) {
	p.endLine()
	if !p.showTools || e.Stats == nil {
		return
	}
	p.line(colorDim, fmt.Sprintf("--- %d tool calls (%d ok, %d failed)",
		e.Stats.Tools.TotalCalls, e.Stats.Tools.TotalSuccess, e.Stats.Tools.TotalFail))
}

func (p *EventPrinter) VisitError(e *runner.Error) {
	p.line(colorRed, "error: "+e.Detail.Message)
}

// Flush terminates a pending delta line.
func (p *EventPrinter) Flush() { p.endLine() }

func (p *EventPrinter) line(color, s string) {
	p.endLine()
	fmt.Fprintf(p.w, "%s%s%s\n", p.c(color), s, p.c(colorReset))
}

func (p *EventPrinter) endLine() {
	if p.midLine {
		fmt.Fprintln(p.w)
		p.midLine = false
	}
}

func (p *EventPrinter) c(code string) string {
	if p.color {
		return code
	}
	return ""
}

// TextReporter writes human-readable batch and history output.
type TextReporter struct {
	w     io.Writer
	color bool
}

// NewTextReporter creates a text reporter.
// If w is nil, defaults to os.Stdout.
// color enables ANSI codes.
func NewTextReporter(w io.Writer, color bool) *TextReporter {
	if w == nil {
		w = os.Stdout
	}
	return &TextReporter{w: w, color: color}
}

// PrintHeader writes the initial banner.
func (r *TextReporter) PrintHeader(totalJobs, parallel int) {
	fmt.Fprintf(r.w, "geminirun: %d jobs, %d parallel\n\n", totalJobs, parallel)
}

// PrintJob writes one finished job.
func (r *TextReporter) PrintJob(res *JobResult) {
	dur := res.Duration.Truncate(time.Millisecond)
	switch {
	case res.ErrorKind == "rate_limited":
		info := "rate limit reached"
		if res.RetryAfter > 0 {
			info = fmt.Sprintf("retry in %s", res.RetryAfter)
		}
		fmt.Fprintf(r.w, "  %s⏸ %-25s%s %s  %s\n", r.c(colorYellow), res.ID, r.c(colorReset), dur, info)
	case res.Failed():
		fmt.Fprintf(r.w, "  %s✗ %-25s%s %s  %s\n", r.c(colorRed), res.ID, r.c(colorReset), dur, firstLine(res.Error))
	default:
		fmt.Fprintf(r.w, "  %s✓ %-25s%s %s\n", r.c(colorGreen), res.ID, r.c(colorReset), dur)
	}
}

// PrintSummary writes the final summary line.
func (r *TextReporter) PrintSummary(report *BatchReport) {
	fmt.Fprintf(r.w, "\n%s--- Summary ---%s\n", r.c(colorCyan), r.c(colorReset))
	fmt.Fprintf(r.w, "Total: %d  ", report.TotalJobs)
	fmt.Fprintf(r.w, "%sCompleted: %d%s  ", r.c(colorGreen), report.Completed, r.c(colorReset))
	fmt.Fprintf(r.w, "%sFailed: %d%s  ", r.c(colorRed), report.Failed, r.c(colorReset))
	if report.RateLimited > 0 {
		fmt.Fprintf(r.w, "%sRate limited: %d%s  ", r.c(colorYellow), report.RateLimited, r.c(colorReset))
	}
	fmt.Fprintf(r.w, "Duration: %s\n", report.TotalDuration.Truncate(time.Second))
}

// PrintHistory writes stored invocations as a table, newest first.
func (r *TextReporter) PrintHistory(entries []history.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(r.w, "no invocations recorded")
		return
	}
	for _, e := range entries {
		color := colorGreen
		if e.State != runner.StateCompleted.String() {
			color = colorRed
		}
		fmt.Fprintf(r.w, "%s  %s%-9s%s %-6s %-20s %8s",
			e.StartedAt.Format(time.DateTime), r.c(color), e.State, r.c(colorReset),
			e.Mode, orDash(e.Model), e.Duration.Truncate(time.Millisecond))
		if e.Error != "" {
			fmt.Fprintf(r.w, "  %s%s%s", r.c(colorDim), firstLine(e.Error), r.c(colorReset))
		}
		fmt.Fprintf(r.w, "  %s\n", e.ID)
	}
}

func (r *TextReporter) c(code string) string {
	if r.color {
		return code
	}
	return ""
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	if len(line) > 120 {
		line = line[:120] + "..."
	}
	return line
}
