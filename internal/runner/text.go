package runner

import (
	"context"
	"strings"

	"github.com/ppiankov/geminirun/internal/request"
)

// Text runs spec and returns the assistant's reply as one string.
//
// Assistant delta messages are concatenated in arrival order. When the CLI
// sent no deltas, the last complete assistant message is used instead, and
// failing that the response carried by the Result event. The result is trimmed of surrounding whitespace. The first undecodable record
// aborts the call with a *DecodeError.
func (c *Client) Text(ctx context.Context, spec *request.Spec) (string, error) {
	inv, err := c.start(ctx, spec, ModeText)
	if err != nil {
		return "", err
	}
	defer func() { _ = inv.close() }()

	var agg textAggregator
	for rec := range inv.records {
		if inv.sawTerminal() {
			continue
		}
		ev, err := DecodeEvent(rec)
		if err != nil {
			inv.abort(err)
			break
		}
		inv.observe(ev)
		ev.Accept(&agg)
	}
	if err := inv.finish(); err != nil {
		return "", err
	}
	return agg.String(), nil
}

// textAggregator accumulates assistant text from message events.
type textAggregator struct {
	deltas   strings.Builder
	sawDelta bool
	last     string
	final    string // response carried by the terminal Result, if any
}

func (a *textAggregator) VisitMessage(m *Message) {
	if m.Role == "user" {
		return
	}
	if m.Delta {
		a.sawDelta = true
		a.deltas.WriteString(m.Content)
		return
	}
	a.last = m.Content
}

func (a *textAggregator) VisitInit(*Init)             {}
func (a *textAggregator) VisitToolUse(*ToolUse)       {}
func (a *textAggregator) VisitToolResult(*ToolResult) {}
func (a *textAggregator) VisitError(*Error)           {}

func (a *textAggregator) VisitResult(r *Result) { a.final = r.FinalText }

func (a *textAggregator) String() string {
	if a.sawDelta {
		return strings.TrimSpace(a.deltas.String())
	}
	if a.last != "" {
		return strings.TrimSpace(a.last)
	}
	return strings.TrimSpace(a.final)
}
