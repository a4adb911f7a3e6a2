package runner

import (
	"context"

	"github.com/ppiankov/geminirun/internal/request"
)

// Response is the decoded result of a json-mode invocation.
type Response struct {
	Response  string `json:"response"`
	Stats     *Stats `json:"stats,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Model     string `json:"model,omitempty"`
}

// JSON runs spec with --output-format json and decodes the single document
// the CLI prints on exit.
//
// An error payload in the document is an *APIError. A nonzero exit with an
// undecodable document is a *RuntimeError carrying stderr; a clean exit with
// an empty or undecodable document is a *DecodeError.
func (c *Client) JSON(ctx context.Context, spec *request.Spec) (*Response, error) {
	inv, err := c.start(ctx, spec, ModeJSON)
	if err != nil {
		return nil, err
	}
	defer func() { _ = inv.close() }()

	var doc []byte
	for rec := range inv.records {
		doc = append(doc, rec...)
	}
	inv.waitExit()

	agg := responseAggregator{resp: &Response{Model: spec.Model()}}
	evs, derr := DecodeDocument(doc)
	if derr != nil && inv.exitedCleanly() {
		inv.fail(derr)
	}
	for _, ev := range evs {
		inv.observe(ev)
		ev.Accept(&agg)
	}
	if err := inv.finish(); err != nil {
		return nil, err
	}
	return agg.resp, nil
}

type responseAggregator struct {
	resp *Response
}

func (a *responseAggregator) VisitInit(e *Init) {
	a.resp.SessionID = e.SessionID
	if e.Model != "" {
		a.resp.Model = e.Model
	}
}

func (a *responseAggregator) VisitResult(e *Result) {
	a.resp.Response = e.FinalText
	a.resp.Stats = e.Stats
}

func (a *responseAggregator) VisitMessage(*Message)       {}
func (a *responseAggregator) VisitToolUse(*ToolUse)       {}
func (a *responseAggregator) VisitToolResult(*ToolResult) {}
func (a *responseAggregator) VisitError(*Error)           {}
