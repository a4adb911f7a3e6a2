package runner

import (
	"encoding/json"
)

// Gemini CLI stream-json events.
// gemini --output-format stream-json emits one JSON object per line, tagged by "type".

// EventKind identifies the variant of an Event.
type EventKind string

const (
	KindInit       EventKind = "init"
	KindMessage    EventKind = "message"
	KindToolUse    EventKind = "tool_use"
	KindToolResult EventKind = "tool_result"
	KindResult     EventKind = "result"
	KindError      EventKind = "error"
)

// Event is a decoded stream record. The set of implementations is closed:
// Init, Message, ToolUse, ToolResult, Result and Error.
// Consumers that must handle every variant implement Visitor.
type Event interface {
	Kind() EventKind
	// Terminal reports whether no further events follow for the invocation.
	Terminal() bool
	Accept(v Visitor)
	isEvent()
}

// Visitor handles each event variant. Adding a variant adds a method here,
// so every exhaustive consumer stops compiling until it handles it.
type Visitor interface {
	VisitInit(*Init)
	VisitMessage(*Message)
	VisitToolUse(*ToolUse)
	VisitToolResult(*ToolResult)
	VisitResult(*Result)
	VisitError(*Error)
}

// Init carries session metadata.
type Init struct {
	SessionID string `json:"session_id,omitempty"`
	Model     string `json:"model,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Message is a partial (Delta) or complete text chunk.
type Message struct {
	Role      string `json:"role,omitempty"`
	Content   string `json:"content"`
	Delta     bool   `json:"delta,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// ToolUse reports that the agent invoked a tool.
type ToolUse struct {
	ToolName  string          `json:"tool_name"`
	ToolID    string          `json:"tool_id,omitempty"`
	Arguments json.RawMessage `json:"parameters,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
}

// ToolResult reports the outcome of a tool invocation.
type ToolResult struct {
	ToolName  string       `json:"tool_name,omitempty"`
	ToolID    string       `json:"tool_id,omitempty"`
	Status    string       `json:"status"`
	Output    string       `json:"output,omitempty"`
	Error     *ErrorDetail `json:"error,omitempty"`
	Timestamp string       `json:"timestamp,omitempty"`
}

// Succeeded reports whether the tool finished with status "success".
func (t *ToolResult) Succeeded() bool { return t.Status == "success" }

// Result is the terminal success marker.
type Result struct {
	FinalText string `json:"response,omitempty"`
	Stats     *Stats `json:"stats,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Error is the terminal failure marker reported by the CLI itself.
type Error struct {
	Detail    ErrorDetail `json:"error"`
	Timestamp string      `json:"timestamp,omitempty"`
}

// ErrorDetail is the CLI's structured error payload.
type ErrorDetail struct {
	Type    string `json:"type,omitempty"`
	Message string `json:"message"`
	Code    *int   `json:"code,omitempty"`
}

func (*Init) Kind() EventKind       { return KindInit }
func (*Message) Kind() EventKind    { return KindMessage }
func (*ToolUse) Kind() EventKind    { return KindToolUse }
func (*ToolResult) Kind() EventKind { return KindToolResult }
func (*Result) Kind() EventKind     { return KindResult }
func (*Error) Kind() EventKind      { return KindError }

func (*Init) Terminal() bool       { return false }
func (*Message) Terminal() bool    { return false }
func (*ToolUse) Terminal() bool    { return false }
func (*ToolResult) Terminal() bool { return false }
func (*Result) Terminal() bool     { return true }
func (*Error) Terminal() bool      { return true }

func (e *Init) Accept(v Visitor)       { v.VisitInit(e) }
func (e *Message) Accept(v Visitor)    { v.VisitMessage(e) }
func (e *ToolUse) Accept(v Visitor)    { v.VisitToolUse(e) }
func (e *ToolResult) Accept(v Visitor) { v.VisitToolResult(e) }
func (e *Result) Accept(v Visitor)     { v.VisitResult(e) }
func (e *Error) Accept(v Visitor)      { v.VisitError(e) }

func (*Init) isEvent()       {}
func (*Message) isEvent()    {}
func (*ToolUse) isEvent()    {}
func (*ToolResult) isEvent() {}
func (*Result) isEvent()     {}
func (*Error) isEvent()      {}

// Stats is passed through verbatim from the terminal event. Raw holds the
// original JSON; the typed fields are a best-effort view of the json-mode shape.
type Stats struct {
	Raw    json.RawMessage       `json:"-"`
	Models map[string]ModelStats `json:"models,omitempty"`
	Tools  ToolStats             `json:"tools"`
	Files  FileStats             `json:"files"`
}

// ModelStats holds per-model API and token counters.
type ModelStats struct {
	API    map[string]json.RawMessage `json:"api,omitempty"`
	Tokens map[string]int64           `json:"tokens,omitempty"`
}

// ToolStats summarizes tool executions.
type ToolStats struct {
	TotalCalls   int64 `json:"totalCalls"`
	TotalSuccess int64 `json:"totalSuccess"`
	TotalFail    int64 `json:"totalFail"`
}

// FileStats summarizes line changes made by the agent.
type FileStats struct {
	TotalLinesAdded   int64 `json:"totalLinesAdded"`
	TotalLinesRemoved int64 `json:"totalLinesRemoved"`
}

// newStats wraps raw stats JSON. Returns nil for absent or null stats.
func newStats(raw json.RawMessage) *Stats {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	s := new(Stats)
	_ = s.UnmarshalJSON(raw)
	return s
}

// MarshalJSON emits the stats exactly as the CLI reported them.
func (s *Stats) MarshalJSON() ([]byte, error) {
	if len(s.Raw) > 0 {
		return s.Raw, nil
	}
	type plain Stats
	return json.Marshal((*plain)(s))
}

// UnmarshalJSON keeps the raw bytes alongside the typed view.
func (s *Stats) UnmarshalJSON(data []byte) error {
	type plain Stats
	var p plain
	// lenient: stream-json stats use a different shape than json mode
	_ = json.Unmarshal(data, &p)
	*s = Stats(p)
	s.Raw = append(json.RawMessage(nil), data...)
	return nil
}
