package reporter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ppiankov/geminirun/internal/history"
	"github.com/ppiankov/geminirun/internal/runner"
)

func decodeAll(t *testing.T, records ...string) []runner.Event {
	t.Helper()
	var evs []runner.Event
	for _, r := range records {
		ev, err := runner.DecodeEvent([]byte(r))
		if err != nil {
			t.Fatalf("decode %s: %v", r, err)
		}
		evs = append(evs, ev)
	}
	return evs
}

func TestEventPrinter_Deltas(t *testing.T) {
	evs := decodeAll(t,
		`{"type":"init","session_id":"s1","model":"gemini-2.5-pro"}`,
		`{"type":"message","role":"user","content":"question"}`,
		`{"type":"message","role":"assistant","content":"Hel","delta":true}`,
		`{"type":"message","role":"assistant","content":"lo","delta":true}`,
		`{"type":"tool_use","tool_name":"read_file","parameters":{"path":"a.go"}}`,
		`{"type":"tool_result","tool_id":"read_file","status":"error","error":{"message":"denied"}}`,
		`{"type":"result","status":"success","stats":{"tools":{"totalCalls":1,"totalFail":1}}}`,
	)

	var buf bytes.Buffer
	p := NewEventPrinter(&buf, false, true)
	for _, ev := range evs {
		ev.Accept(p)
	}
	p.Flush()

	want := "session s1  model gemini-2.5-pro\n" +
		"Hello\n" +
		"→ read_file {\"path\":\"a.go\"}\n" +
		"✗ read_file: denied\n" +
		"--- 1 tool calls (0 ok, 1 failed)\n"
	if buf.String() != want {
		t.Errorf("got:\n%s\nwant:\n%s", buf.String(), want)
	}
}

func TestEventPrinter_QuietHidesTools(t *testing.T) {
	evs := decodeAll(t,
		`{"type":"init","session_id":"s1"}`,
		`{"type":"tool_use","tool_name":"ls"}`,
		`{"type":"message","role":"assistant","content":"answer"}`,
		`{"type":"error","message":"quota"}`,
	)
	var buf bytes.Buffer
	p := NewEventPrinter(&buf, false, false)
	for _, ev := range evs {
		ev.Accept(p)
	}
	if buf.String() != "answer\nerror: quota\n" {
		t.Errorf("got %q", buf.String())
	}
}

func TestErrorKind(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{&runner.LaunchError{Binary: "gemini", Err: os.ErrNotExist}, "launch_failed"},
		{&runner.SourceError{Index: 1, Source: "file:gone", Err: os.ErrNotExist}, "context_source"},
		{&runner.DecodeError{Record: []byte("x"), Err: errors.New("bad")}, "json_parse"},
		{&runner.APIError{Detail: runner.ErrorDetail{Message: "m"}}, "api_error"},
		{&runner.RuntimeError{ExitCode: 1}, "runtime_error"},
		{&runner.RuntimeError{ExitCode: 1, Reason: "rate limit reached"}, "rate_limited"},
		{fmt.Errorf("wrapped: %w", errors.New("other")), "error"},
	}
	for _, tc := range cases {
		if got := ErrorKind(tc.err); got != tc.want {
			t.Errorf("ErrorKind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestBatchReport_TextAndJSON(t *testing.T) {
	ok := &JobResult{ID: "ok", Mode: "text", Output: "hi", Duration: time.Second}
	bad := &JobResult{ID: "bad", Mode: "json"}
	bad.SetError(&runner.RuntimeError{ExitCode: 2, Stderr: "Critical Failure"})
	rl := &JobResult{ID: "rl", Mode: "text"}
	rl.SetError(&runner.RuntimeError{ExitCode: 1, Reason: "rate limit reached", RetryAfter: 30 * time.Second})

	rep := NewBatchReport(time.Now().Add(-time.Minute), []*JobResult{ok, bad, rl})
	if rep.Completed != 1 || rep.Failed != 2 || rep.RateLimited != 1 {
		t.Fatalf("tally = %+v", rep)
	}
	if bad.ExitCode != 2 || rl.RetryAfter != 30*time.Second {
		t.Errorf("runtime details not captured: %+v %+v", bad, rl)
	}

	var buf bytes.Buffer
	r := NewTextReporter(&buf, false)
	r.PrintHeader(3, 2)
	for _, res := range rep.Results {
		r.PrintJob(res)
	}
	r.PrintSummary(rep)
	out := buf.String()
	for _, want := range []string{"3 jobs, 2 parallel", "✓ ok", "✗ bad", "⏸ rl", "retry in 30s", "Completed: 1", "Rate limited: 1"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	path := filepath.Join(t.TempDir(), "report.json")
	if err := WriteJSONReport(rep, path); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	var back BatchReport
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("report is not valid JSON: %v", err)
	}
	if back.TotalJobs != 3 || back.Results[1].ErrorKind != "runtime_error" {
		t.Errorf("round trip = %+v", back)
	}
}

func TestTextReporter_PrintHistory(t *testing.T) {
	var buf bytes.Buffer
	r := NewTextReporter(&buf, false)
	r.PrintHistory(nil)
	if !strings.Contains(buf.String(), "no invocations") {
		t.Errorf("empty history: %q", buf.String())
	}

	buf.Reset()
	r.PrintHistory([]history.Entry{
		{ID: "id-1", Mode: "text", Model: "gemini-2.5-pro", State: "COMPLETED", StartedAt: time.Now(), Duration: time.Second},
		{ID: "id-2", Mode: "json", State: "FAILED", StartedAt: time.Now(), Error: "gemini: runtime error\nmore"},
	})
	out := buf.String()
	if !strings.Contains(out, "id-1") || !strings.Contains(out, "gemini-2.5-pro") {
		t.Errorf("missing first entry:\n%s", out)
	}
	if !strings.Contains(out, "gemini: runtime error") || strings.Contains(out, "more") {
		t.Errorf("error should be shown as its first line:\n%s", out)
	}
}

// sliceSource replays fixed items.
type sliceSource struct {
	items []any // runner.Event or error
}

func (s *sliceSource) Recv() (runner.Event, error) {
	if len(s.items) == 0 {
		return nil, io.EOF
	}
	it := s.items[0]
	s.items = s.items[1:]
	if err, ok := it.(error); ok {
		return nil, err
	}
	return it.(runner.Event), nil
}

func TestStreamModel_ConsumesStream(t *testing.T) {
	evs := decodeAll(t,
		`{"type":"init","session_id":"s1","model":"gemini-2.5-pro"}`,
		`{"type":"message","role":"assistant","content":"Hello ","delta":true}`,
		`{"type":"tool_use","tool_name":"ls"}`,
		`{"type":"message","role":"assistant","content":"world","delta":true}`,
		`{"type":"result","status":"success"}`,
	)
	items := []any{evs[0], evs[1], evs[2], &runner.DecodeError{Record: []byte("junk"), Err: errors.New("bad")}, evs[3], evs[4]}
	src := &sliceSource{items: items}

	var m tea.Model = NewStreamModel(src, nil)
	m, _ = m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	for {
		msg := recvCmd(src)()
		m, _ = m.Update(msg)
		if _, ok := msg.(doneMsg); ok {
			break
		}
	}

	sm := m.(StreamModel)
	if sm.Text() != "Hello world" {
		t.Errorf("text = %q", sm.Text())
	}
	if sm.Err() != nil {
		t.Errorf("err = %v", sm.Err())
	}
	if len(sm.errs) != 1 || sm.calls != 1 || sm.session != "s1" {
		t.Errorf("model state: errs=%v calls=%d session=%q", sm.errs, sm.calls, sm.session)
	}
	view := sm.View()
	if !strings.Contains(view, "Hello world") || !strings.Contains(view, "done") {
		t.Errorf("view:\n%s", view)
	}
}

func TestStreamModel_QuitCancels(t *testing.T) {
	cancelled := false
	m := NewStreamModel(&sliceSource{}, func() { cancelled = true })

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if !cancelled {
		t.Error("q should cancel a running stream")
	}
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
}

func TestStreamModel_APIError(t *testing.T) {
	evs := decodeAll(t, `{"type":"error","message":"model not found"}`)
	var m tea.Model = NewStreamModel(&sliceSource{}, nil)
	m, _ = m.Update(eventMsg{ev: evs[0]})
	if err := m.(StreamModel).Err(); !errors.Is(err, runner.ErrAPI) {
		t.Errorf("err = %v, want ErrAPI", err)
	}
}
