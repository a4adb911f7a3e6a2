package reporter

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ppiankov/geminirun/internal/runner"
)

var spinnerChars = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// TUI styles
var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	failedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))  // red
	runStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("14")) // cyan
	doneStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10")) // green
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11")) // yellow
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))  // gray
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// EventSource yields stream items until io.EOF.
type EventSource interface {
	Recv() (runner.Event, error)
}

type (
	tickMsg  time.Time
	eventMsg struct{ ev runner.Event }
	itemErr  struct{ err error }
	doneMsg  struct{}
)

// maxToolLines bounds the tool activity panel.
const maxToolLines = 6

// StreamModel is the Bubbletea model that renders one live stream.
type StreamModel struct {
	src    EventSource
	cancel func() // called on 'q' to stop the stream

	session string
	model   string
	body    *strings.Builder
	tools   []string
	errs    []string
	failure error
	done    bool
	calls   int

	scrollOffset int // lines scrolled up from the bottom
	frame        int
	width        int
	height       int
	started      time.Time
}

// NewStreamModel creates a model reading from src.
func NewStreamModel(src EventSource, cancel func()) StreamModel {
	return StreamModel{
		src:     src,
		cancel:  cancel,
		body:    &strings.Builder{},
		started: time.Now(),
	}
}

// Init implements tea.Model.
func (m StreamModel) Init() tea.Cmd {
	return tea.Batch(tickCmd(), recvCmd(m.src))
}

func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// recvCmd pulls exactly one item so the stream is consumed at render pace.
func recvCmd(src EventSource) tea.Cmd {
	return func() tea.Msg {
		ev, err := src.Recv()
		switch {
		case errors.Is(err, io.EOF):
			return doneMsg{}
		case err != nil:
			return itemErr{err: err}
		default:
			return eventMsg{ev: ev}
		}
	}
}

// Update implements tea.Model.
func (m StreamModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if !m.done && m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		case "k", "up":
			m.scrollOffset++
		case "j", "down":
			if m.scrollOffset > 0 {
				m.scrollOffset--
			}
		case "G", "end":
			m.scrollOffset = 0
		}

	case eventMsg:
		msg.ev.Accept(&m)
		return m, recvCmd(m.src)

	case itemErr:
		if errors.Is(msg.err, runner.ErrJSONParse) {
			m.errs = append(m.errs, firstLine(msg.err.Error()))
		} else {
			m.failure = msg.err
		}
		return m, recvCmd(m.src)

	case doneMsg:
		m.done = true

	case tickMsg:
		m.frame++
		if m.done {
			return m, nil
		}
		return m, tickCmd()

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	}

	return m, nil
}

func (m *StreamModel) VisitInit(e *runner.Init) {
	m.session = e.SessionID
	if e.Model != "" {
		m.model = e.Model
	}
}

func (m *StreamModel) VisitMessage(e *runner.Message) {
	if e.Role == "user" {
		return
	}
	if !e.Delta && m.body.Len() > 0 {
		m.body.WriteString("\n")
	}
	m.body.WriteString(e.Content)
}

func (m *StreamModel) VisitToolUse(e *runner.ToolUse) {
	m.calls++
	m.pushTool(runStyle.Render("→ " + e.ToolName))
}

func (m *StreamModel) VisitToolResult(e *runner.ToolResult) {
	if e.Succeeded() {
		m.pushTool(doneStyle.Render("✓ " + e.ToolName))
		return
	}
	m.pushTool(failedStyle.Render("✗ " + e.ToolName + " " + e.Status))
}

func (m *StreamModel) VisitResult(*runner.Result) {}

func (m *StreamModel) VisitError(e *runner.Error) {
	m.failure = &runner.APIError{Detail: e.Detail}
}

func (m *StreamModel) pushTool(line string) {
	m.tools = append(m.tools, line)
	if len(m.tools) > maxToolLines {
		m.tools = m.tools[len(m.tools)-maxToolLines:]
	}
}

// Text returns the assistant text received so far.
func (m StreamModel) Text() string { return m.body.String() }

// Err returns the failure shown by the model, if any.
func (m StreamModel) Err() error { return m.failure }

// View implements tea.Model.
func (m StreamModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("gemini %s", orDash(m.model))))
	if m.session != "" {
		b.WriteString(dimStyle.Render("  session " + m.session))
	}
	b.WriteString("\n")
	b.WriteString(m.statusLine())
	b.WriteString("\n\n")

	// tools panel + errors + blank + help are reserved below the body
	reserved := 3 + 1 + len(m.tools) + len(m.errs) + 1
	avail := m.height - reserved
	if avail < 3 {
		avail = 3
	}

	wrapped := lipgloss.NewStyle().Width(m.width).Render(m.body.String())
	lines := strings.Split(wrapped, "\n")
	end := len(lines) - m.scrollOffset
	if end < 0 {
		end = 0
	}
	start := end - avail
	if start < 0 {
		start = 0
	}
	for _, l := range lines[start:end] {
		b.WriteString(l)
		b.WriteString("\n")
	}
	for i := end - start; i < avail; i++ {
		b.WriteString("\n")
	}

	for _, t := range m.tools {
		b.WriteString("  " + t + "\n")
	}
	for _, e := range m.errs {
		b.WriteString(warnStyle.Render("  ! "+e) + "\n")
	}
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("  ↑↓/jk: scroll  G: follow  q: quit"))
	return b.String()
}

func (m StreamModel) statusLine() string {
	elapsed := time.Since(m.started).Truncate(time.Second)
	switch {
	case m.failure != nil:
		return failedStyle.Render("  ✗ " + firstLine(m.failure.Error()))
	case m.done:
		return doneStyle.Render(fmt.Sprintf("  ✓ done in %s, %d tool calls", elapsed, m.calls))
	default:
		spinner := spinnerChars[m.frame%len(spinnerChars)]
		return runStyle.Render(fmt.Sprintf("  %s streaming %s, %d tool calls", spinner, elapsed, m.calls))
	}
}
