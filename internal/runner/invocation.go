package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/geminirun/internal/request"
)

var (
	errIdle       = errors.New("idle timeout")
	errMaxRuntime = errors.New("max runtime exceeded")
)

// invocation owns one child process and the four tasks around it: the stdin
// feeder, the stdout record reader, the stderr collector, and the reaper that
// calls Wait once both output pipes are drained.
//
// The consumer ranges over records, reports decoded events through observe,
// then calls finish to classify the outcome and close to release everything.
type invocation struct {
	id      string
	mode    Mode
	spec    *request.Spec
	opts    Options
	started time.Time

	ctx    context.Context // caller's context
	runCtx context.Context
	cancel context.CancelCauseFunc
	stop   context.CancelFunc

	cmd    *exec.Cmd
	idle   *idleReader
	stderr *stderrCollector
	logs   *transcript

	records  chan []byte
	readDone chan struct{}
	feedDone chan struct{}
	exited   chan struct{}

	// written before the matching channel is closed
	feedErr     error
	srcErr      *SourceError
	readErr     error
	recordCount int64
	exitErr     error

	mu        sync.Mutex
	state     State
	terminal  Event
	sessionID string
	model     string
	aborted   error
	outcome   error

	finishOnce sync.Once
	closeOnce  sync.Once
}

// start resolves the binary, spawns the child and launches the background tasks.
// Failure to resolve or start the binary is a *LaunchError.
func (c *Client) start(ctx context.Context, spec *request.Spec, mode Mode) (*invocation, error) {
	binary, err := exec.LookPath(spec.Binary())
	if err != nil {
		return nil, &LaunchError{Binary: spec.Binary(), Err: err}
	}

	inv := &invocation{
		id:       uuid.NewString(),
		mode:     mode,
		spec:     spec,
		opts:     c.opts,
		ctx:      ctx,
		model:    spec.Model(),
		state:    StateNotStarted,
		records:  make(chan []byte, c.opts.StreamBuffer),
		readDone: make(chan struct{}),
		feedDone: make(chan struct{}),
		exited:   make(chan struct{}),
	}

	parent, stop := ctx, context.CancelFunc(func() {})
	if c.opts.MaxRuntime > 0 {
		parent, stop = context.WithTimeoutCause(ctx, c.opts.MaxRuntime, errMaxRuntime)
	}
	inv.stop = stop
	inv.runCtx, inv.cancel = context.WithCancelCause(parent)

	format := mode.format()
	cmd := exec.CommandContext(inv.runCtx, binary, buildArgs(spec, format)...)
	configureProcess(cmd, c.opts.WaitDelay)
	cmd.Env = childEnv(spec.EnvSlice())

	launchErr := func(err error) error {
		inv.cancel(err)
		inv.stop()
		return &LaunchError{Binary: binary, Err: err}
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, launchErr(err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, launchErr(err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, launchErr(err)
	}

	logs, err := openTranscript(c.opts.OutputDir, inv.id)
	if err != nil {
		slog.Warn("transcript disabled", "id", inv.id, "error", err)
		logs = nil
	}
	inv.logs = logs

	slog.Debug("spawning gemini",
		"id", inv.id, "binary", binary, "mode", mode, "format", format,
		"model", spec.Model(), "sources", len(spec.Sources()))

	inv.started = time.Now()
	if err := cmd.Start(); err != nil {
		inv.logs.close()
		return nil, launchErr(err)
	}
	inv.cmd = cmd
	inv.setState(StateRunning)

	inv.idle = newIdleReader(stdout, c.opts.IdleTimeout, func() { inv.cancel(errIdle) })
	inv.stderr = newStderrCollector(logs.stderrWriter())
	collectDone := make(chan struct{})

	go func() {
		defer close(inv.feedDone)
		err := feedInput(inv.runCtx, stdin, spec.Sources(), spec.Prompt())
		if errors.As(err, &inv.srcErr) {
			// the prompt was never written; nothing the child says can be trusted
			slog.Warn("context source failed", "id", inv.id, "error", err)
			inv.cancel(err)
			return
		}
		inv.feedErr = err
		if err != nil {
			slog.Debug("stdin feeder stopped early", "id", inv.id, "error", err)
		}
	}()

	go func() {
		defer close(collectDone)
		if err := inv.stderr.collect(stderr); err != nil {
			slog.Debug("stderr read failed", "id", inv.id, "error", err)
			inv.cancel(err)
		}
	}()

	go func() {
		defer close(inv.readDone)
		defer close(inv.records)
		inv.recordCount, inv.readErr = readRecords(inv.runCtx, inv.idle, format.framing(), logs.eventsWriter(), inv.records)
		if inv.readErr != nil {
			// an undrained stdout would block the child forever
			inv.cancel(inv.readErr)
		}
	}()

	go func() {
		defer close(inv.exited)
		<-inv.readDone
		<-collectDone
		inv.exitErr = cmd.Wait()
		inv.idle.Stop()
	}()

	return inv, nil
}

func (inv *invocation) setState(s State) {
	inv.mu.Lock()
	inv.state = s
	inv.mu.Unlock()
}

// State returns the current lifecycle state.
func (inv *invocation) State() State {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.state
}

// PID returns the child's process id.
func (inv *invocation) PID() int {
	if inv.cmd == nil || inv.cmd.Process == nil {
		return 0
	}
	return inv.cmd.Process.Pid
}

// observe records session metadata and the first terminal event.
func (inv *invocation) observe(ev Event) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	switch e := ev.(type) {
	case *Init:
		inv.sessionID = e.SessionID
		if e.Model != "" {
			inv.model = e.Model
		}
	}
	if ev.Terminal() && inv.terminal == nil {
		inv.terminal = ev
	}
}

func (inv *invocation) sawTerminal() bool {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.terminal != nil
}

// abort fixes the outcome to err and kills the child.
func (inv *invocation) abort(err error) {
	inv.mu.Lock()
	if inv.aborted == nil {
		inv.aborted = err
	}
	inv.mu.Unlock()
	inv.cancel(err)
}

// fail fixes the outcome to err without killing anything.
func (inv *invocation) fail(err error) {
	inv.mu.Lock()
	if inv.aborted == nil {
		inv.aborted = err
	}
	inv.mu.Unlock()
}

// waitExit blocks until the child has been reaped. Records must be drained
// or the run context cancelled first.
func (inv *invocation) waitExit() {
	<-inv.exited
}

// exitedCleanly reports a zero exit status. Only valid after waitExit.
func (inv *invocation) exitedCleanly() bool {
	return inv.exitErr == nil
}

// finish waits for the child and the feeder, then classifies the outcome once.
func (inv *invocation) finish() error {
	inv.finishOnce.Do(func() {
		<-inv.exited
		<-inv.feedDone

		inv.mu.Lock()
		defer inv.mu.Unlock()
		inv.outcome = inv.classify()
		if inv.outcome == nil {
			inv.state = StateCompleted
		} else {
			inv.state = StateFailed
		}

		if inv.outcome != nil && !errors.Is(inv.outcome, ErrStreamClosed) {
			slog.Warn("gemini invocation failed", "id", inv.id, "mode", inv.mode,
				"exit", exitCode(inv.exitErr), "error", inv.outcome)
		} else {
			slog.Debug("gemini invocation finished", "id", inv.id, "mode", inv.mode,
				"records", inv.recordCount, "elapsed", time.Since(inv.started).Round(time.Millisecond))
		}
	})
	return inv.outcome
}

// classify maps what was observed to the outcome. Caller holds mu.
//
// Order matters: caller cancellation, then a context source that could not be
// fed, then failures the runner itself imposed, then a terminal Error event,
// then the idle and runtime limits, then the exit status. A limit that fires
// after an Error event only cleans up a child that stopped talking. A Result
// followed by a nonzero exit is still a failure.
func (inv *invocation) classify() error {
	if err := inv.ctx.Err(); err != nil {
		return err
	}
	if inv.srcErr != nil {
		return inv.srcErr
	}
	if inv.aborted != nil {
		return inv.aborted
	}
	if e, ok := inv.terminal.(*Error); ok {
		return &APIError{Detail: e.Detail}
	}

	switch cause := context.Cause(inv.runCtx); {
	case errors.Is(cause, errIdle):
		return inv.runtimeError(fmt.Sprintf("idle timeout: no output for %s", inv.opts.IdleTimeout))
	case errors.Is(cause, errMaxRuntime):
		return inv.runtimeError(fmt.Sprintf("max runtime of %s exceeded", inv.opts.MaxRuntime))
	}

	if inv.exitErr != nil {
		reason, retry := inv.stderr.diagnose()
		re := inv.runtimeError(reason)
		re.RetryAfter = retry
		return re
	}
	if inv.readErr != nil {
		return &RuntimeError{Stderr: inv.stderr.String(), Err: fmt.Errorf("read output: %w", inv.readErr)}
	}
	if inv.terminal == nil && inv.recordCount == 0 && inv.feedErr != nil {
		return &RuntimeError{Stderr: inv.stderr.String(), Err: fmt.Errorf("write input: %w", inv.feedErr)}
	}
	return nil
}

func (inv *invocation) runtimeError(reason string) *RuntimeError {
	return &RuntimeError{
		ExitCode: exitCode(inv.exitErr),
		Stderr:   inv.stderr.String(),
		Reason:   reason,
		Err:      inv.exitErr,
	}
}

// close kills the child if it is still running, waits for every task, and
// reports the summary. Safe to call more than once and from any goroutine.
func (inv *invocation) close() error {
	inv.closeOnce.Do(func() {
		inv.mu.Lock()
		if inv.state == StateRunning && inv.aborted == nil {
			inv.aborted = ErrStreamClosed
		}
		inv.mu.Unlock()

		inv.cancel(ErrStreamClosed)
		for range inv.records {
		}
		_ = inv.finish()
		inv.stop()
		inv.logs.close()

		inv.mu.Lock()
		final := inv.state
		inv.state = StateClosed
		sum := Summary{
			ID:         inv.id,
			Mode:       inv.mode,
			Model:      inv.model,
			SessionID:  inv.sessionID,
			State:      final,
			ExitCode:   exitCode(inv.exitErr),
			Records:    inv.recordCount,
			StartedAt:  inv.started,
			Duration:   time.Since(inv.started),
			Transcript: inv.logs.Dir(),
			Err:        inv.outcome,
		}
		inv.mu.Unlock()

		if inv.opts.Observer != nil {
			inv.opts.Observer(sum)
		}
	})
	return inv.outcome
}

// exitCode extracts the status from a Wait error: 0 for nil, -1 for a signal
// or a non-exit error.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode()
	}
	return -1
}
