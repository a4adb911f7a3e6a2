package runner

import (
	"context"
	"errors"
	"io"
	"iter"
	"log/slog"
	"runtime"
	"sync"

	"github.com/ppiankov/geminirun/internal/request"
)

// Stream is a lazy, single-pass sequence of events from one invocation.
// Nothing is buffered beyond a small channel between the reader and Recv,
// so a slow consumer applies backpressure to the child.
//
// Recv must be called from one goroutine at a time. Close may be called from
// any goroutine, including concurrently with Recv, and kills the child if it
// is still running. A Stream that becomes unreachable without Close is closed
// by the garbage collector, but callers should not rely on when.
type Stream struct {
	inv     *invocation
	policy  DecodePolicy
	cleanup runtime.Cleanup

	mu   sync.Mutex
	done bool
}

// Stream starts spec and returns the event stream. The caller must Close it.
func (c *Client) Stream(ctx context.Context, spec *request.Spec) (*Stream, error) {
	inv, err := c.start(ctx, spec, ModeStream)
	if err != nil {
		return nil, err
	}
	st := &Stream{inv: inv, policy: c.opts.DecodePolicy}
	st.cleanup = runtime.AddCleanup(st, func(inv *invocation) {
		slog.Debug("stream collected without Close", "id", inv.id)
		_ = inv.close()
	}, inv)
	return st, nil
}

// Recv returns the next event. A record that fails to decode is returned as
// a *DecodeError; under DecodeContinue the stream then carries on.
//
// After the last event, Recv returns the invocation's failure once if it
// is not an *APIError (that one was already delivered as an *Error event),
// then io.EOF forever.
func (s *Stream) Recv() (Event, error) {
	if s.isDone() {
		return nil, io.EOF
	}

	rec, ok := <-s.inv.records
	if !ok {
		s.setDone()
		err := s.inv.finish()
		if err == nil || errors.Is(err, ErrAPI) {
			return nil, io.EOF
		}
		return nil, err
	}

	ev, err := DecodeEvent(rec)
	if err != nil {
		if s.policy == DecodeAbort {
			s.inv.abort(err)
			for range s.inv.records {
			}
			_ = s.inv.finish()
			s.setDone()
		}
		return nil, err
	}
	s.inv.observe(ev)
	return ev, nil
}

// All adapts the stream to a range-over-func sequence. Breaking out of the
// loop closes the stream. Items are either an event or an error, never both.
func (s *Stream) All() iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		defer func() { _ = s.Close() }()
		for {
			ev, err := s.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(ev, err) {
				return
			}
		}
	}
}

// Close kills the child if it is still running and releases every resource.
// It returns the invocation outcome: nil on success, ErrStreamClosed when
// closed before the end of output, or the classified failure.
func (s *Stream) Close() error {
	s.setDone()
	s.cleanup.Stop()
	return s.inv.close()
}

// Err returns the classified outcome once the stream has ended, nil before.
func (s *Stream) Err() error {
	s.inv.mu.Lock()
	defer s.inv.mu.Unlock()
	return s.inv.outcome
}

// State returns the invocation's lifecycle state.
func (s *Stream) State() State { return s.inv.State() }

// PID returns the child's process id.
func (s *Stream) PID() int { return s.inv.PID() }

// ID returns the invocation id used for transcripts and history.
func (s *Stream) ID() string { return s.inv.id }

func (s *Stream) isDone() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

func (s *Stream) setDone() {
	s.mu.Lock()
	s.done = true
	s.mu.Unlock()
}
