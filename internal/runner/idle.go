package runner

import (
	"io"
	"sync/atomic"
	"time"
)

// idleReader wraps the child's stdout and calls cancel when no bytes arrive
// for timeout. Every read that returns data pushes the deadline forward.
// A zero timeout disables detection.
type idleReader struct {
	r       io.Reader
	timeout time.Duration
	timer   *time.Timer
	cancel  func()
	idled   atomic.Bool
}

func newIdleReader(r io.Reader, timeout time.Duration, cancel func()) *idleReader {
	ir := &idleReader{r: r, timeout: timeout, cancel: cancel}
	if timeout > 0 {
		ir.timer = time.AfterFunc(timeout, ir.fire)
	}
	return ir
}

func (ir *idleReader) Read(p []byte) (int, error) {
	n, err := ir.r.Read(p)
	if n > 0 && ir.timer != nil {
		ir.timer.Reset(ir.timeout)
	}
	return n, err
}

func (ir *idleReader) fire() {
	ir.idled.Store(true)
	if ir.cancel != nil {
		ir.cancel()
	}
}

// Idled reports whether the timeout fired.
func (ir *idleReader) Idled() bool { return ir.idled.Load() }

// Stop disarms the timer once the stream is finished.
func (ir *idleReader) Stop() {
	if ir.timer != nil {
		ir.timer.Stop()
	}
}
