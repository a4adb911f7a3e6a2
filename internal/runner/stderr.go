package runner

import (
	"bytes"
	"io"
	"time"
)

// stderrCollector drains the child's error stream in full. The buffer is
// written only by collect and read only after collect has returned.
type stderrCollector struct {
	buf    bytes.Buffer
	health *healthWriter
	quota  *rateLimitWriter
	sink   io.Writer
}

// newStderrCollector builds the scanner chain. logw receives a copy of the
// stream on a best-effort basis and may be nil.
func newStderrCollector(logw io.Writer) *stderrCollector {
	c := &stderrCollector{}
	var base io.Writer = &c.buf
	if logw != nil {
		base = io.MultiWriter(&c.buf, bestEffort{logw})
	}
	c.quota = newRateLimitWriter(base)
	c.health = newHealthWriter(c.quota)
	c.sink = c.health
	return c
}

// collect copies r until EOF or a read error (the pipe closed under us).
func (c *stderrCollector) collect(r io.Reader) error {
	_, err := io.Copy(c.sink, r)
	return err
}

func (c *stderrCollector) String() string {
	return c.buf.String()
}

// diagnose classifies the collected stream. Connectivity failures win over
// quota failures: a dead network also tends to surface retry noise.
func (c *stderrCollector) diagnose() (reason string, retryAfter time.Duration) {
	if c.health.Detected() {
		return c.health.Reason(), 0
	}
	if c.quota.Detected() {
		return reasonRateLimited, c.quota.RetryAfter()
	}
	return "", 0
}

// bestEffort swallows write errors so a failing log copy never stalls draining.
type bestEffort struct{ w io.Writer }

func (b bestEffort) Write(p []byte) (int, error) {
	_, _ = b.w.Write(p)
	return len(p), nil
}
