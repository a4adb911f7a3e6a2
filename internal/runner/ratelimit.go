package runner

import (
	"bytes"
	"io"
	"regexp"
	"strconv"
	"sync"
	"time"
)

const reasonRateLimited = "rate limit reached"

var quotaMarkers = [][]byte{
	[]byte("RESOURCE_EXHAUSTED"),
	[]byte("Quota exceeded"),
	[]byte("rateLimitExceeded"),
	[]byte("429 Too Many Requests"),
	[]byte(`"code":429`),
	[]byte(`"code": 429`),
}

// retryDelayPattern matches both the google.rpc.RetryInfo JSON form
// ("retryDelay": "37s") and the prose form ("Please retry in 12.5s").
var retryDelayPattern = regexp.MustCompile(`(?:"retryDelay"\s*:\s*"|retry in )(\d+(?:\.\d+)?)s`)

// rateLimitWriter wraps the stderr sink and scans each write for quota
// exhaustion. It passes all data through unchanged.
type rateLimitWriter struct {
	w          io.Writer
	detected   bool
	retryAfter time.Duration
	mu         sync.Mutex
}

func newRateLimitWriter(w io.Writer) *rateLimitWriter {
	return &rateLimitWriter{w: w}
}

func (rw *rateLimitWriter) Write(p []byte) (int, error) {
	n, err := rw.w.Write(p)

	rw.mu.Lock()
	defer rw.mu.Unlock()

	if !rw.detected {
		for _, m := range quotaMarkers {
			if bytes.Contains(p, m) {
				rw.detected = true
				break
			}
		}
	}
	// the delay often arrives in a later chunk than the marker
	if rw.detected && rw.retryAfter == 0 {
		if m := retryDelayPattern.FindSubmatch(p); len(m) == 2 {
			if secs, perr := strconv.ParseFloat(string(m[1]), 64); perr == nil {
				rw.retryAfter = time.Duration(secs * float64(time.Second))
			}
		}
	}

	return n, err
}

// Detected returns true if a quota failure was found.
func (rw *rateLimitWriter) Detected() bool {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	return rw.detected
}

// RetryAfter returns the suggested delay, or zero if none was reported.
func (rw *rateLimitWriter) RetryAfter() time.Duration {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	return rw.retryAfter
}
