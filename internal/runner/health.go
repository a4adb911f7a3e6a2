package runner

import (
	"io"
	"strings"
	"sync"
)

// stderrPattern maps a lowercase stderr fragment to a human-readable reason.
type stderrPattern struct {
	pattern string
	reason  string
}

// connectivityPatterns are the Node.js network and Google auth failures the
// Gemini CLI prints before exiting nonzero.
var connectivityPatterns = []stderrPattern{
	{"enotfound", "DNS resolution failed"},
	{"getaddrinfo", "DNS resolution failed"},
	{"econnrefused", "connection refused"},
	{"econnreset", "connection reset"},
	{"etimedout", "connection timed out"},
	{"fetch failed", "request failed"},
	{"certificate has expired", "TLS certificate expired"},
	{"unable to verify the first certificate", "TLS verification failed"},
	{"api key not valid", "invalid API key"},
	{"unauthenticated", "authentication failed"},
	{"permission_denied", "permission denied"},
}

// healthWriter wraps the stderr sink and scans for connectivity and auth
// failures. All data is passed through unchanged.
type healthWriter struct {
	w        io.Writer
	detected bool
	reason   string
	mu       sync.Mutex
}

func newHealthWriter(w io.Writer) *healthWriter {
	return &healthWriter{w: w}
}

func (hw *healthWriter) Write(p []byte) (int, error) {
	n, err := hw.w.Write(p)

	hw.mu.Lock()
	if !hw.detected {
		lower := strings.ToLower(string(p))
		for _, sp := range connectivityPatterns {
			if strings.Contains(lower, sp.pattern) {
				hw.detected = true
				hw.reason = sp.reason
				break
			}
		}
	}
	hw.mu.Unlock()

	return n, err
}

// Detected returns true if a connectivity or auth failure was seen.
func (hw *healthWriter) Detected() bool {
	hw.mu.Lock()
	defer hw.mu.Unlock()
	return hw.detected
}

// Reason returns the classification of the first failure seen.
func (hw *healthWriter) Reason() string {
	hw.mu.Lock()
	defer hw.mu.Unlock()
	return hw.reason
}
