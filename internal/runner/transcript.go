package runner

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// transcript persists one invocation's raw records and stderr under
// <root>/<id>/. A nil *transcript is valid and discards everything.
type transcript struct {
	dir    string
	events *os.File
	stderr *os.File
}

func openTranscript(root, id string) (*transcript, error) {
	if root == "" {
		return nil, nil
	}
	dir := filepath.Join(root, id)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create transcript dir: %w", err)
	}
	events, err := os.OpenFile(filepath.Join(dir, "events.jsonl"), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create events log: %w", err)
	}
	stderr, err := os.OpenFile(filepath.Join(dir, "stderr.log"), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		_ = events.Close()
		return nil, fmt.Errorf("create stderr log: %w", err)
	}
	return &transcript{dir: dir, events: events, stderr: stderr}, nil
}

func (t *transcript) eventsWriter() io.Writer {
	if t == nil {
		return nil
	}
	return t.events
}

func (t *transcript) stderrWriter() io.Writer {
	if t == nil {
		return nil
	}
	return t.stderr
}

// Dir returns the transcript directory, or "" when persistence is off.
func (t *transcript) Dir() string {
	if t == nil {
		return ""
	}
	return t.dir
}

// close flushes both files and redacts credentials in place.
func (t *transcript) close() {
	if t == nil {
		return
	}
	_ = t.events.Close()
	_ = t.stderr.Close()
	redactDir(t.dir)
}
