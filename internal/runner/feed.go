package runner

import (
	"context"
	"fmt"
	"io"

	"github.com/ppiankov/geminirun/internal/request"
)

// feedInput writes every context source in order, then the prompt, and closes w.
// It runs on its own goroutine for the whole life of the child: writing all
// input before reading any output deadlocks once both pipe buffers fill.
//
// File sources are streamed through io.Copy and never held in memory whole.
// A source that cannot be opened or read is a *SourceError. Any other error
// is informational: the child may legitimately exit without reading all of
// its input.
func feedInput(ctx context.Context, w io.WriteCloser, sources []request.Source, prompt string) (err error) {
	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close stdin: %w", cerr)
		}
	}()

	for i, src := range sources {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := copySource(w, i, src); err != nil {
			return err
		}
	}

	if _, err := io.WriteString(w, prompt); err != nil {
		return fmt.Errorf("write prompt: %w", err)
	}
	return nil
}

func copySource(w io.Writer, i int, src request.Source) error {
	rc, err := src.Open()
	if err != nil {
		return &SourceError{Index: i, Source: src.String(), Err: err}
	}
	defer func() { _ = rc.Close() }()

	r := &sourceReader{r: rc}
	if _, err := io.Copy(w, r); err != nil {
		if r.err != nil {
			return &SourceError{Index: i, Source: src.String(), Err: r.err}
		}
		return fmt.Errorf("context source %d (%s): %w", i, src, err)
	}
	return nil
}

// sourceReader remembers read failures so they can be told apart from
// writes into a closed pipe.
type sourceReader struct {
	r   io.Reader
	err error
}

func (s *sourceReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if err != nil && err != io.EOF {
		s.err = err
	}
	return n, err
}
