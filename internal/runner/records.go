package runner

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
)

// framing selects how stdout bytes are split into records.
type framing int

const (
	framingLines    framing = iota // newline-delimited records
	framingDocument                // the whole stream is one record
)

// readRecords reads r and sends complete records to out, in order, until EOF,
// a read error, or ctx is done. Blank records are skipped. A trailing record
// without a newline is still delivered so a truncated last line surfaces as a
// decode failure instead of vanishing.
//
// Each record is also copied to tee, one per line, when tee is non-nil.
// Returns the number of records delivered and any read error other than EOF.
func readRecords(ctx context.Context, r io.Reader, f framing, tee io.Writer, out chan<- []byte) (int64, error) {
	var count int64
	emit := func(rec []byte) bool {
		rec = bytes.TrimRight(rec, "\r\n")
		if len(bytes.TrimSpace(rec)) == 0 {
			return true
		}
		if tee != nil {
			_, _ = tee.Write(append(rec[:len(rec):len(rec)], '\n'))
		}
		select {
		case out <- rec:
			count++
			return true
		case <-ctx.Done():
			return false
		}
	}

	if f == framingDocument {
		data, err := io.ReadAll(r)
		if !emit(data) {
			return count, nil
		}
		return count, err
	}

	br := bufio.NewReaderSize(r, 64*1024)
	for {
		line, err := br.ReadBytes('\n')
		if len(line) > 0 && !emit(line) {
			return count, nil
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return count, nil
			}
			return count, err
		}
	}
}
