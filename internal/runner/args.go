package runner

import (
	"strings"

	"github.com/ppiankov/geminirun/internal/request"
)

// OutputFormat is the value passed to --output-format.
type OutputFormat string

const (
	FormatText       OutputFormat = "text"
	FormatJSON       OutputFormat = "json"
	FormatStreamJSON OutputFormat = "stream-json"
)

// framing reports how stdout is split into records for the format.
// stream-json is newline-delimited; json and text are one document.
func (f OutputFormat) framing() framing {
	if f == FormatStreamJSON {
		return framingLines
	}
	return framingDocument
}

// buildArgs derives the CLI argument vector from the spec.
// The prompt is not an argument: it is written to stdin after the context.
func buildArgs(spec *request.Spec, format OutputFormat) []string {
	var args []string
	if m := spec.Model(); m != "" {
		args = append(args, "--model", m)
	}
	if spec.Yolo() {
		args = append(args, "--approval-mode=yolo")
	}
	args = append(args, "--output-format", string(format))
	if spec.Debug() {
		args = append(args, "--debug")
	}
	if dirs := spec.IncludeDirs(); len(dirs) > 0 {
		args = append(args, "--include-directories", strings.Join(dirs, ","))
	}
	return args
}
