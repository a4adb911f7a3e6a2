package request

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
)

// DefaultBinary is the Gemini CLI executable looked up on PATH when no
// override is given.
const DefaultBinary = "gemini"

// ErrInvalid is returned by New when the assembled spec fails validation.
var ErrInvalid = errors.New("request: invalid spec")

var validate = validator.New()

// SourceKind distinguishes file-backed context from inline text.
type SourceKind int

const (
	SourceText SourceKind = iota
	SourceFile
)

func (k SourceKind) String() string {
	switch k {
	case SourceText:
		return "text"
	case SourceFile:
		return "file"
	default:
		return "unknown"
	}
}

// Source is one piece of context written to the child's stdin ahead of the prompt.
type Source struct {
	kind SourceKind
	path string
	text string
}

// File returns a context source read lazily from path at invocation time.
func File(path string) Source { return Source{kind: SourceFile, path: path} }

// Text returns an inline context source.
func Text(s string) Source { return Source{kind: SourceText, text: s} }

func (s Source) Kind() SourceKind { return s.kind }
func (s Source) Path() string     { return s.path }
func (s Source) Text() string     { return s.text }

// Open returns a reader over the source bytes. File sources are opened here,
// not when the spec is built, so large files are streamed rather than preloaded.
func (s Source) Open() (io.ReadCloser, error) {
	if s.kind == SourceFile {
		f, err := os.Open(s.path)
		if err != nil {
			return nil, fmt.Errorf("open context file: %w", err)
		}
		return f, nil
	}
	return io.NopCloser(strings.NewReader(s.text)), nil
}

func (s Source) String() string {
	if s.kind == SourceFile {
		return "file:" + s.path
	}
	return fmt.Sprintf("text:%d bytes", len(s.text))
}

// Spec is an immutable description of one Gemini CLI invocation.
// Build it with New; the zero value is not usable.
type Spec struct {
	prompt      string
	model       string
	sources     []Source
	yolo        bool
	debug       bool
	binary      string
	includeDirs []string
	env         map[string]string
}

// Option configures a Spec under construction.
type Option func(*Spec)

// WithModel selects the model passed via --model. Empty leaves the CLI default.
func WithModel(model string) Option {
	return func(s *Spec) { s.model = model }
}

// WithFile appends a file context source.
func WithFile(path string) Option {
	return func(s *Spec) { s.sources = append(s.sources, File(path)) }
}

// WithText appends an inline text context source.
func WithText(text string) Option {
	return func(s *Spec) { s.sources = append(s.sources, Text(text)) }
}

// WithSources appends context sources in order.
func WithSources(src ...Source) Option {
	return func(s *Spec) { s.sources = append(s.sources, src...) }
}

// WithYolo sets approval mode: the CLI auto-approves every tool action.
func WithYolo(enabled bool) Option {
	return func(s *Spec) { s.yolo = enabled }
}

// WithDebug passes --debug so the CLI writes verbose diagnostics to stderr.
func WithDebug(enabled bool) Option {
	return func(s *Spec) { s.debug = enabled }
}

// WithBinary overrides the executable path.
func WithBinary(path string) Option {
	return func(s *Spec) { s.binary = path }
}

// WithIncludeDirs adds workspace directories (--include-directories).
func WithIncludeDirs(dirs ...string) Option {
	return func(s *Spec) { s.includeDirs = append(s.includeDirs, dirs...) }
}

// WithEnv merges extra environment variables into the child environment.
func WithEnv(env map[string]string) Option {
	return func(s *Spec) {
		if len(env) == 0 {
			return
		}
		if s.env == nil {
			s.env = make(map[string]string, len(env))
		}
		maps.Copy(s.env, env)
	}
}

// specFields mirrors Spec for tag-based validation.
type specFields struct {
	Prompt      string            `validate:"required"`
	Model       string            `validate:"omitempty,printascii"`
	Binary      string            `validate:"required"`
	SourcePaths []string          `validate:"dive,required"`
	IncludeDirs []string          `validate:"dive,required"`
	Env         map[string]string `validate:"dive,keys,required,endkeys"`
}

// New builds and validates a Spec.
func New(prompt string, opts ...Option) (*Spec, error) {
	s := &Spec{prompt: prompt, binary: DefaultBinary}
	for _, opt := range opts {
		opt(s)
	}

	fields := specFields{
		Prompt:      strings.TrimSpace(s.prompt),
		Model:       s.model,
		Binary:      s.binary,
		IncludeDirs: s.includeDirs,
		Env:         s.env,
	}
	for _, src := range s.sources {
		if src.kind == SourceFile {
			fields.SourcePaths = append(fields.SourcePaths, src.path)
		}
	}
	if err := validate.Struct(fields); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if strings.ContainsAny(s.model, " \t\r\n") {
		return nil, fmt.Errorf("%w: model %q contains whitespace", ErrInvalid, s.model)
	}
	for _, d := range s.includeDirs {
		if strings.Contains(d, ",") {
			return nil, fmt.Errorf("%w: include directory %q contains a comma", ErrInvalid, d)
		}
	}
	return s, nil
}

func (s *Spec) Prompt() string { return s.prompt }
func (s *Spec) Model() string  { return s.model }
func (s *Spec) Yolo() bool     { return s.yolo }
func (s *Spec) Debug() bool    { return s.debug }
func (s *Spec) Binary() string { return s.binary }

// Sources returns a copy of the context sources in write order.
func (s *Spec) Sources() []Source { return slices.Clone(s.sources) }

// IncludeDirs returns a copy of the include directories.
func (s *Spec) IncludeDirs() []string { return slices.Clone(s.includeDirs) }

// Env returns a copy of the extra environment.
func (s *Spec) Env() map[string]string { return maps.Clone(s.env) }

// EnvSlice returns the extra environment as sorted "K=V" entries.
func (s *Spec) EnvSlice() []string {
	if len(s.env) == 0 {
		return nil
	}
	out := make([]string, 0, len(s.env))
	for _, k := range slices.Sorted(maps.Keys(s.env)) {
		out = append(out, k+"="+s.env[k])
	}
	return out
}
