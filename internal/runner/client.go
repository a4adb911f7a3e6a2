package runner

import (
	"fmt"
	"time"
)

// DecodePolicy decides what a stream does with a record that fails to decode.
type DecodePolicy int

const (
	// DecodeContinue yields the failure as an error item and keeps reading.
	DecodeContinue DecodePolicy = iota
	// DecodeAbort yields the failure, kills the child, and ends the stream.
	DecodeAbort
)

func (p DecodePolicy) String() string {
	if p == DecodeAbort {
		return "abort"
	}
	return "continue"
}

// ParseDecodePolicy maps "continue" or "abort" to a policy. Empty means continue.
func ParseDecodePolicy(s string) (DecodePolicy, error) {
	switch s {
	case "", "continue":
		return DecodeContinue, nil
	case "abort":
		return DecodeAbort, nil
	default:
		return DecodeContinue, fmt.Errorf("unknown decode policy %q (want continue or abort)", s)
	}
}

// Mode names the response shape an invocation was started for.
type Mode string

const (
	ModeText   Mode = "text"
	ModeJSON   Mode = "json"
	ModeStream Mode = "stream"
	ModePlain  Mode = "plain"
)

func (m Mode) format() OutputFormat {
	switch m {
	case ModeJSON:
		return FormatJSON
	case ModePlain:
		return FormatText
	default:
		return FormatStreamJSON
	}
}

// Summary describes one finished invocation. It is passed to the observer
// once the invocation is closed.
type Summary struct {
	ID         string
	Mode       Mode
	Model      string
	SessionID  string
	State      State
	ExitCode   int
	Records    int64
	StartedAt  time.Time
	Duration   time.Duration
	Transcript string
	Err        error
}

const (
	defaultWaitDelay    = 5 * time.Second
	defaultStreamBuffer = 16
)

// Options configures a Client.
type Options struct {
	// IdleTimeout kills the child when stdout stays silent this long. Zero disables.
	IdleTimeout time.Duration
	// MaxRuntime bounds the whole invocation. Zero disables.
	MaxRuntime time.Duration
	// WaitDelay is how long Wait waits for pipes after the child is killed.
	WaitDelay    time.Duration
	DecodePolicy DecodePolicy
	// OutputDir enables transcripts under <OutputDir>/<id>/.
	OutputDir    string
	StreamBuffer int
	Observer     func(Summary)
}

// Option mutates Options.
type Option func(*Options)

func WithIdleTimeout(d time.Duration) Option { return func(o *Options) { o.IdleTimeout = d } }
func WithMaxRuntime(d time.Duration) Option  { return func(o *Options) { o.MaxRuntime = d } }
func WithWaitDelay(d time.Duration) Option   { return func(o *Options) { o.WaitDelay = d } }
func WithDecodePolicy(p DecodePolicy) Option { return func(o *Options) { o.DecodePolicy = p } }
func WithOutputDir(dir string) Option        { return func(o *Options) { o.OutputDir = dir } }
func WithStreamBuffer(n int) Option          { return func(o *Options) { o.StreamBuffer = n } }
func WithObserver(fn func(Summary)) Option   { return func(o *Options) { o.Observer = fn } }

// Client drives the gemini CLI. A Client holds no per-call state and is safe
// for concurrent use; every call spawns its own child process.
type Client struct {
	opts Options
}

// New returns a Client with opts applied over the defaults.
func New(opts ...Option) *Client {
	o := Options{WaitDelay: defaultWaitDelay, StreamBuffer: defaultStreamBuffer}
	for _, opt := range opts {
		opt(&o)
	}
	if o.WaitDelay <= 0 {
		o.WaitDelay = defaultWaitDelay
	}
	if o.StreamBuffer <= 0 {
		o.StreamBuffer = defaultStreamBuffer
	}
	return &Client{opts: o}
}

// Options returns a copy of the client's effective options.
func (c *Client) Options() Options { return c.opts }
