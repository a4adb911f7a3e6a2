package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/geminirun/internal/config"
	"github.com/ppiankov/geminirun/internal/history"
	"github.com/ppiankov/geminirun/internal/request"
	"github.com/ppiankov/geminirun/internal/runner"
)

// requestFlags are shared by every command that talks to gemini.
type requestFlags struct {
	sources      []request.Source // --file and --context in command-line order
	model        string
	yolo         bool
	debug        bool
	include      []string
	binary       string
	idleTimeout  time.Duration
	maxRuntime   time.Duration
	decodePolicy string
	outputDir    string
}

func (f *requestFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.VarP(&sourceFlag{kind: request.SourceFile, dst: &f.sources}, "file", "f", "context file written to stdin before the prompt (repeatable, in order with --context)")
	fl.Var(&sourceFlag{kind: request.SourceText, dst: &f.sources}, "context", "inline context written to stdin before the prompt (repeatable, in order with --file)")
	fl.StringVarP(&f.model, "model", "m", "", "model name passed to --model")
	fl.BoolVar(&f.yolo, "yolo", false, "auto-approve tool calls (--approval-mode=yolo)")
	fl.BoolVar(&f.debug, "debug", false, "pass --debug to gemini")
	fl.StringArrayVar(&f.include, "include", nil, "extra workspace directory (repeatable)")
	fl.StringVar(&f.binary, "binary", "", "gemini executable (default: gemini on PATH)")
	fl.DurationVar(&f.idleTimeout, "idle-timeout", 0, "kill gemini after no stdout for this duration (0 disables)")
	fl.DurationVar(&f.maxRuntime, "max-runtime", 0, "per-invocation timeout (0 disables)")
	fl.StringVar(&f.decodePolicy, "decode-policy", "continue", "stream decode failures: continue or abort")
	fl.StringVar(&f.outputDir, "output-dir", "", "write events.jsonl and stderr.log per invocation under this directory")
}

// apply overlays explicitly set flags onto cfg.
func (f *requestFlags) apply(cmd *cobra.Command, cfg *config.Settings) {
	changed := cmd.Flags().Changed
	if changed("model") {
		cfg.Model = f.model
	}
	if changed("yolo") {
		cfg.Yolo = f.yolo
	}
	if changed("debug") {
		cfg.Debug = f.debug
	}
	if changed("include") {
		cfg.IncludeDirectories = f.include
	}
	if changed("binary") {
		cfg.Binary = f.binary
	}
	if changed("idle-timeout") {
		cfg.IdleTimeout = f.idleTimeout
	}
	if changed("max-runtime") {
		cfg.MaxRuntime = f.maxRuntime
	}
	if changed("decode-policy") || cfg.DecodePolicy == "" {
		cfg.DecodePolicy = f.decodePolicy
	}
	if changed("output-dir") {
		cfg.OutputDir = f.outputDir
	}
}

// session is everything a command needs to run invocations.
type session struct {
	cfg      *config.Settings
	client   *runner.Client
	baseOpts []request.Option
	store    *history.Store
}

// newSession loads settings, applies flags, and opens the history store when
// one is configured. The caller must call close.
func newSession(ctx context.Context, cmd *cobra.Command, f *requestFlags) (*session, error) {
	cfg, err := config.LoadSettings(configFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if f != nil {
		f.apply(cmd, cfg)
	}

	reqOpts, err := cfg.RequestOptions()
	if err != nil {
		return nil, fmt.Errorf("config env: %w", err)
	}
	clientOpts, err := cfg.ClientOptions()
	if err != nil {
		return nil, err
	}

	s := &session{cfg: cfg, baseOpts: reqOpts}
	if cfg.HistoryDB != "" {
		store, err := history.Open(ctx, cfg.HistoryDB)
		if err != nil {
			slog.Warn("history disabled", "db", cfg.HistoryDB, "error", err)
		} else {
			s.store = store
			clientOpts = append(clientOpts, runner.WithObserver(s.record))
		}
	}
	s.client = runner.New(clientOpts...)
	return s, nil
}

func (s *session) record(sum runner.Summary) {
	if err := s.store.Record(context.Background(), sum); err != nil {
		slog.Warn("history record failed", "id", sum.ID, "error", err)
	}
}

func (s *session) close() {
	if s.store != nil {
		_ = s.store.Close()
	}
}

// spec builds a request from the prompt and the command's context flags.
func (s *session) spec(prompt string, f *requestFlags) (*request.Spec, error) {
	opts := append([]request.Option(nil), s.baseOpts...)
	opts = append(opts, request.WithSources(f.sources...))
	return request.New(prompt, opts...)
}

// files returns the --file paths in order.
func (f *requestFlags) files() []string {
	var paths []string
	for _, src := range f.sources {
		if src.Kind() == request.SourceFile {
			paths = append(paths, src.Path())
		}
	}
	return paths
}

// sourceFlag appends to a source list shared by several flags, so repeated
// --file and --context keep the order they were given in.
type sourceFlag struct {
	kind request.SourceKind
	dst  *[]request.Source
}

func (s *sourceFlag) Set(v string) error {
	if s.kind == request.SourceFile {
		*s.dst = append(*s.dst, request.File(v))
	} else {
		*s.dst = append(*s.dst, request.Text(v))
	}
	return nil
}

func (s *sourceFlag) String() string {
	if s.dst == nil {
		return ""
	}
	var vals []string
	for _, src := range *s.dst {
		if src.Kind() == s.kind {
			vals = append(vals, src.String())
		}
	}
	return strings.Join(vals, ",")
}

func (s *sourceFlag) Type() string { return "stringArray" }

// promptArg joins args into the prompt. No args or a lone "-" reads the
// prompt from stdin.
func promptArg(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 && !(len(args) == 1 && args[0] == "-") {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("read prompt from stdin: %w", err)
	}
	return string(data), nil
}
