package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/geminirun/internal/request"
	"github.com/ppiankov/geminirun/internal/runner"
)

// DefaultPath is the settings file looked up in the working directory.
const DefaultPath = ".geminirun.yml"

var validate = validator.New()

// Settings holds persistent CLI defaults loaded from a config file.
// Flags given on the command line override these.
type Settings struct {
	Binary             string            `yaml:"binary"`
	Model              string            `yaml:"model" validate:"omitempty,printascii"`
	Yolo               bool              `yaml:"yolo"`
	Debug              bool              `yaml:"debug"`
	IncludeDirectories []string          `yaml:"include_directories" validate:"dive,required"`
	Env                map[string]string `yaml:"env" validate:"dive,keys,required,endkeys"` // literal or "env:VAR_NAME"

	IdleTimeout  time.Duration `yaml:"idle_timeout" validate:"gte=0"`
	MaxRuntime   time.Duration `yaml:"max_runtime" validate:"gte=0"`
	DecodePolicy string        `yaml:"decode_policy" validate:"omitempty,oneof=continue abort"`

	OutputDir string `yaml:"output_dir"` // transcripts, disabled when empty
	HistoryDB string `yaml:"history_db"` // sqlite path, disabled when empty
	Parallel  int    `yaml:"parallel" validate:"gte=0,lte=64"`
}

// LoadSettings reads a YAML config file into Settings.
// If the file does not exist, it returns zero-value Settings and nil error.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Settings{}, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := validate.Struct(&s); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return &s, nil
}

// RequestOptions converts the request-level settings to spec options.
// "env:NAME" values are resolved against the current environment.
func (s *Settings) RequestOptions() ([]request.Option, error) {
	env, err := ResolveEnv(s.Env)
	if err != nil {
		return nil, err
	}

	var opts []request.Option
	if s.Binary != "" {
		opts = append(opts, request.WithBinary(s.Binary))
	}
	if s.Model != "" {
		opts = append(opts, request.WithModel(s.Model))
	}
	if s.Yolo {
		opts = append(opts, request.WithYolo(true))
	}
	if s.Debug {
		opts = append(opts, request.WithDebug(true))
	}
	if len(s.IncludeDirectories) > 0 {
		opts = append(opts, request.WithIncludeDirs(s.IncludeDirectories...))
	}
	if len(env) > 0 {
		opts = append(opts, request.WithEnv(env))
	}
	return opts, nil
}

// ClientOptions converts the process-level settings to runner options.
func (s *Settings) ClientOptions() ([]runner.Option, error) {
	policy, err := runner.ParseDecodePolicy(s.DecodePolicy)
	if err != nil {
		return nil, err
	}
	opts := []runner.Option{
		runner.WithIdleTimeout(s.IdleTimeout),
		runner.WithMaxRuntime(s.MaxRuntime),
		runner.WithDecodePolicy(policy),
	}
	if s.OutputDir != "" {
		opts = append(opts, runner.WithOutputDir(s.OutputDir))
	}
	return opts, nil
}
