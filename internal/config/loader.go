package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/geminirun/internal/request"
)

// BatchFile is a list of prompts run by the batch command.
type BatchFile struct {
	Defaults JobDefaults `yaml:"defaults"`
	Jobs     []Job       `yaml:"jobs" validate:"required,min=1,dive"`

	dir string // relative file paths resolve against this
}

// JobDefaults apply to every job that leaves the field unset.
type JobDefaults struct {
	Model string `yaml:"model" validate:"omitempty,printascii"`
	Mode  string `yaml:"mode" validate:"omitempty,oneof=text json plain"`
}

// Job is one prompt with its context.
type Job struct {
	ID                 string   `yaml:"id" validate:"required"`
	Prompt             string   `yaml:"prompt" validate:"required"`
	Mode               string   `yaml:"mode" validate:"omitempty,oneof=text json plain"`
	Model              string   `yaml:"model" validate:"omitempty,printascii"`
	Files              []string `yaml:"files" validate:"dive,required"`
	Context            []string `yaml:"context"` // inline text, written before files
	IncludeDirectories []string `yaml:"include_directories" validate:"dive,required"`
	Yolo               bool     `yaml:"yolo"`
}

// LoadBatch reads and validates a batch file. YAML and JSON are both accepted.
func LoadBatch(path string) (*BatchFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read batch file: %w", err)
	}

	var bf BatchFile
	if err := yaml.Unmarshal(data, &bf); err != nil {
		return nil, fmt.Errorf("parse batch file: %w", err)
	}
	bf.dir = filepath.Dir(path)

	if err := validateBatch(&bf); err != nil {
		return nil, err
	}
	return &bf, nil
}

// validateBatch runs the struct rules, then checks for duplicate IDs.
func validateBatch(bf *BatchFile) error {
	if len(bf.Jobs) == 0 {
		return fmt.Errorf("batch file contains no jobs")
	}
	if err := validate.Struct(bf); err != nil {
		return fmt.Errorf("invalid batch file: %w", err)
	}

	ids := make(map[string]struct{}, len(bf.Jobs))
	for _, j := range bf.Jobs {
		if _, dup := ids[j.ID]; dup {
			return fmt.Errorf("duplicate job id: %q", j.ID)
		}
		ids[j.ID] = struct{}{}
	}
	return nil
}

// ModeOf returns the job's mode with the batch default applied.
func (bf *BatchFile) ModeOf(j *Job) string {
	switch {
	case j.Mode != "":
		return j.Mode
	case bf.Defaults.Mode != "":
		return bf.Defaults.Mode
	default:
		return "text"
	}
}

// Spec builds the request for j. base carries settings-level options;
// job fields are applied after and win.
func (bf *BatchFile) Spec(j *Job, base ...request.Option) (*request.Spec, error) {
	opts := append([]request.Option(nil), base...)

	if m := j.Model; m != "" {
		opts = append(opts, request.WithModel(m))
	} else if m := bf.Defaults.Model; m != "" {
		opts = append(opts, request.WithModel(m))
	}
	for _, text := range j.Context {
		opts = append(opts, request.WithText(text))
	}
	for _, f := range j.Files {
		opts = append(opts, request.WithFile(bf.resolve(f)))
	}
	if len(j.IncludeDirectories) > 0 {
		dirs := make([]string, len(j.IncludeDirectories))
		for i, d := range j.IncludeDirectories {
			dirs[i] = bf.resolve(d)
		}
		opts = append(opts, request.WithIncludeDirs(dirs...))
	}
	if j.Yolo {
		opts = append(opts, request.WithYolo(true))
	}

	spec, err := request.New(j.Prompt, opts...)
	if err != nil {
		return nil, fmt.Errorf("job %q: %w", j.ID, err)
	}
	return spec, nil
}

func (bf *BatchFile) resolve(p string) string {
	if filepath.IsAbs(p) || bf.dir == "" {
		return p
	}
	return filepath.Join(bf.dir, p)
}
