package request

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestNew_Defaults(t *testing.T) {
	s, err := New("hello")
	if err != nil {
		t.Fatal(err)
	}
	if s.Prompt() != "hello" {
		t.Errorf("prompt: got %q", s.Prompt())
	}
	if s.Binary() != DefaultBinary {
		t.Errorf("binary: got %q, want %q", s.Binary(), DefaultBinary)
	}
	if s.Yolo() || s.Debug() {
		t.Error("yolo and debug should default to false")
	}
	if s.Model() != "" {
		t.Errorf("model: got %q, want empty", s.Model())
	}
	if len(s.Sources()) != 0 {
		t.Errorf("expected no sources, got %d", len(s.Sources()))
	}
}

func TestNew_Overrides(t *testing.T) {
	s, err := New("hello",
		WithBinary("/tmp/test"),
		WithYolo(true),
		WithDebug(true),
		WithModel("gemini-2.5-pro"),
		WithIncludeDirs("src", "docs"),
		WithEnv(map[string]string{"B": "2", "A": "1"}),
	)
	if err != nil {
		t.Fatal(err)
	}
	if s.Binary() != "/tmp/test" {
		t.Errorf("binary: got %q", s.Binary())
	}
	if !s.Yolo() || !s.Debug() {
		t.Error("expected yolo and debug enabled")
	}
	if s.Model() != "gemini-2.5-pro" {
		t.Errorf("model: got %q", s.Model())
	}
	env := s.EnvSlice()
	if len(env) != 2 || env[0] != "A=1" || env[1] != "B=2" {
		t.Errorf("env slice: got %v", env)
	}
}

func TestNew_SourceOrder(t *testing.T) {
	s, err := New("p", WithText("one"), WithFile("two.txt"), WithSources(Text("three")))
	if err != nil {
		t.Fatal(err)
	}
	src := s.Sources()
	if len(src) != 3 {
		t.Fatalf("expected 3 sources, got %d", len(src))
	}
	if src[0].Kind() != SourceText || src[0].Text() != "one" {
		t.Errorf("source 0: %v", src[0])
	}
	if src[1].Kind() != SourceFile || src[1].Path() != "two.txt" {
		t.Errorf("source 1: %v", src[1])
	}
	if src[2].Text() != "three" {
		t.Errorf("source 2: %v", src[2])
	}
}

func TestNew_Immutable(t *testing.T) {
	env := map[string]string{"K": "v"}
	s, err := New("p", WithText("a"), WithEnv(env), WithIncludeDirs("x"))
	if err != nil {
		t.Fatal(err)
	}
	env["K"] = "changed"
	src := s.Sources()
	src[0] = Text("mutated")
	dirs := s.IncludeDirs()
	dirs[0] = "y"

	if s.Env()["K"] != "v" {
		t.Error("spec env aliased caller map")
	}
	if s.Sources()[0].Text() != "a" {
		t.Error("Sources returned an aliased slice")
	}
	if s.IncludeDirs()[0] != "x" {
		t.Error("IncludeDirs returned an aliased slice")
	}
}

func TestNew_Invalid(t *testing.T) {
	cases := []struct {
		name   string
		prompt string
		opts   []Option
	}{
		{"empty prompt", "", nil},
		{"blank prompt", "   \n", nil},
		{"empty binary", "p", []Option{WithBinary("")}},
		{"empty file path", "p", []Option{WithFile("")}},
		{"model whitespace", "p", []Option{WithModel("gemini pro")}},
		{"empty include dir", "p", []Option{WithIncludeDirs("")}},
		{"comma include dir", "p", []Option{WithIncludeDirs("a,b")}},
		{"empty env key", "p", []Option{WithEnv(map[string]string{"": "x"})}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.prompt, tc.opts...)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestSource_OpenFileIsLazy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ctx.txt")
	s, err := New("p", WithFile(path))
	if err != nil {
		t.Fatalf("missing file must not fail at build time: %v", err)
	}

	if err := os.WriteFile(path, []byte("late content"), 0o644); err != nil {
		t.Fatal(err)
	}
	rc, err := s.Sources()[0].Open()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "late content" {
		t.Errorf("got %q", data)
	}
}

func TestSource_OpenMissingFile(t *testing.T) {
	_, err := File(filepath.Join(t.TempDir(), "nope")).Open()
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected ErrNotExist in chain, got %v", err)
	}
}
