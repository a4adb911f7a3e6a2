package runner

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// fakeKey builds a credential-shaped string at runtime so the test file itself
// does not trip secret scanners.
func fakeKey(prefix string, length int) string {
	body := strings.Repeat("ab12CD34ef", length/10+1)
	return prefix + body[:length]
}

func TestRedact_GoogleKey(t *testing.T) {
	key := fakeKey("AIza", 35)
	out, n := Redact("using key " + key + " for request")
	if n != 1 {
		t.Fatalf("count = %d, want 1", n)
	}
	if strings.Contains(out, key) {
		t.Fatal("google key not redacted")
	}
	if !strings.Contains(out, "using key [REDACTED] for request") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestRedact_OAuthToken(t *testing.T) {
	tok := fakeKey("ya29.", 40)
	out, n := Redact(tok)
	if n != 1 || out != redacted {
		t.Fatalf("got %q (%d)", out, n)
	}
}

func TestRedact_EnvAssignmentKeepsJSON(t *testing.T) {
	in := `{"type":"message","content":"GEMINI_API_KEY=hunter2hunter2"}`
	out, n := Redact(in)
	if n != 1 {
		t.Fatalf("count = %d, want 1", n)
	}
	want := `{"type":"message","content":"GEMINI_API_KEY=[REDACTED]"}`
	if out != want {
		t.Errorf("got %q\nwant %q", out, want)
	}
}

func TestRedact_Clean(t *testing.T) {
	in := `{"type":"message","role":"assistant","content":"hello"}`
	out, n := Redact(in)
	if n != 0 || out != in {
		t.Errorf("clean input changed: %q (%d)", out, n)
	}
}

func TestRedactDir(t *testing.T) {
	dir := t.TempDir()
	key := fakeKey("AIza", 35)
	if err := os.WriteFile(filepath.Join(dir, "stderr.log"), []byte("key "+key+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte(key), 0o600); err != nil {
		t.Fatal(err)
	}

	if got := redactDir(dir); got != 1 {
		t.Fatalf("redactDir = %d, want 1", got)
	}
	data, _ := os.ReadFile(filepath.Join(dir, "stderr.log"))
	if strings.Contains(string(data), key) {
		t.Error("stderr.log still holds the key")
	}
	data, _ = os.ReadFile(filepath.Join(dir, "notes.txt"))
	if string(data) != key {
		t.Error("non-transcript file should be untouched")
	}
}
