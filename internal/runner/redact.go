package runner

import (
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// credentialPatterns match credential values that can surface in transcripts
// when the model echoes a file or the CLI prints its config.
var credentialPatterns = []*regexp.Regexp{
	// Google API keys
	regexp.MustCompile(`AIza[0-9A-Za-z\-_]{35}`),
	// OAuth access tokens
	regexp.MustCompile(`ya29\.[0-9A-Za-z\-_]{20,}`),
	regexp.MustCompile(`sk-ant-[a-zA-Z0-9\-]{20,}`),
	regexp.MustCompile(`sk-[a-zA-Z0-9\-]{20,}`),
	regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9\-_.]{20,}`),
	regexp.MustCompile(`ghp_[a-zA-Z0-9]{36,}`),
	regexp.MustCompile(`github_pat_[a-zA-Z0-9_]{22,}`),
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
}

// envAssignPattern matches KEY=VALUE or KEY: VALUE fragments for variables that
// hold credentials. Only the value is replaced so JSON records stay parseable.
var envAssignPattern = regexp.MustCompile(
	`\b(GEMINI_API_KEY|GOOGLE_API_KEY|GOOGLE_APPLICATION_CREDENTIALS|GEMINIRUN_\w+|API_KEY|API_SECRET)(\s*[=:]\s*)[^\s"',}]+`,
)

const redacted = "[REDACTED]"

// Redact returns s with credential values replaced and the number of
// replacements made.
func Redact(s string) (string, int) {
	count := 0
	for _, re := range credentialPatterns {
		n := len(re.FindAllStringIndex(s, -1))
		if n == 0 {
			continue
		}
		count += n
		s = re.ReplaceAllString(s, redacted)
	}
	if n := len(envAssignPattern.FindAllStringIndex(s, -1)); n > 0 {
		count += n
		s = envAssignPattern.ReplaceAllString(s, "${1}${2}"+redacted)
	}
	return s, count
}

// redactDir rewrites every .jsonl and .log file in dir with credentials
// replaced. Returns the total number of replacements.
func redactDir(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}

	total := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !(strings.HasSuffix(name, ".jsonl") || strings.HasSuffix(name, ".log")) {
			continue
		}
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		clean, n := Redact(string(data))
		if n == 0 {
			continue
		}
		total += n
		slog.Warn("transcript: credentials redacted", "file", path, "count", n)
		_ = os.WriteFile(path, []byte(clean), 0o600)
	}
	return total
}
