package runner

import (
	"os"
	"strings"
)

// foreignCredentialPrefixes are env var name prefixes stripped from the child
// environment. The Gemini CLI only needs its own credentials; keys for other
// providers must not be reachable from agent tool calls that dump the environment.
var foreignCredentialPrefixes = []string{
	"OPENAI_API",
	"ANTHROPIC_API",
	"GROQ_API",
	"AWS_SECRET",
	"AWS_SESSION",
	"GITHUB_TOKEN",
	"GEMINIRUN_",
}

// foreignCredentialExact are env var names stripped by exact match.
var foreignCredentialExact = []string{
	"API_KEY",
	"API_SECRET",
	"SECRET_KEY",
}

// childEnv returns the sanitized parent environment with extra appended.
// Later entries win, so extra overrides inherited values.
func childEnv(extra []string) []string {
	return append(sanitizeEnv(os.Environ()), extra...)
}

// sanitizeEnv filters foreign credentials from environ. GEMINI_* and GOOGLE_*
// are kept.
func sanitizeEnv(environ []string) []string {
	clean := make([]string, 0, len(environ))
	for _, entry := range environ {
		name, _, ok := strings.Cut(entry, "=")
		if !ok || !isForeignCredential(strings.ToUpper(name)) {
			clean = append(clean, entry)
		}
	}
	return clean
}

func isForeignCredential(name string) bool {
	for _, prefix := range foreignCredentialPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	for _, exact := range foreignCredentialExact {
		if name == exact {
			return true
		}
	}
	return false
}
