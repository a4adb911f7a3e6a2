package config

import (
	"fmt"
	"os"
	"strings"
)

// ResolveEnv resolves "env:VAR_NAME" references in an env map to actual values.
// Returns error if a referenced env var is empty or unset.
func ResolveEnv(env map[string]string) (map[string]string, error) {
	if len(env) == 0 {
		return nil, nil
	}
	resolved := make(map[string]string, len(env))
	for k, v := range env {
		ref, ok := strings.CutPrefix(v, "env:")
		if !ok {
			resolved[k] = v
			continue
		}
		val := os.Getenv(ref)
		if val == "" {
			return nil, fmt.Errorf("env var %q (referenced by %q) is not set", ref, k)
		}
		resolved[k] = val
	}
	return resolved, nil
}
