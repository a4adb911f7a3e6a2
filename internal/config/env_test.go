package config

import "testing"

func TestResolveEnv_Nil(t *testing.T) {
	got, err := ResolveEnv(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestResolveEnv_Mixed(t *testing.T) {
	t.Setenv("TEST_GEMINI_KEY", "my-secret")

	got, err := ResolveEnv(map[string]string{
		"GEMINI_API_KEY":       "env:TEST_GEMINI_KEY",
		"GOOGLE_CLOUD_PROJECT": "proj-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got["GEMINI_API_KEY"] != "my-secret" || got["GOOGLE_CLOUD_PROJECT"] != "proj-1" {
		t.Fatalf("unexpected result: %v", got)
	}
}

func TestResolveEnv_MissingEnvVar(t *testing.T) {
	t.Setenv("NONEXISTENT_VAR_FOR_TEST", "")

	_, err := ResolveEnv(map[string]string{"GEMINI_API_KEY": "env:NONEXISTENT_VAR_FOR_TEST"})
	if err == nil {
		t.Fatal("expected error for missing env var")
	}
}
