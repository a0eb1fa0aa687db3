package main

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfigInitAndShow(t *testing.T) {
	env := setupCLITestEnv(t)

	target := filepath.Join(t.TempDir(), "config.toml")
	out := mustRunCLI(t, env, "config", "init", "--path", target)
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, env, "config", "init", "--path", target); err == nil {
		t.Fatal("expected init to refuse overwriting an existing file")
	}

	out = mustRunCLI(t, env, "config", "show")
	requireContains(t, out, "# Config path: "+env.configPath)
	requireContains(t, out, env.backend.URL)
	requireContains(t, out, "interval_ms = 100")
}

func TestConfigRejectsInvalidFile(t *testing.T) {
	env := setupCLITestEnv(t)
	if err := os.WriteFile(env.configPath, []byte("[backend]\nretry_attempts = 99\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, _, err := runCLI(t, env, "config", "show")
	if err == nil || !strings.Contains(err.Error(), "backend.retry_attempts") {
		t.Fatalf("expected retry_attempts validation error, got %v", err)
	}
}

func TestConfigPushAndPull(t *testing.T) {
	env := setupCLITestEnv(t)

	out := mustRunCLI(t, env, "config", "push")
	requireContains(t, out, "Pushed 1 provider settings")
	if got := env.backend.Config()["qwen_api_key"]; got != "sk-cli" {
		t.Fatalf("expected pushed qwen_api_key, got %v", got)
	}

	out = mustRunCLI(t, env, "config", "pull")
	requireContains(t, out, "sk**li")
	if strings.Contains(out, "sk-cli") {
		t.Fatalf("pull should mask credentials: %s", out)
	}

	out = mustRunCLI(t, env, "config", "pull", "--reveal")
	requireContains(t, out, "sk-cli")

	if got := len(env.backend.RequestsTo(http.MethodPost, "/api/config")); got != 1 {
		t.Fatalf("expected one config POST, got %d", got)
	}
}
