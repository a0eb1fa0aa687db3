package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"keroro/internal/testsupport"
)

type cliTestEnv struct {
	backend      *testsupport.Backend
	configPath   string
	workflowPath string
	baseDir      string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("KERORO_BASE_URL", "")
	t.Setenv("KERORO_LOG_LEVEL", "")

	fake := testsupport.NewBackend(t)
	env := &cliTestEnv{
		backend:      fake,
		configPath:   filepath.Join(base, "keroro.toml"),
		workflowPath: filepath.Join(base, "workflow.json"),
		baseDir:      base,
	}
	writeTestConfig(t, env)
	return env
}

func writeTestConfig(t *testing.T, env *cliTestEnv) {
	t.Helper()
	content := fmt.Sprintf(`[backend]
base_url = %q
request_timeout = 5
retry_attempts = 2
retry_base_delay_ms = 1

[polling]
interval_ms = 100
failure_threshold = 3

[workflow]
max_workers = 3
file = %q

[logging]
level = "error"

[providers]
qwen_api_key = "sk-cli"
`, env.backend.URL, env.workflowPath)
	if err := os.WriteFile(env.configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, string, error) {
	t.Helper()
	return runCLIContext(t, context.Background(), env, args...)
}

// runCLIContext runs the command tree under ctx, the way main passes the
// signal-bound context.
func runCLIContext(t *testing.T, ctx context.Context, env *cliTestEnv, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", env.configPath}, args...))
	err := cmd.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

func mustRunCLI(t *testing.T, env *cliTestEnv, args ...string) string {
	t.Helper()
	out, stderr, err := runCLI(t, env, args...)
	if err != nil {
		t.Fatalf("keroro %s: %v (stderr: %s)", strings.Join(args, " "), err, stderr)
	}
	return out
}

// addStep appends kind to the workflow file and returns the new step id.
func addStep(t *testing.T, env *cliTestEnv, kind string, extra ...string) string {
	t.Helper()
	out := mustRunCLI(t, env, append([]string{"--json", "workflow", "add", kind}, extra...)...)
	var step struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal([]byte(out), &step); err != nil {
		t.Fatalf("decode added step %q: %v", out, err)
	}
	if step.ID == "" {
		t.Fatalf("added step has no id: %s", out)
	}
	return step.ID
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
