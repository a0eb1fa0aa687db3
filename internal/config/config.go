package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Backend contains the workflow backend endpoint and transport policy.
type Backend struct {
	BaseURL          string `toml:"base_url"`
	RequestTimeout   int    `toml:"request_timeout"`
	RetryAttempts    int    `toml:"retry_attempts"`
	RetryBaseDelayMS int    `toml:"retry_base_delay_ms"`
}

// Polling contains job status polling settings.
type Polling struct {
	IntervalMS       int `toml:"interval_ms"`
	FailureThreshold int `toml:"failure_threshold"`
}

// Models contains model catalog cache settings.
type Models struct {
	CacheTTLSeconds int `toml:"cache_ttl_seconds"`
	CacheSizeMB     int `toml:"cache_size_mb"`
}

// Workflow contains defaults for locally edited workflow documents.
type Workflow struct {
	MaxWorkers int    `toml:"max_workers"`
	File       string `toml:"file"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	File   string `toml:"file"`
}

// Config encapsulates all configuration values for keroro.
//
// Configuration sections:
//   - Backend: base URL, per-attempt timeout and retry policy
//   - Polling: job status interval and failure threshold
//   - Models: model catalog cache
//   - Workflow: local workflow file and worker default
//   - Logging: log format, level and optional file
//   - Providers: provider credentials pushed to the backend
type Config struct {
	Backend   Backend        `toml:"backend"`
	Polling   Polling        `toml:"polling"`
	Models    Models         `toml:"models"`
	Workflow  Workflow       `toml:"workflow"`
	Logging   Logging        `toml:"logging"`
	Providers map[string]any `toml:"providers"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("keroro.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// AttemptTimeout is the deadline applied to each backend request attempt.
func (c *Config) AttemptTimeout() time.Duration {
	return time.Duration(c.Backend.RequestTimeout) * time.Second
}

// RetryBaseDelay is the linear backoff unit between attempts.
func (c *Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.Backend.RetryBaseDelayMS) * time.Millisecond
}

// PollInterval is the delay between job status polls.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Polling.IntervalMS) * time.Millisecond
}

// ModelCacheTTL is how long model listings are reused.
func (c *Config) ModelCacheTTL() time.Duration {
	return time.Duration(c.Models.CacheTTLSeconds) * time.Second
}

// ModelCacheBytes is the model cache capacity.
func (c *Config) ModelCacheBytes() int {
	return c.Models.CacheSizeMB * 1024 * 1024
}

// ProviderSettings returns a copy of the [providers] table with blank string
// values removed.
func (c *Config) ProviderSettings() map[string]any {
	out := make(map[string]any, len(c.Providers))
	for key, value := range c.Providers {
		if text, ok := value.(string); ok && strings.TrimSpace(text) == "" {
			continue
		}
		out[key] = value
	}
	return out
}
