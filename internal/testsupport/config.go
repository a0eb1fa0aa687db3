package testsupport

import (
	"path/filepath"
	"testing"

	"keroro/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config rooted in a per-test temp directory with fast
// retry and polling timings. It applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Backend.RetryBaseDelayMS = 1
	cfgVal.Backend.RequestTimeout = 5
	cfgVal.Polling.IntervalMS = 100
	cfgVal.Workflow.File = filepath.Join(base, "workflow.json")
	cfgVal.Logging.Level = "error"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithBackend points the config at a fake backend.
func WithBackend(b *Backend) ConfigOption {
	return func(cb *configBuilder) {
		cb.cfg.Backend.BaseURL = b.URL
	}
}

// WithProvider sets one [providers] entry.
func WithProvider(key string, value any) ConfigOption {
	return func(cb *configBuilder) {
		cb.cfg.Providers[key] = value
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Workflow.File)
}
