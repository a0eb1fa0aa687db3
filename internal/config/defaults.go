package config

const (
	defaultConfigPath       = "~/.config/keroro/config.toml"
	defaultBaseURL          = "http://127.0.0.1:8000"
	defaultRequestTimeout   = 30
	defaultRetryAttempts    = 4
	defaultRetryBaseDelayMS = 1000
	defaultPollIntervalMS   = 2000
	defaultFailureThreshold = 3
	defaultModelCacheTTL    = 300
	defaultModelCacheSizeMB = 8
	defaultWorkflowWorkers  = 4
	defaultWorkflowFile     = "workflow.json"
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	minPollIntervalMS       = 100
	maxRetryAttempts        = 10
	maxWorkflowWorkers      = 16
	maxModelCacheSizeMB     = 512
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Backend: Backend{
			BaseURL:          defaultBaseURL,
			RequestTimeout:   defaultRequestTimeout,
			RetryAttempts:    defaultRetryAttempts,
			RetryBaseDelayMS: defaultRetryBaseDelayMS,
		},
		Polling: Polling{
			IntervalMS:       defaultPollIntervalMS,
			FailureThreshold: defaultFailureThreshold,
		},
		Models: Models{
			CacheTTLSeconds: defaultModelCacheTTL,
			CacheSizeMB:     defaultModelCacheSizeMB,
		},
		Workflow: Workflow{
			MaxWorkers: defaultWorkflowWorkers,
			File:       defaultWorkflowFile,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Providers: map[string]any{},
	}
}
