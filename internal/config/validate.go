package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"keroro/internal/validation"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateBackend(); err != nil {
		return err
	}
	if err := c.validatePolling(); err != nil {
		return err
	}
	if err := c.validateModels(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return c.validateProviders()
}

func (c *Config) validateBackend() error {
	parsed, err := url.Parse(c.Backend.BaseURL)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return fmt.Errorf("backend.base_url must be an http(s) URL, got %q", c.Backend.BaseURL)
	}
	if c.Backend.RequestTimeout <= 0 {
		return errors.New("backend.request_timeout must be positive")
	}
	if c.Backend.RetryAttempts < 1 || c.Backend.RetryAttempts > maxRetryAttempts {
		return fmt.Errorf("backend.retry_attempts must be between 1 and %d", maxRetryAttempts)
	}
	if c.Backend.RetryBaseDelayMS < 0 {
		return errors.New("backend.retry_base_delay_ms must be >= 0")
	}
	return nil
}

func (c *Config) validatePolling() error {
	if c.Polling.IntervalMS < minPollIntervalMS {
		return fmt.Errorf("polling.interval_ms must be at least %d", minPollIntervalMS)
	}
	if c.Polling.FailureThreshold <= 0 {
		return errors.New("polling.failure_threshold must be positive")
	}
	return nil
}

func (c *Config) validateModels() error {
	if c.Models.CacheTTLSeconds <= 0 {
		return errors.New("models.cache_ttl_seconds must be positive")
	}
	if c.Models.CacheSizeMB < 1 || c.Models.CacheSizeMB > maxModelCacheSizeMB {
		return fmt.Errorf("models.cache_size_mb must be between 1 and %d", maxModelCacheSizeMB)
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.MaxWorkers < 1 || c.Workflow.MaxWorkers > maxWorkflowWorkers {
		return fmt.Errorf("workflow.max_workers must be between 1 and %d", maxWorkflowWorkers)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error (got %q)", c.Logging.Level)
	}
}

func (c *Config) validateProviders() error {
	for key, value := range c.Providers {
		if strings.HasSuffix(key, "_api_key") {
			text, _ := value.(string)
			if validation.RequireAPIKey(text, key) != nil {
				return fmt.Errorf("providers.%s must be at least 5 characters", key)
			}
			continue
		}
		if !strings.HasSuffix(key, "_base_url") {
			continue
		}
		text, ok := value.(string)
		if !ok {
			return fmt.Errorf("providers.%s must be a string", key)
		}
		if text == "" {
			continue
		}
		parsed, err := url.Parse(text)
		if err != nil || !parsed.IsAbs() || parsed.Host == "" {
			return fmt.Errorf("providers.%s must be an absolute URL, got %q", key, text)
		}
	}
	return nil
}
