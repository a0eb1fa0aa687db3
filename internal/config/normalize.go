package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	c.normalizeBackend()
	if err := c.normalizeWorkflow(); err != nil {
		return err
	}
	if err := c.normalizeLogging(); err != nil {
		return err
	}
	c.normalizeProviders()
	return nil
}

func (c *Config) normalizeBackend() {
	c.Backend.BaseURL = strings.TrimSpace(c.Backend.BaseURL)
	if value, ok := os.LookupEnv("KERORO_BASE_URL"); ok && strings.TrimSpace(value) != "" {
		c.Backend.BaseURL = strings.TrimSpace(value)
	}
	if c.Backend.BaseURL == "" {
		c.Backend.BaseURL = defaultBaseURL
	}
	c.Backend.BaseURL = strings.TrimRight(c.Backend.BaseURL, "/")
}

func (c *Config) normalizeWorkflow() error {
	c.Workflow.File = strings.TrimSpace(c.Workflow.File)
	if c.Workflow.File == "" {
		c.Workflow.File = defaultWorkflowFile
	}
	var err error
	if c.Workflow.File, err = expandPath(c.Workflow.File); err != nil {
		return fmt.Errorf("workflow.file: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() error {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	if value, ok := os.LookupEnv("KERORO_LOG_LEVEL"); ok && strings.TrimSpace(value) != "" {
		c.Logging.Level = value
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.Level == "warning" {
		c.Logging.Level = "warn"
	}
	var err error
	if c.Logging.File, err = expandPath(strings.TrimSpace(c.Logging.File)); err != nil {
		return fmt.Errorf("logging.file: %w", err)
	}
	return nil
}

func (c *Config) normalizeProviders() {
	if c.Providers == nil {
		c.Providers = map[string]any{}
		return
	}
	for key, value := range c.Providers {
		if text, ok := value.(string); ok {
			c.Providers[key] = strings.TrimSpace(text)
		}
	}
}
