package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"keroro/internal/config"
	"keroro/internal/logging"
	"keroro/internal/services"
	"keroro/internal/session"
)

type commandContext struct {
	configFlag *string
	fileFlag   *string
	jsonFlag   *bool

	configOnce   sync.Once
	config       *config.Config
	configPath   string
	configExists bool
	configErr    error

	sessionOnce sync.Once
	session     *session.Session
	sessionErr  error
}

func newCommandContext(configFlag, fileFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		fileFlag:   fileFlag,
		jsonFlag:   jsonFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, exists, err := config.Load(path)
		if err != nil {
			c.configErr = services.Wrap(services.ErrConfiguration, "config", "load", "", err)
			return
		}
		c.config = cfg
		c.configPath = resolved
		c.configExists = exists
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureSession() (*session.Session, error) {
	c.sessionOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.sessionErr = err
			return
		}
		logger, err := c.logger(cfg)
		if err != nil {
			c.sessionErr = err
			return
		}
		c.session, c.sessionErr = session.New(cfg, session.WithLogger(logger))
	})
	return c.session, c.sessionErr
}

func (c *commandContext) withSession(fn func(*session.Session) error) error {
	s, err := c.ensureSession()
	if err != nil {
		return err
	}
	return fn(s)
}

func (c *commandContext) logger(cfg *config.Config) (*slog.Logger, error) {
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}
	return logger, nil
}

func (c *commandContext) close() {
	if c.session != nil {
		c.session.Close()
	}
}

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

// workflowPath resolves --file, then [workflow] file, then workflow.json.
func (c *commandContext) workflowPath() (string, error) {
	path := ""
	if c.fileFlag != nil {
		path = strings.TrimSpace(*c.fileFlag)
	}
	if path == "" && c.config != nil {
		path = c.config.Workflow.File
	}
	if path == "" {
		path = "workflow.json"
	}
	return config.ExpandPath(path)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func colorEnabled(cmd *cobra.Command) bool {
	file, ok := cmd.OutOrStdout().(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd())
}
