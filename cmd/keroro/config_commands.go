package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"keroro/internal/config"
	"keroro/internal/registry"
	"keroro/internal/session"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Local and backend configuration",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigShowCommand(ctx))
	configCmd.AddCommand(newConfigPullCommand(ctx))
	configCmd.AddCommand(newConfigPushCommand(ctx))

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			dir := filepath.Dir(target)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create config directory %q: %w", dir, err)
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Set [backend] base_url (or export KERORO_BASE_URL) and fill [providers] before running `keroro config push`.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective local configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, map[string]any{
					"path":   ctx.configPath,
					"exists": ctx.configExists,
					"config": cfg,
				})
			}
			encoded, err := toml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "# Config path: %s\n", ctx.configPath)
			if !ctx.configExists {
				fmt.Fprintln(out, "# Config file did not exist; defaults were used")
			}
			fmt.Fprint(out, string(encoded))
			return nil
		},
	}
}

func newConfigPullCommand(ctx *commandContext) *cobra.Command {
	var reveal bool

	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Show the backend's provider configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(func(s *session.Session) error {
				cfg, err := s.Registry.GetConfig(cmd.Context())
				if err != nil {
					return err
				}
				return printBackendConfig(cmd, ctx, cfg, reveal)
			})
		},
	}

	cmd.Flags().BoolVar(&reveal, "reveal", false, "Print credentials instead of masking them")
	return cmd
}

func newConfigPushCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "push",
		Short: "Merge [providers] into the backend configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(func(s *session.Session) error {
				settings := s.Config().ProviderSettings()
				saved, err := s.PushProviders(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return printBackendConfig(cmd, ctx, saved, false)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Pushed %d provider settings to %s\n", len(settings), s.Transport.BaseURL())
				return nil
			})
		},
	}
}

func printBackendConfig(cmd *cobra.Command, ctx *commandContext, cfg *registry.BackendConfig, reveal bool) error {
	encoded, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode backend config: %w", err)
	}
	values := map[string]any{}
	if err := json.Unmarshal(encoded, &values); err != nil {
		return fmt.Errorf("decode backend config: %w", err)
	}
	if !reveal {
		for key, value := range values {
			if text, ok := value.(string); ok && isSecretKey(key) && text != "" {
				values[key] = maskSecret(text)
			}
		}
	}
	if ctx.jsonOutput() {
		return writeJSON(cmd, values)
	}
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, []string{key, itemText(values[key])})
	}
	fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"key", "value"}, rows, nil))
	return nil
}

func isSecretKey(key string) bool {
	return strings.HasSuffix(key, "_api_key") || strings.HasSuffix(key, "_secret_key") || strings.HasSuffix(key, "_access_key")
}

func maskSecret(value string) string {
	runes := []rune(value)
	if len(runes) <= 4 {
		return "****"
	}
	return string(runes[:2]) + strings.Repeat("*", len(runes)-4) + string(runes[len(runes)-2:])
}
