// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tombee/cosmos/internal/commands/shared"
	"github.com/tombee/cosmos/internal/config"
)

// NewConfigCommand creates the config command with subcommands
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and manage configuration",
		Long: `View and manage cosmos configuration.

Subcommands:
  show     - Display current configuration
  path     - Show config file location
  validate - Check the configuration file
  watch    - Reload the configuration whenever the file changes`,
	}

	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigPathCommand())
	cmd.AddCommand(NewValidateCommand())
	cmd.AddCommand(newWatchCommand())

	// If no subcommand provided, default to 'show'
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runConfigShow(cmd, args)
	}

	return cmd
}

// newConfigShowCommand creates the 'config show' subcommand
func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		Long: `Display the current effective configuration, after environment
overrides and defaults.

OAuth2 client secrets are masked. Use --json for machine-readable output.`,
		Args: cobra.NoArgs,
		RunE: runConfigShow,
	}
}

// newConfigPathCommand creates the 'config path' subcommand
func newConfigPathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show config file location",
		Long: `Display the configuration file cosmos would load: --config, then
$COSMOS_CONFIG, then the default location.`,
		Args: cobra.NoArgs,
		RunE: runConfigPath,
	}
}

// runConfigShow displays the current configuration
func runConfigShow(cmd *cobra.Command, args []string) error {
	cfgPath, err := config.ResolvePath(shared.GetConfigPath())
	if err != nil {
		return shared.NewConfigError("failed to determine config path", err)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return shared.NewConfigError("failed to load config", err)
	}

	masked := maskSensitiveConfig(cfg)

	if shared.GetJSON() {
		return shared.EmitJSON(cmd.OutOrStdout(), masked)
	}
	return outputConfigYAML(cmd.OutOrStdout(), cfgPath, masked)
}

// runConfigPath displays the config file path
func runConfigPath(cmd *cobra.Command, args []string) error {
	cfgPath, err := config.ResolvePath(shared.GetConfigPath())
	if err != nil {
		return shared.NewConfigError("failed to determine config path", err)
	}

	if cfgPath == "" {
		defaultPath, err := config.ConfigPath()
		if err != nil {
			return shared.NewConfigError("failed to determine config path", err)
		}
		cmd.Printf("%s (not found, using defaults)\n", defaultPath)
		return nil
	}

	cmd.Println(cfgPath)
	return nil
}

// maskSensitiveConfig creates a copy of config with secrets masked
func maskSensitiveConfig(cfg *config.Config) *config.Config {
	masked := *cfg

	services := make(map[string]config.ServiceConfig, len(cfg.Services))
	for name, svc := range cfg.Services {
		if svc.OAuth2 != nil {
			oauth := *svc.OAuth2
			oauth.ClientSecret = maskSecret(oauth.ClientSecret)
			svc.OAuth2 = &oauth
		}
		services[name] = svc
	}
	masked.Services = services

	if len(cfg.Tracing.Headers) > 0 {
		headers := make(map[string]string, len(cfg.Tracing.Headers))
		for k, v := range cfg.Tracing.Headers {
			headers[k] = maskSecret(v)
		}
		masked.Tracing.Headers = headers
	}

	return &masked
}

// maskSecret masks a secret for display
func maskSecret(secret string) string {
	if secret == "" {
		return ""
	}

	// Show first 4 and last 4 characters
	if len(secret) <= 8 {
		return "****"
	}

	return secret[:4] + strings.Repeat("*", len(secret)-8) + secret[len(secret)-4:]
}

// outputConfigYAML outputs config in YAML format
func outputConfigYAML(w io.Writer, path string, cfg *config.Config) error {
	if path == "" {
		path = "(defaults)"
	}
	s := shared.NewStyler(w)
	fmt.Fprintf(w, "%s %s\n", s.Header("Configuration:"), path)
	fmt.Fprintln(w, strings.Repeat("=", 50))
	fmt.Fprintln(w)

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)

	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return encoder.Close()
}
