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
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tombee/cosmos/internal/commands/shared"
	"github.com/tombee/cosmos/internal/config"
	pkgerrors "github.com/tombee/cosmos/pkg/errors"
)

// ValidationResult represents the result of config validation.
type ValidationResult struct {
	shared.JSONResponse
	Path     string   `json:"path"`
	Valid    bool     `json:"valid"`
	Services []string `json:"services,omitempty"`
	Errors   []string `json:"errors,omitempty"`
}

// NewValidateCommand creates the 'config validate' subcommand.
func NewValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		Long: `Validate the configuration file structure and values.

Checks performed:
  - YAML syntax and structure
  - Log level and format
  - Every service has a usable base_url, timeout and adapter
  - Adapter sections (rate_limit, oauth2, aws) are complete`,
		Example: `  # Validate configuration
  cosmos config validate

  # Get validation result as JSON
  cosmos config validate --json`,
		Args: cobra.NoArgs,
		RunE: runValidate,
	}
}

// runValidate performs configuration validation.
func runValidate(cmd *cobra.Command, args []string) error {
	cfgPath, err := config.ResolvePath(shared.GetConfigPath())
	if err != nil {
		return shared.NewConfigError("failed to determine config path", err)
	}

	result := ValidationResult{Path: cfgPath}
	cfg, loadErr := config.Load(cfgPath)
	if loadErr == nil {
		result.Valid = true
		result.Services = cfg.ServiceNames()
	} else {
		result.Errors = validationMessages(loadErr)
	}
	result.JSONResponse = shared.NewJSONResponse("config validate", result.Valid)

	if shared.GetJSON() {
		if err := shared.EmitJSON(cmd.OutOrStdout(), result); err != nil {
			return err
		}
	} else {
		s := shared.NewStyler(cmd.OutOrStdout())
		path := cfgPath
		if path == "" {
			path = "(defaults)"
		}
		if result.Valid {
			cmd.Println(s.OK("configuration is valid: " + path))
			for _, name := range result.Services {
				cmd.Println("  " + s.Label("service") + " " + name)
			}
		} else {
			cmd.Println(s.Error("configuration is invalid: " + path))
			for _, msg := range result.Errors {
				cmd.Println("  - " + msg)
			}
		}
	}

	if loadErr != nil {
		return shared.NewConfigError("configuration is invalid", loadErr)
	}
	return nil
}

// validationMessages splits a load error into one message per problem.
func validationMessages(err error) []string {
	var cfgErr *pkgerrors.ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Cause == nil {
		return []string{err.Error()}
	}

	if errors.Is(cfgErr.Cause, config.ErrInvalidConfig) {
		_, list, _ := strings.Cut(cfgErr.Cause.Error(), ":\n  - ")
		if list != "" {
			return strings.Split(list, "\n  - ")
		}
	}
	return []string{cfgErr.Cause.Error()}
}
