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
package shared

import (
	"github.com/spf13/pflag"
)

// Flags holds the persistent flags shared by every command.
type Flags struct {
	JSON      bool
	Config    string
	LogLevel  string
	LogFormat string
	Trace     string
}

var (
	flags Flags

	// Build-time version information
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// RegisterFlags binds the persistent flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.BoolVar(&flags.JSON, "json", false, "Output in JSON format")
	fs.StringVar(&flags.Config, "config", "", "Path to config file (default: $COSMOS_CONFIG or ~/.config/cosmos/config.yaml)")
	fs.StringVar(&flags.LogLevel, "log-level", "", "Log level: trace, debug, info, warn, error (overrides config)")
	fs.StringVar(&flags.LogFormat, "log-format", "", "Log format: json or text (overrides config)")
	fs.StringVar(&flags.Trace, "trace", "", "Export OpenTelemetry spans: stdout (default when given bare), otlp or otlp-grpc")
	fs.Lookup("trace").NoOptDefVal = "stdout"
}

// SetVersion sets the version information (called from main)
func SetVersion(v, c, b string) {
	version = v
	commit = c
	buildDate = b
}

// GetVersion returns version, commit and build date.
func GetVersion() (string, string, string) {
	return version, commit, buildDate
}

// GetJSON reports whether --json was given.
func GetJSON() bool {
	return flags.JSON
}

// GetConfigPath returns the --config value.
func GetConfigPath() string {
	return flags.Config
}

// GetFlags returns a copy of the parsed persistent flags.
func GetFlags() Flags {
	return flags
}

// ResetFlagsForTest clears flag state between command tests.
func ResetFlagsForTest() {
	flags = Flags{}
}
