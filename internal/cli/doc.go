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
/*
Package cli provides the root command for the cosmos CLI.

This package creates the root Cobra command and handles global concerns like
version information, persistent flags, and exit codes. Individual commands
are implemented in the internal/commands subpackages.

# Command Tree

	cosmos
	├── request       Send a request to a configured service
	├── redact        Show how a payload is masked in logs
	├── config        show, path, validate, watch
	└── version       Show version

# Global Flags

	--config       Config file (default $COSMOS_CONFIG, then ~/.config/cosmos/config.yaml)
	--log-level    trace, debug, info, warn, error
	--log-format   json or text
	--json         Machine-readable output
	--trace        Export spans: bare --trace prints to stderr, --trace=otlp or
	               --trace=otlp-grpc sends to the tracing.endpoint collector

# Exit Codes

	0  success
	1  the operation failed or the service answered non-2xx
	2  invalid configuration
	3  invalid arguments
	4  no response from the service
*/
package cli
