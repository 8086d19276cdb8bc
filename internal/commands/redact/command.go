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

package redact

import (
	"context"
	"slices"

	"github.com/spf13/cobra"

	"github.com/tombee/cosmos/internal/commands/shared"
	"github.com/tombee/cosmos/pkg/redact"
)

// NewCommand creates the redact command
func NewCommand() *cobra.Command {
	var (
		data  string
		extra []string
	)

	cmd := &cobra.Command{
		Use:   "redact",
		Short: "Show how a payload is masked in logs",
		Long: `Redact prints a JSON payload with every field named in filter_parameters
replaced by [FILTERED], exactly as it would appear in request logs.

Reads the payload from --data, or from stdin when --data is not given.`,
		Example: `  cosmos redact --data '{"user":{"password":"x"}}'
  cat body.json | cosmos redact --key ssn`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if data == "" {
				data = "-"
			}
			payload, err := shared.ReadPayload(data, cmd.InOrStdin())
			if err != nil {
				return shared.NewInputError("invalid payload", err)
			}

			rt, err := shared.NewRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close(context.Background())

			keys := redact.Keys(slices.Concat(rt.Store.FilterParameters(), extra))
			filtered := redact.Filter(payload, keys)

			if shared.GetJSON() {
				return shared.EmitJSON(cmd.OutOrStdout(), struct {
					shared.JSONResponse
					Keys   []string `json:"filter_parameters"`
					Result any      `json:"result"`
				}{
					JSONResponse: shared.NewJSONResponse("redact", true),
					Keys:         keys,
					Result:       filtered,
				})
			}
			return shared.EmitJSON(cmd.OutOrStdout(), filtered)
		},
	}

	cmd.Flags().StringVarP(&data, "data", "d", "", "JSON payload, @file, or - for stdin (default: stdin)")
	cmd.Flags().StringSliceVarP(&extra, "key", "k", nil, "Additional field names to mask")

	return cmd
}
