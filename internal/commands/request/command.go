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

package request

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/cosmos/internal/commands/shared"
	"github.com/tombee/cosmos/internal/tracing"
	"github.com/tombee/cosmos/pkg/httpclient"
	"github.com/tombee/cosmos/pkg/operation"
	"github.com/tombee/cosmos/pkg/redact"
)

// result is the --json output of the request command.
type result struct {
	shared.JSONResponse
	Service       string `json:"service"`
	Method        string `json:"method"`
	Path          string `json:"path"`
	CorrelationID string `json:"correlation_id"`
	Status        int    `json:"status,omitempty"`
	Body          any    `json:"body,omitempty"`
	Result        any    `json:"result,omitempty"`
	Error         string `json:"error,omitempty"`
	Kind          string `json:"kind,omitempty"`
}

type options struct {
	data          string
	headers       []string
	query         string
	correlationID string
	redactOutput  bool
}

// NewCommand creates the request command
func NewCommand() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "request <service> <METHOD> <path>",
		Short: "Send a request to a configured service",
		Annotations: map[string]string{
			"group": "execution",
		},
		Long: `Request sends one HTTP request to a service from the configuration file.

The request runs as an operation: it is logged with Started and Completed
(or Failed) lines under a correlation id, and the HTTP request and response
are logged with sensitive fields masked.

METHOD is one of GET, POST, PUT, PATCH, DELETE. Body methods send --data
as JSON, or {} when no data is given.`,
		Example: `  # Fetch a user
  cosmos request users GET /users/42

  # Create a user from a file and print only its id
  cosmos request users POST /users --data @user.json --query .id

  # Pass extra headers
  cosmos request billing GET /invoices -H "Accept-Language: en"`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.data, "data", "d", "", "JSON payload, @file, or - for stdin")
	cmd.Flags().StringArrayVarP(&opts.headers, "header", "H", nil, "Request header as \"Key: Value\" (repeatable)")
	cmd.Flags().StringVarP(&opts.query, "query", "q", "", "jq expression applied to the response body")
	cmd.Flags().StringVar(&opts.correlationID, "correlation-id", "", "Correlation id for this invocation (default: generated)")
	cmd.Flags().BoolVar(&opts.redactOutput, "redact", false, "Mask filter_parameters in the printed body")

	return cmd
}

func run(cmd *cobra.Command, args []string, opts options) (err error) {
	service, path := args[0], args[2]

	method, err := httpclient.ParseMethod(args[1])
	if err != nil {
		return shared.NewInputError("invalid method", err)
	}
	payload, err := shared.ReadPayload(opts.data, cmd.InOrStdin())
	if err != nil {
		return shared.NewInputError("invalid --data", err)
	}
	headers, err := shared.ParseHeaders(opts.headers)
	if err != nil {
		return shared.NewInputError("invalid --header", err)
	}

	rt, err := shared.NewRuntime(cmd)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if closeErr := rt.Close(ctx); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	client, err := rt.Client(service)
	if err != nil {
		return err
	}

	correlationID := opts.correlationID
	if correlationID == "" {
		correlationID = tracing.NewCorrelationID().String()
	}

	ctx := cmd.Context()
	res := rt.Executor.Invoke(ctx, &Operation{
		Client:  client,
		Method:  method,
		Path:    path,
		Payload: payload,
		Headers: headers,
	}, operation.WithCorrelationID(correlationID))

	out := result{
		JSONResponse:  shared.NewJSONResponse("request", res.OK),
		Service:       service,
		Method:        method.String(),
		Path:          path,
		CorrelationID: correlationID,
	}

	resp := responseOf(res)
	if resp != nil {
		out.Status = resp.Status
		out.Body = resp.Body
		if opts.redactOutput {
			out.Body = redact.Filter(resp.Body, rt.Store)
		}
		if opts.query != "" && res.OK {
			q, err := queryBody(ctx, out.Body, opts.query)
			if err != nil {
				return shared.NewInputError("invalid --query", err)
			}
			out.Result = q
		}
	}
	if !res.OK {
		out.Error = res.Err.Error()
		out.Kind = res.Kind().String()
	}

	if shared.GetJSON() {
		if err := shared.EmitJSON(cmd.OutOrStdout(), out); err != nil {
			return err
		}
	} else if err := printText(cmd.OutOrStdout(), out, opts.query != "" && res.OK); err != nil {
		return err
	}

	if res.OK {
		return nil
	}
	if res.Kind() == operation.KindTransport {
		return shared.NewTransportError("request failed", res.Err)
	}
	return shared.NewExecutionError("request failed", res.Err)
}

// queryBody runs expr over body, which may already be redacted.
func queryBody(ctx context.Context, body any, expr string) (any, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	resp, err := httpclient.NewResponse(200, raw, nil)
	if err != nil {
		return nil, err
	}
	return resp.Query(ctx, expr)
}

func printText(w io.Writer, out result, queried bool) error {
	s := shared.NewStyler(w)

	if queried {
		return writeValue(w, out.Result)
	}

	if out.Status != 0 {
		fmt.Fprintf(w, "%s  %s %s\n", s.Status(out.Status), s.Header(out.Method), out.Path)
	} else {
		fmt.Fprintf(w, "%s\n", s.Error(out.Method+" "+out.Path))
	}
	fmt.Fprintln(w, s.Label(fmt.Sprintf("service=%s correlation_id=%s", out.Service, out.CorrelationID)))

	if out.Status != 0 {
		if err := writeValue(w, out.Body); err != nil {
			return err
		}
	}
	return nil
}

// writeValue prints strings bare and everything else as indented JSON.
func writeValue(w io.Writer, v any) error {
	if s, ok := v.(string); ok {
		_, err := fmt.Fprintln(w, s)
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, strings.TrimRight(string(data), "\n"))
	return err
}
