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
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/tombee/cosmos/internal/config"
	"github.com/tombee/cosmos/internal/log"
	"github.com/tombee/cosmos/internal/tracing"
	"github.com/tombee/cosmos/pkg/httpclient"
	"github.com/tombee/cosmos/pkg/operation"
)

// Runtime is the per-command wiring of configuration, logging, tracing
// and the operation executor.
type Runtime struct {
	Store    *config.Store
	Logger   *slog.Logger
	Executor *operation.Executor

	provider *tracing.Provider
}

// NewRuntime builds a Runtime from the persistent flags. Logs and spans
// go to the command's stderr.
func NewRuntime(cmd *cobra.Command) (*Runtime, error) {
	f := GetFlags()

	path, err := config.ResolvePath(f.Config)
	if err != nil {
		return nil, NewConfigError("failed to resolve config path", err)
	}

	bootCfg := log.FromEnv()
	bootCfg.Output = cmd.ErrOrStderr()
	store, err := config.NewStore(path, log.New(bootCfg))
	if err != nil {
		return nil, NewConfigError("failed to load configuration", err)
	}

	logCfg := store.Config().LoggerConfig()
	if f.LogLevel != "" {
		logCfg.Level = f.LogLevel
	}
	if f.LogFormat != "" {
		logCfg.Format = log.Format(f.LogFormat)
	}
	logCfg.Output = cmd.ErrOrStderr()
	logger := log.New(logCfg)

	rt := &Runtime{Store: store, Logger: logger}

	exporter := f.Trace
	if exporter == "" {
		exporter = store.Config().Tracing.Exporter
	}
	if exporter != "" {
		v, _, _ := GetVersion()
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		provider, err := tracing.NewExporterProvider(ctx, exporter, "cosmos", v,
			cmd.ErrOrStderr(), store.Config().Tracing.OTLPConfig())
		if err != nil {
			return nil, NewInputError("invalid --trace value", err)
		}
		rt.provider = provider
	}

	// The executor falls back to the global tracer, which NewProvider installs.
	rt.Executor = operation.NewExecutor(operation.WithLogger(logger))
	return rt, nil
}

// Config returns the current configuration.
func (r *Runtime) Config() *config.Config {
	return r.Store.Config()
}

// Client builds an HTTP client for a configured service. Redaction reads
// the live store so reloaded filter_parameters apply.
func (r *Runtime) Client(service string) (*httpclient.Client, error) {
	svc, err := r.Config().Service(service)
	if err != nil {
		return nil, NewInputError("unknown service", err)
	}

	client, err := httpclient.New(svc.ClientConfig(service),
		httpclient.WithLogger(r.Logger),
		httpclient.WithRedaction(r.Store),
	)
	if err != nil {
		return nil, NewConfigError("failed to create client for "+service, err)
	}
	return client, nil
}

// Close flushes spans when tracing is active.
func (r *Runtime) Close(ctx context.Context) error {
	if r.provider == nil {
		return nil
	}
	return r.provider.Shutdown(ctx)
}
