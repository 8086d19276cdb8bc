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

package tracing

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc/credentials"
)

// Exporter names accepted by NewExporterProvider.
const (
	ExporterStdout   = "stdout"
	ExporterOTLP     = "otlp"
	ExporterOTLPGRPC = "otlp-grpc"
)

// Exporters lists the supported exporter names.
func Exporters() []string {
	return []string{ExporterStdout, ExporterOTLP, ExporterOTLPGRPC}
}

// OTLPConfig configures the OTLP exporters. An empty Endpoint falls back to
// the OTEL_EXPORTER_OTLP_ENDPOINT environment variable and then the SDK
// default (localhost:4318 for HTTP, localhost:4317 for gRPC).
type OTLPConfig struct {
	// Endpoint is host:port without a scheme.
	Endpoint string

	// URLPath overrides /v1/traces. HTTP only.
	URLPath string

	// Insecure disables TLS.
	Insecure bool

	// Headers are sent with every export, typically an API key.
	Headers map[string]string
}

// NewOTLPHTTPExporter creates an OTLP/HTTP span exporter.
func NewOTLPHTTPExporter(ctx context.Context, cfg OTLPConfig) (sdktrace.SpanExporter, error) {
	opts := []otlptracehttp.Option{
		otlptracehttp.WithRetry(otlptracehttp.RetryConfig{Enabled: false}),
	}
	if cfg.Endpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpoint(cfg.Endpoint))
	}
	if cfg.URLPath != "" {
		opts = append(opts, otlptracehttp.WithURLPath(cfg.URLPath))
	}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	} else {
		opts = append(opts, otlptracehttp.WithTLSClientConfig(&tls.Config{
			MinVersion: tls.VersionTLS12,
		}))
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(cfg.Headers))
	}

	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP HTTP exporter: %w", err)
	}
	return exporter, nil
}

// NewOTLPGRPCExporter creates an OTLP/gRPC span exporter. The connection is
// established lazily on the first export.
func NewOTLPGRPCExporter(ctx context.Context, cfg OTLPConfig) (sdktrace.SpanExporter, error) {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithRetry(otlptracegrpc.RetryConfig{Enabled: false}),
	}
	if cfg.Endpoint != "" {
		opts = append(opts, otlptracegrpc.WithEndpoint(cfg.Endpoint))
	}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	} else {
		opts = append(opts, otlptracegrpc.WithTLSCredentials(credentials.NewTLS(&tls.Config{
			MinVersion: tls.VersionTLS12,
		})))
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(cfg.Headers))
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP gRPC exporter: %w", err)
	}
	return exporter, nil
}

// NewExporterProvider creates a provider for the named exporter. stdout
// writes spans to w synchronously; the OTLP exporters batch and send on
// Shutdown or when the batch fills.
func NewExporterProvider(ctx context.Context, name, serviceName, version string, w io.Writer, cfg OTLPConfig) (*Provider, error) {
	switch name {
	case ExporterStdout:
		return NewStdoutProvider(serviceName, version, w)
	case ExporterOTLP:
		exporter, err := NewOTLPHTTPExporter(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return NewProvider(serviceName, version, sdktrace.WithBatcher(exporter))
	case ExporterOTLPGRPC:
		exporter, err := NewOTLPGRPCExporter(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return NewProvider(serviceName, version, sdktrace.WithBatcher(exporter))
	}
	return nil, fmt.Errorf("unknown trace exporter %q (want one of %v)", name, Exporters())
}
