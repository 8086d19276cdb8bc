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
Package tracing carries correlation ids and OpenTelemetry trace context
for cosmos.

# Correlation IDs

Every operation invocation has a correlation id. The executor stores it in
the context; HTTP clients send it as X-Correlation-ID and add it to their
log lines:

	ctx = tracing.ToContext(ctx, tracing.NewCorrelationID())
	id := tracing.FromContextOrEmpty(ctx)

# Spans

NewProvider installs a global SDK tracer provider. Outgoing requests made
inside a span carry a W3C traceparent header. NewStdoutProvider prints
finished spans as JSON, which backs the bare CLI --trace flag.
NewExporterProvider also selects the OTLP/HTTP and OTLP/gRPC exporters
for a collector endpoint.
*/
package tracing
