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
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestInjectHTTPHeaders(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx, span := tp.Tracer("test").Start(context.Background(), "parent")
	defer span.End()
	require.True(t, HasTraceContext(ctx))

	req, err := http.NewRequest(http.MethodGet, "https://api.example.com", nil)
	require.NoError(t, err)
	InjectHTTPHeaders(ctx, req)

	traceparent := req.Header.Get("traceparent")
	assert.Contains(t, traceparent, span.SpanContext().TraceID().String())
	assert.Contains(t, traceparent, span.SpanContext().SpanID().String())

	extracted := trace.SpanContextFromContext(ExtractHTTPHeaders(context.Background(), req.Header))
	assert.Equal(t, span.SpanContext().TraceID(), extracted.TraceID())
	assert.True(t, extracted.IsRemote())
}

func TestInjectHTTPHeaders_NoSpan(t *testing.T) {
	assert.False(t, HasTraceContext(context.Background()))

	req, err := http.NewRequest(http.MethodGet, "https://api.example.com", nil)
	require.NoError(t, err)
	InjectHTTPHeaders(context.Background(), req)

	assert.Empty(t, req.Header.Get("traceparent"))
}
