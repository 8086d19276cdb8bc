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

package operation

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tombee/cosmos/internal/log"
	"github.com/tombee/cosmos/internal/tracing"
)

const tracerName = "github.com/tombee/cosmos/pkg/operation"

// timestampLayout renders start and completion times in log lines.
const timestampLayout = "2006-01-02 15:04:05"

// Executor runs operations. It holds configuration only and is safe for
// concurrent use.
type Executor struct {
	logger *slog.Logger
	now    func() time.Time
	tracer trace.Tracer
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithLogger sets the base logger. Defaults to slog.Default() at call time.
func WithLogger(logger *slog.Logger) ExecutorOption {
	return func(e *Executor) {
		e.logger = logger
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) ExecutorOption {
	return func(e *Executor) {
		e.now = now
	}
}

// WithTracer sets the tracer used for invocation spans. Defaults to the
// global provider's tracer.
func WithTracer(tracer trace.Tracer) ExecutorOption {
	return func(e *Executor) {
		e.tracer = tracer
	}
}

// NewExecutor creates an Executor.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var defaultExecutor = NewExecutor()

// Default returns the package-level executor used by Invoke.
func Default() *Executor {
	return defaultExecutor
}

// InvokeOption adjusts a single invocation.
type InvokeOption func(*invokeConfig)

type invokeConfig struct {
	correlationID string
	name          string
}

// WithCorrelationID uses id instead of the context's or a generated one.
func WithCorrelationID(id string) InvokeOption {
	return func(c *invokeConfig) {
		c.correlationID = id
	}
}

// WithName sets the operation identity for types that do not implement Named.
func WithName(name string) InvokeOption {
	return func(c *invokeConfig) {
		c.name = name
	}
}

// Invoke runs op on the default executor.
func Invoke(ctx context.Context, op Operation, opts ...InvokeOption) Result {
	return defaultExecutor.Invoke(ctx, op, opts...)
}

// Call constructs an operation from args with newOp and invokes it. A nil
// executor means the default one.
func Call[A any](ctx context.Context, e *Executor, newOp func(A) Operation, args A, opts ...InvokeOption) Result {
	if e == nil {
		e = defaultExecutor
	}
	return e.Invoke(ctx, newOp(args), opts...)
}

// Invoke runs op and always returns a Result.
//
// The invocation logs a "Started" line, runs Call, then logs either
// "Completed" with the duration or "Failed" with the error message. A
// returned error or a panic becomes Failure(err) with no extra data. A
// Failure returned by the operation itself is passed through unchanged; one
// without an error is reported as failed with ErrNoResult.
//
// A nested invocation gets its own correlation ID unless one is passed with
// WithCorrelationID or placed on ctx by the caller. The enclosing
// invocation's ID is kept as ParentCorrelationID.
func (e *Executor) Invoke(ctx context.Context, op Operation, opts ...InvokeOption) Result {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg := invokeConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	id, parent := resolveCorrelationID(ctx, cfg.correlationID)
	inv := &Invocation{
		CorrelationID:       id,
		ParentCorrelationID: parent,
		StartTime:           e.now(),
		Operation:           operationName(op, cfg.name),
	}
	inv.Logger = log.WithOperation(log.OrDefault(e.logger), inv.Operation, inv.CorrelationID)
	if parent != "" {
		inv.Logger = inv.Logger.With(slog.String("parent_correlation_id", parent))
	}

	ctx = tracing.ToContext(ctx, tracing.CorrelationID(inv.CorrelationID))
	ctx = withInvocation(ctx, inv)

	ctx, span := e.startSpan(ctx, inv)
	defer span.End()

	inv.Logger.LogAttrs(ctx, slog.LevelInfo,
		fmt.Sprintf("%s Started at %s", inv.Prefix(), inv.StartTime.Format(timestampLayout)),
		slog.String(log.EventKey, "started"),
	)

	if op == nil {
		return e.fail(ctx, span, inv, fmt.Errorf("%s: nil operation: %w", inv.Operation, ErrNotImplemented))
	}

	res, err := run(ctx, op, inv)
	if err != nil {
		return e.fail(ctx, span, inv, err)
	}
	if !res.OK && res.Err == nil {
		failed := e.fail(ctx, span, inv, fmt.Errorf("%s: %w", inv.Operation, ErrNoResult))
		failed.Extra = res.Extra
		return failed
	}

	end := e.now()
	duration := end.Sub(inv.StartTime)
	inv.Logger.LogAttrs(ctx, slog.LevelInfo,
		fmt.Sprintf("%s Completed at %s. Duration: %s seconds",
			inv.Prefix(), end.Format(timestampLayout), formatSeconds(duration)),
		slog.String(log.EventKey, "completed"),
		log.Duration("duration", duration.Milliseconds()),
		slog.Bool("success", res.OK),
	)

	outcome := outcomeSuccess
	if !res.OK {
		outcome = outcomeFailure
		span.SetAttributes(attribute.String("operation.failure_kind", res.Kind().String()))
	}
	span.SetAttributes(attribute.String("operation.outcome", outcome))
	recordMetrics(inv.Operation, outcome, duration)

	return res
}

// fail logs and records an invocation that returned an error or panicked.
func (e *Executor) fail(ctx context.Context, span trace.Span, inv *Invocation, err error) Result {
	duration := e.now().Sub(inv.StartTime)
	kind := Classify(err)

	attrs := []slog.Attr{
		slog.String(log.EventKey, "failed"),
		slog.String("kind", kind.String()),
		log.Error(err),
	}
	if p, ok := err.(*PanicError); ok {
		attrs = append(attrs, slog.String("stack", string(p.Stack)))
	}
	inv.Logger.LogAttrs(ctx, slog.LevelError,
		fmt.Sprintf("%s Failed with error: %s", inv.Prefix(), err.Error()),
		attrs...,
	)

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(
		attribute.String("operation.outcome", outcomeError),
		attribute.String("operation.failure_kind", kind.String()),
	)
	recordMetrics(inv.Operation, outcomeError, duration)

	return Failure(err)
}

func (e *Executor) startSpan(ctx context.Context, inv *Invocation) (context.Context, trace.Span) {
	tracer := e.tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	attrs := []attribute.KeyValue{
		attribute.String("operation.name", inv.Operation),
		attribute.String("correlation.id", inv.CorrelationID),
	}
	if inv.ParentCorrelationID != "" {
		attrs = append(attrs, attribute.String("correlation.parent_id", inv.ParentCorrelationID))
	}
	return tracer.Start(ctx, "operation.invoke", trace.WithAttributes(attrs...))
}

// run calls op, turning a panic into a *PanicError.
func run(ctx context.Context, op Operation, inv *Invocation) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{}
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return op.Call(ctx, inv)
}

// resolveCorrelationID returns the ID for a new invocation and the ID of the
// invocation enclosing it on ctx, if any. An ID the executor itself placed on
// ctx for the enclosing invocation is never reused.
func resolveCorrelationID(ctx context.Context, explicit string) (id, parent string) {
	fromCtx := tracing.FromContextOrEmpty(ctx).String()
	if outer, ok := FromContext(ctx); ok {
		parent = outer.CorrelationID
		if fromCtx == parent {
			fromCtx = ""
		}
	}

	switch {
	case explicit != "":
		return explicit, parent
	case fromCtx != "":
		return fromCtx, parent
	}
	return uuid.NewString(), parent
}

// operationName picks the identity: Named, then the WithName option, then
// the Go type name without the pointer.
func operationName(op Operation, override string) string {
	if named, ok := op.(Named); ok {
		if name := named.OperationName(); name != "" {
			return name
		}
	}
	if override != "" {
		return override
	}
	if op == nil {
		return "<nil>"
	}

	t := reflect.TypeOf(op)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() != "" {
		return t.Name()
	}
	return t.String()
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}
