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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/tombee/cosmos/internal/log"
	"github.com/tombee/cosmos/internal/tracing"
)

// logLine is one decoded JSON log entry.
type logLine map[string]any

func (l logLine) msg() string {
	s, _ := l["msg"].(string)
	return s
}

func (l logLine) level() string {
	s, _ := l["level"].(string)
	return s
}

func parseLines(t *testing.T, buf *bytes.Buffer) []logLine {
	t.Helper()
	var lines []logLine
	for _, raw := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if raw == "" {
			continue
		}
		var line logLine
		require.NoError(t, json.Unmarshal([]byte(raw), &line), "line: %s", raw)
		lines = append(lines, line)
	}
	return lines
}

// steppingClock returns start, then start+step, start+2*step and so on.
func steppingClock(start time.Time, step time.Duration) func() time.Time {
	var mu sync.Mutex
	next := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now := next
		next = next.Add(step)
		return now
	}
}

func newTestExecutor(opts ...ExecutorOption) (*Executor, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := log.New(&log.Config{Level: "debug", Format: log.FormatJSON, Output: &buf})
	return NewExecutor(append([]ExecutorOption{WithLogger(logger)}, opts...)...), &buf
}

type createUser struct {
	Base
	email string
}

func (op *createUser) Call(_ context.Context, inv *Invocation) (Result, error) {
	if op.email == "" {
		return Result{}, errors.New("email is required")
	}
	inv.Logger.Info("creating user")
	return Success(op.email, 42), nil
}

type forgetful struct {
	Base
}

type namedOp struct{}

func (namedOp) OperationName() string { return "Users::Create" }

func (namedOp) Call(context.Context, *Invocation) (Result, error) {
	return Success(), nil
}

type fakeTransportError struct{}

func (fakeTransportError) Error() string          { return "connection refused" }
func (fakeTransportError) TransportFailure() bool { return true }

func TestInvoke_Success(t *testing.T) {
	start := time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)
	exec, buf := newTestExecutor(WithClock(steppingClock(start, 1500*time.Millisecond)))

	res := exec.Invoke(context.Background(), &createUser{email: "a@example.com"}, WithCorrelationID("abc"))

	require.True(t, res.Succeeded())
	assert.Equal(t, []any{"a@example.com", 42}, res.Payload)
	assert.Equal(t, "a@example.com", res.Value())
	assert.NoError(t, res.Error())
	assert.Equal(t, KindNone, res.Kind())

	lines := parseLines(t, buf)
	require.Len(t, lines, 3)
	assert.Equal(t, "[createUser - abc] Started at 2025-03-14 15:09:26", lines[0].msg())
	assert.Equal(t, "creating user", lines[1].msg())
	assert.Equal(t, "[createUser - abc] Completed at 2025-03-14 15:09:27. Duration: 1.5 seconds", lines[2].msg())
	for _, line := range lines {
		assert.Equal(t, "INFO", line.level())
		assert.Equal(t, "createUser", line[log.OperationKey])
		assert.Equal(t, "abc", line[log.CorrelationIDKey])
	}
}

func TestInvoke_StartedAndCompletedOnly(t *testing.T) {
	exec, buf := newTestExecutor()

	res := exec.Invoke(context.Background(), Func(func(context.Context, *Invocation) (Result, error) {
		return Success("P"), nil
	}), WithName("Quiet"))

	assert.Equal(t, Success("P"), res)

	lines := parseLines(t, buf)
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0].msg(), "Started at")
	assert.Contains(t, lines[1].msg(), "Completed at")
	assert.Equal(t, "started", lines[0][log.EventKey])
	assert.Equal(t, "completed", lines[1][log.EventKey])
}

func TestInvoke_BusinessError(t *testing.T) {
	exec, buf := newTestExecutor()

	res := exec.Invoke(context.Background(), &createUser{}, WithCorrelationID("id-1"))

	require.True(t, res.Failed())
	assert.EqualError(t, res.Err, "email is required")
	assert.Empty(t, res.Extra)
	assert.Equal(t, KindBusiness, res.Kind())

	lines := parseLines(t, buf)
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0].msg(), "Started at")
	assert.Equal(t, "[createUser - id-1] Failed with error: email is required", lines[1].msg())
	assert.Equal(t, "ERROR", lines[1].level())
	assert.Equal(t, "business", lines[1]["kind"])
	for _, line := range lines {
		assert.NotContains(t, line.msg(), "Completed")
	}
}

func TestInvoke_FailureResultIsCompleted(t *testing.T) {
	exec, buf := newTestExecutor()
	cause := errors.New("card declined")

	res := exec.Invoke(context.Background(), Func(func(context.Context, *Invocation) (Result, error) {
		return Failure(cause, "order-7"), nil
	}), WithName("Charge"))

	assert.Equal(t, Failure(cause, "order-7"), res)

	lines := parseLines(t, buf)
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1].msg(), "[Charge - ")
	assert.Contains(t, lines[1].msg(), "Completed at")
	assert.Equal(t, false, lines[1]["success"])
}

func TestInvoke_Panic(t *testing.T) {
	exec, buf := newTestExecutor()

	res := exec.Invoke(context.Background(), Func(func(context.Context, *Invocation) (Result, error) {
		panic("boom")
	}), WithName("Exploder"))

	require.True(t, res.Failed())
	assert.Equal(t, KindPanic, res.Kind())

	var panicErr *PanicError
	require.ErrorAs(t, res.Err, &panicErr)
	assert.Equal(t, "boom", panicErr.Value)
	assert.NotEmpty(t, panicErr.Stack)

	lines := parseLines(t, buf)
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1].msg(), "Failed with error: panic: boom")
	assert.Equal(t, "panic", lines[1]["kind"])
}

func TestInvoke_PanicWithError(t *testing.T) {
	exec, _ := newTestExecutor()
	sentinel := errors.New("sentinel")

	res := exec.Invoke(context.Background(), Func(func(context.Context, *Invocation) (Result, error) {
		panic(sentinel)
	}))

	assert.ErrorIs(t, res.Err, sentinel)
	assert.Equal(t, KindPanic, res.Kind())
}

func TestInvoke_NotImplemented(t *testing.T) {
	exec, buf := newTestExecutor()

	res := exec.Invoke(context.Background(), &forgetful{})

	require.True(t, res.Failed())
	assert.ErrorIs(t, res.Err, ErrNotImplemented)
	assert.Equal(t, KindNotImplemented, res.Kind())
	assert.Contains(t, res.Err.Error(), "forgetful")

	lines := parseLines(t, buf)
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1].msg(), "Failed with error: forgetful: operation does not implement Call")
}

func TestInvoke_NilOperation(t *testing.T) {
	exec, _ := newTestExecutor()

	res := exec.Invoke(context.Background(), nil)

	assert.Equal(t, KindNotImplemented, res.Kind())
}

func TestInvoke_TransportKind(t *testing.T) {
	exec, _ := newTestExecutor()

	res := exec.Invoke(context.Background(), Func(func(context.Context, *Invocation) (Result, error) {
		return Result{}, fmt.Errorf("fetch users: %w", fakeTransportError{})
	}))

	assert.Equal(t, KindTransport, res.Kind())
}

func TestInvoke_CorrelationID(t *testing.T) {
	exec, _ := newTestExecutor()

	capture := func(ctx context.Context, opts ...InvokeOption) (*Invocation, context.Context) {
		var got *Invocation
		var gotCtx context.Context
		exec.Invoke(ctx, Func(func(ctx context.Context, inv *Invocation) (Result, error) {
			got, gotCtx = inv, ctx
			return Success(), nil
		}), opts...)
		return got, gotCtx
	}

	t.Run("option wins", func(t *testing.T) {
		ctx := tracing.ToContext(context.Background(), "from-ctx")
		inv, _ := capture(ctx, WithCorrelationID("explicit"))
		assert.Equal(t, "explicit", inv.CorrelationID)
	})

	t.Run("inherits from context", func(t *testing.T) {
		inv, _ := capture(tracing.ToContext(context.Background(), "from-ctx"))
		assert.Equal(t, "from-ctx", inv.CorrelationID)
	})

	t.Run("generates uuid", func(t *testing.T) {
		inv, ctx := capture(context.Background())
		_, err := uuid.Parse(inv.CorrelationID)
		assert.NoError(t, err)
		assert.Equal(t, inv.CorrelationID, tracing.FromContextOrEmpty(ctx).String())

		fromCtx, ok := FromContext(ctx)
		require.True(t, ok)
		assert.Same(t, inv, fromCtx)
	})
}

func TestInvoke_NestedGetsOwnCorrelationID(t *testing.T) {
	exec, buf := newTestExecutor()
	var outer, inner *Invocation
	var innerCtxID string

	exec.Invoke(context.Background(), Func(func(ctx context.Context, inv *Invocation) (Result, error) {
		outer = inv
		return exec.Invoke(ctx, Func(func(ctx context.Context, inv *Invocation) (Result, error) {
			inner = inv
			innerCtxID = tracing.FromContextOrEmpty(ctx).String()
			return Success(), nil
		}), WithName("Inner")), nil
	}), WithName("Outer"))

	require.NotNil(t, outer)
	require.NotNil(t, inner)
	assert.NotEqual(t, outer.CorrelationID, inner.CorrelationID)
	_, err := uuid.Parse(inner.CorrelationID)
	assert.NoError(t, err)
	assert.Equal(t, inner.CorrelationID, innerCtxID)
	assert.Empty(t, outer.ParentCorrelationID)
	assert.Equal(t, outer.CorrelationID, inner.ParentCorrelationID)

	var sawParent bool
	for _, line := range parseLines(t, buf) {
		if strings.HasPrefix(line.msg(), "[Inner - ") {
			assert.Equal(t, outer.CorrelationID, line["parent_correlation_id"])
			sawParent = true
		}
	}
	assert.True(t, sawParent)
}

func TestInvoke_NestedKeepsCallerCorrelationID(t *testing.T) {
	exec, _ := newTestExecutor()
	var viaOption, viaContext *Invocation

	exec.Invoke(context.Background(), Func(func(ctx context.Context, _ *Invocation) (Result, error) {
		exec.Invoke(ctx, Func(func(_ context.Context, inv *Invocation) (Result, error) {
			viaOption = inv
			return Success(), nil
		}), WithCorrelationID("child-explicit"))

		exec.Invoke(tracing.ToContext(ctx, "child-ctx"), Func(func(_ context.Context, inv *Invocation) (Result, error) {
			viaContext = inv
			return Success(), nil
		}))
		return Success(), nil
	}), WithCorrelationID("parent"))

	require.NotNil(t, viaOption)
	require.NotNil(t, viaContext)
	assert.Equal(t, "child-explicit", viaOption.CorrelationID)
	assert.Equal(t, "parent", viaOption.ParentCorrelationID)
	assert.Equal(t, "child-ctx", viaContext.CorrelationID)
	assert.Equal(t, "parent", viaContext.ParentCorrelationID)
}

func TestInvoke_EmptyResult(t *testing.T) {
	exec, buf := newTestExecutor()

	res := exec.Invoke(context.Background(), Func(func(context.Context, *Invocation) (Result, error) {
		return Result{}, nil
	}), WithName("Forgetful"))

	assert.True(t, res.Failed())
	assert.ErrorIs(t, res.Err, ErrNoResult)
	assert.Equal(t, KindBusiness, res.Kind())

	lines := parseLines(t, buf)
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1].msg(), "Failed with error: Forgetful: operation returned no result")
	assert.Equal(t, "ERROR", lines[1].level())
}

func TestInvoke_FailureWithoutErrorKeepsExtra(t *testing.T) {
	exec, _ := newTestExecutor()

	res := exec.Invoke(context.Background(), Func(func(context.Context, *Invocation) (Result, error) {
		return Failure(nil, "detail"), nil
	}))

	assert.ErrorIs(t, res.Err, ErrNoResult)
	assert.Equal(t, []any{"detail"}, res.Extra)
}

func TestInvoke_ConcurrentInvocationsAreIsolated(t *testing.T) {
	exec, _ := newTestExecutor()

	const n = 32
	var wg sync.WaitGroup
	errs := make(chan error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			want := fmt.Sprintf("req-%d", i)
			exec.Invoke(context.Background(), Func(func(ctx context.Context, inv *Invocation) (Result, error) {
				start := inv.StartTime
				time.Sleep(time.Millisecond)
				if inv.CorrelationID != want {
					errs <- fmt.Errorf("invocation %d saw correlation id %q", i, inv.CorrelationID)
				}
				if got := tracing.FromContextOrEmpty(ctx).String(); got != want {
					errs <- fmt.Errorf("invocation %d saw context id %q", i, got)
				}
				if !inv.StartTime.Equal(start) {
					errs <- fmt.Errorf("invocation %d start time changed", i)
				}
				return Success(), nil
			}), WithCorrelationID(want))
		}(i)
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestOperationName(t *testing.T) {
	tests := []struct {
		name     string
		op       Operation
		override string
		want     string
	}{
		{"pointer type", &createUser{}, "", "createUser"},
		{"named wins", namedOp{}, "Other", "Users::Create"},
		{"override", &createUser{}, "Users::Signup", "Users::Signup"},
		{"func", Func(nil), "", "Func"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, operationName(tt.op, tt.override))
		})
	}
}

func TestCall_ConstructsFromArgs(t *testing.T) {
	exec, buf := newTestExecutor()

	res := Call(context.Background(), exec, func(email string) Operation {
		return &createUser{email: email}
	}, "b@example.com")

	assert.Equal(t, "b@example.com", res.Value())
	assert.Contains(t, buf.String(), "[createUser - ")
}

func TestInvoke_DefaultExecutor(t *testing.T) {
	res := Invoke(context.Background(), namedOp{})
	assert.True(t, res.Succeeded())
	assert.NotNil(t, Default())
}

func TestInvoke_Metrics(t *testing.T) {
	exec, _ := newTestExecutor()
	name := "MetricsCount"

	ok := Func(func(context.Context, *Invocation) (Result, error) { return Success(), nil })
	soft := Func(func(context.Context, *Invocation) (Result, error) { return Failure(errors.New("no")), nil })
	hard := Func(func(context.Context, *Invocation) (Result, error) { return Result{}, errors.New("no") })

	exec.Invoke(context.Background(), ok, WithName(name))
	exec.Invoke(context.Background(), ok, WithName(name))
	exec.Invoke(context.Background(), soft, WithName(name))
	exec.Invoke(context.Background(), hard, WithName(name))

	assert.Equal(t, 2.0, testutil.ToFloat64(invocationsTotal.WithLabelValues(name, outcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(invocationsTotal.WithLabelValues(name, outcomeFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(invocationsTotal.WithLabelValues(name, outcomeError)))
}

func TestInvoke_Span(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	exec, _ := newTestExecutor(WithTracer(tp.Tracer("test")))

	exec.Invoke(context.Background(), &createUser{email: "x"}, WithCorrelationID("span-ok"))
	exec.Invoke(context.Background(), &createUser{}, WithCorrelationID("span-err"))

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	attrs := func(s sdktrace.ReadOnlySpan) map[string]string {
		out := map[string]string{}
		for _, kv := range s.Attributes() {
			out[string(kv.Key)] = kv.Value.Emit()
		}
		return out
	}

	assert.Equal(t, "operation.invoke", spans[0].Name())
	assert.Equal(t, "createUser", attrs(spans[0])["operation.name"])
	assert.Equal(t, "span-ok", attrs(spans[0])["correlation.id"])
	assert.Equal(t, "success", attrs(spans[0])["operation.outcome"])
	assert.Equal(t, codes.Unset, spans[0].Status().Code)

	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, "email is required", spans[1].Status().Description)
	assert.Equal(t, "business", attrs(spans[1])["operation.failure_kind"])
}
