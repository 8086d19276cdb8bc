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
	"time"
)

// Operation is a unit of business logic run through an Executor.
type Operation interface {
	Call(ctx context.Context, inv *Invocation) (Result, error)
}

// Named lets an operation choose the identity used in logs and metrics.
type Named interface {
	OperationName() string
}

// Func adapts a plain function to the Operation interface.
type Func func(ctx context.Context, inv *Invocation) (Result, error)

// Call implements Operation.
func (f Func) Call(ctx context.Context, inv *Invocation) (Result, error) {
	return f(ctx, inv)
}

// Base can be embedded by operations. Its Call fails with ErrNotImplemented
// so a type that forgets to define Call fails at its first invocation.
type Base struct{}

// Call implements Operation.
func (Base) Call(_ context.Context, inv *Invocation) (Result, error) {
	name := "operation"
	if inv != nil && inv.Operation != "" {
		name = inv.Operation
	}
	return Result{}, fmt.Errorf("%s: %w", name, ErrNotImplemented)
}

// Invocation holds the state of a single run of an operation.
type Invocation struct {
	// CorrelationID ties every log line of this invocation together.
	CorrelationID string

	// ParentCorrelationID is the enclosing invocation's ID when this one was
	// started from inside another. Empty at the top level.
	ParentCorrelationID string

	// StartTime is when the executor began the invocation.
	StartTime time.Time

	// Operation is the identity used in log lines and metrics.
	Operation string

	// Logger is bound to the operation and correlation ID.
	Logger *slog.Logger
}

// Prefix returns the "[<operation> - <correlation id>]" tag used in log lines.
func (inv *Invocation) Prefix() string {
	return fmt.Sprintf("[%s - %s]", inv.Operation, inv.CorrelationID)
}

type invocationKeyType struct{}

var invocationKey = invocationKeyType{}

func withInvocation(ctx context.Context, inv *Invocation) context.Context {
	return context.WithValue(ctx, invocationKey, inv)
}

// FromContext returns the invocation running on ctx, if any.
func FromContext(ctx context.Context) (*Invocation, bool) {
	if ctx == nil {
		return nil, false
	}
	inv, ok := ctx.Value(invocationKey).(*Invocation)
	return inv, ok
}
