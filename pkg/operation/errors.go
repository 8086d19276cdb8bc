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
	"errors"
	"fmt"
)

// ErrNotImplemented is returned when an operation has no Call of its own.
var ErrNotImplemented = errors.New("operation does not implement Call")

// ErrNoResult is reported when Call returns a failed Result without an error,
// usually a zero Result{}.
var ErrNoResult = errors.New("operation returned no result")

// Kind classifies why an invocation failed.
type Kind string

const (
	// KindNone is reported for successful results.
	KindNone Kind = ""

	// KindBusiness is an error produced by the operation's own logic.
	KindBusiness Kind = "business"

	// KindTransport is an I/O failure from an HTTP client or similar.
	KindTransport Kind = "transport"

	// KindNotImplemented means the operation never defined Call.
	KindNotImplemented Kind = "not_implemented"

	// KindPanic means Call panicked and was recovered by the executor.
	KindPanic Kind = "panic"
)

// String returns the kind name, or "none" for KindNone.
func (k Kind) String() string {
	if k == KindNone {
		return "none"
	}
	return string(k)
}

// transportFailure is implemented by errors that originate in a transport.
type transportFailure interface {
	TransportFailure() bool
}

// Classify returns the Kind for err. A nil error is KindNone.
func Classify(err error) Kind {
	if err == nil {
		return KindNone
	}

	var panicErr *PanicError
	if errors.As(err, &panicErr) {
		return KindPanic
	}

	if errors.Is(err, ErrNotImplemented) {
		return KindNotImplemented
	}

	var tf transportFailure
	if errors.As(err, &tf) && tf.TransportFailure() {
		return KindTransport
	}

	return KindBusiness
}

// PanicError wraps a value recovered from a panicking operation.
type PanicError struct {
	// Value is what was passed to panic.
	Value any

	// Stack is the goroutine stack captured at recovery.
	Stack []byte
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap returns the panic value when it is itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
