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

// Result is the outcome of one invocation. Exactly one variant is populated:
// a success carries Payload, a failure carries Err and optional Extra data.
type Result struct {
	// OK is the tag: true for success, false for failure.
	OK bool

	// Payload holds the values a successful operation produced.
	Payload []any

	// Err is the failure cause. Nil on success.
	Err error

	// Extra holds additional data attached to a failure.
	Extra []any
}

// Success builds a successful result carrying payload.
func Success(payload ...any) Result {
	return Result{OK: true, Payload: payload}
}

// Failure builds a failed result carrying err and optional extra data.
func Failure(err error, extra ...any) Result {
	return Result{OK: false, Err: err, Extra: extra}
}

// Succeeded reports whether the result is a success.
func (r Result) Succeeded() bool {
	return r.OK
}

// Failed reports whether the result is a failure.
func (r Result) Failed() bool {
	return !r.OK
}

// Error returns the failure cause, or nil for a success.
func (r Result) Error() error {
	if r.OK {
		return nil
	}
	return r.Err
}

// Value returns the first payload element, or nil when there is none.
func (r Result) Value() any {
	if !r.OK || len(r.Payload) == 0 {
		return nil
	}
	return r.Payload[0]
}

// Kind classifies the result. Successes report KindNone.
func (r Result) Kind() Kind {
	if r.OK {
		return KindNone
	}
	return Classify(r.Err)
}
