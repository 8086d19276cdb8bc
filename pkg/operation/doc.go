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

// Package operation runs units of business logic behind a uniform boundary.
//
// An operation is any type implementing Operation. The Executor is the only
// supported way to run one: it assigns a correlation ID, logs the start and
// end of the invocation, records metrics and a span, and converts returned
// errors and panics into a Failure result so callers always receive a Result.
//
// A typical operation:
//
//	type CreateUser struct {
//		operation.Base
//		Email string
//	}
//
//	func (op *CreateUser) Call(ctx context.Context, inv *operation.Invocation) (operation.Result, error) {
//		if op.Email == "" {
//			return operation.Failure(errors.New("email is required")), nil
//		}
//		inv.Logger.Info("creating user")
//		return operation.Success(op.Email), nil
//	}
//
//	res := operation.Invoke(ctx, &CreateUser{Email: "a@example.com"})
//
// Per-invocation state lives on the Invocation passed to Call and on the
// context, never on the executor, so one Executor can serve any number of
// concurrent and nested invocations.
package operation
