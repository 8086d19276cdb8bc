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

package request

import (
	"context"
	"errors"
	"fmt"

	"github.com/tombee/cosmos/pkg/httpclient"
	"github.com/tombee/cosmos/pkg/operation"
)

// Operation sends one request through a service client. A 2xx response
// succeeds with the *httpclient.Response as payload. Any other status, or
// a body that is not JSON, fails with the response attached as extra data.
// Transport failures are returned as errors.
type Operation struct {
	Client  *httpclient.Client
	Method  httpclient.Method
	Path    string
	Payload any
	Headers map[string]string
}

// OperationName implements operation.Named.
func (o *Operation) OperationName() string {
	return "ServiceRequest"
}

// Call implements operation.Operation.
func (o *Operation) Call(ctx context.Context, _ *operation.Invocation) (operation.Result, error) {
	resp, err := o.Client.Request(ctx, o.Method, o.Path, o.Payload, o.Headers)
	if err != nil {
		var parseErr *httpclient.ParseError
		if errors.As(err, &parseErr) && resp != nil {
			return operation.Failure(err, resp), nil
		}
		return operation.Result{}, err
	}

	if !resp.Success() {
		return operation.Failure(
			fmt.Errorf("%s %s %s returned status %d", o.Client.Service(), o.Method, o.Path, resp.Status),
			resp,
		), nil
	}
	return operation.Success(resp), nil
}

// responseOf extracts the response from either side of a Result.
func responseOf(res operation.Result) *httpclient.Response {
	if res.OK {
		resp, _ := res.Value().(*httpclient.Response)
		return resp
	}
	for _, extra := range res.Extra {
		if resp, ok := extra.(*httpclient.Response); ok {
			return resp
		}
	}
	return nil
}
