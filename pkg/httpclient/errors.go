package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrUnsupportedMethod is returned for verbs outside GET/POST/PUT/PATCH/DELETE.
	ErrUnsupportedMethod = errors.New("unsupported HTTP method")

	// ErrInvalidConfig is wrapped by every configuration validation error.
	ErrInvalidConfig = errors.New("invalid http client config")

	// ErrUnknownAdapter is returned when Config.Adapter names no registered adapter.
	ErrUnknownAdapter = errors.New("unknown adapter")
)

func unsupportedMethod(m string) error {
	return fmt.Errorf("%w: %q", ErrUnsupportedMethod, m)
}

func invalidConfig(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// TransportError reports a request that never produced a complete response:
// connection failures, timeouts, cancellations or a body that could not be
// read. It unwraps to the underlying cause.
type TransportError struct {
	Service string
	Method  Method
	URL     string
	Err     error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %s %s: %v", e.Service, e.Method, e.URL, e.Err)
}

// Unwrap returns the underlying transport error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// TransportFailure marks the error as an I/O failure for operation.Classify.
func (e *TransportError) TransportFailure() bool {
	return true
}

// Timeout reports whether the failure was a deadline or network timeout.
func (e *TransportError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

// ParseError reports a response body that is present but is not valid JSON.
type ParseError struct {
	Status int
	Body   string
	Err    error
}

// maxParseErrorBody caps the body excerpt kept on a ParseError.
const maxParseErrorBody = 256

func newParseError(status int, body string, err error) *ParseError {
	if len(body) > maxParseErrorBody {
		body = body[:maxParseErrorBody] + "..."
	}
	return &ParseError{Status: status, Body: body, Err: err}
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("parse response body (status %d): %v", e.Status, e.Err)
}

// Unwrap returns the JSON decoding error.
func (e *ParseError) Unwrap() error {
	return e.Err
}
