package httpclient

import (
	"bytes"
	"encoding/json"
	"net/http"
)

// emptyBody stands in for RawBody when the server sent nothing.
const emptyBody = "{}"

// Response is a normalized HTTP response.
type Response struct {
	// Status is the HTTP status code.
	Status int

	// RawBody is the body as received, or "{}" when there was none.
	RawBody string

	// Body is the decoded JSON body. An absent body decodes to an empty map.
	Body any

	// Headers are the response headers.
	Headers http.Header
}

// NewResponse builds a Response from a status, raw body and headers.
//
// A body that is empty or only whitespace yields RawBody "{}" and an empty
// map. Any other body must be valid JSON; otherwise the returned Response
// carries Status, RawBody and Headers and the error is a *ParseError.
func NewResponse(status int, raw []byte, headers http.Header) (*Response, error) {
	if headers == nil {
		headers = http.Header{}
	}
	resp := &Response{Status: status, Headers: headers}

	if len(bytes.TrimSpace(raw)) == 0 {
		resp.RawBody = emptyBody
		resp.Body = map[string]any{}
		return resp, nil
	}

	resp.RawBody = string(raw)
	var body any
	if err := json.Unmarshal(raw, &body); err != nil {
		return resp, newParseError(status, resp.RawBody, err)
	}
	resp.Body = body
	return resp, nil
}

// Success reports whether Status is in the 2xx range.
func (r *Response) Success() bool {
	return r.Status >= 200 && r.Status <= 299
}

// Map returns Body as a JSON object, or nil when the body is not an object.
func (r *Response) Map() map[string]any {
	m, _ := r.Body.(map[string]any)
	return m
}

// Decode unmarshals RawBody into v.
func (r *Response) Decode(v any) error {
	return json.Unmarshal([]byte(r.RawBody), v)
}
