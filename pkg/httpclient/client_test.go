package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/cosmos/internal/log"
	"github.com/tombee/cosmos/internal/tracing"
	"github.com/tombee/cosmos/pkg/operation"
	"github.com/tombee/cosmos/pkg/redact"
)

// recorded is what the test server saw for one request.
type recorded struct {
	Method  string
	Path    string
	Body    string
	Headers http.Header
}

// recordingServer replies with status and body and records every request.
func recordingServer(t *testing.T, status int, body string) (*httptest.Server, func() []recorded) {
	t.Helper()
	var mu sync.Mutex
	var seen []recorded

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		seen = append(seen, recorded{Method: r.Method, Path: r.URL.RequestURI(), Body: string(data), Headers: r.Header.Clone()})
		mu.Unlock()
		if body != "" {
			w.Header().Set("Content-Type", "application/json")
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	return srv, func() []recorded {
		mu.Lock()
		defer mu.Unlock()
		return append([]recorded(nil), seen...)
	}
}

func newTestClient(t *testing.T, baseURL string, opts ...Option) (*Client, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := log.New(&log.Config{Level: "info", Format: log.FormatJSON, Output: &buf})
	client, err := New(Config{BaseURL: baseURL, Service: "ExampleService"}, append([]Option{WithLogger(logger)}, opts...)...)
	require.NoError(t, err)
	return client, &buf
}

func logMessages(t *testing.T, buf *bytes.Buffer) []string {
	t.Helper()
	var msgs []string
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		msg, _ := entry["msg"].(string)
		msgs = append(msgs, msg)
	}
	return msgs
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func TestRequest_PostSendsJSONBody(t *testing.T) {
	srv, seen := recordingServer(t, http.StatusCreated, `{"id":1}`)
	client, _ := newTestClient(t, srv.URL)

	resp, err := client.Post(context.Background(), "/x", map[string]any{"a": 1}, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.Status)

	reqs := seen()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodPost, reqs[0].Method)
	assert.Equal(t, "/x", reqs[0].Path)
	assert.JSONEq(t, `{"a":1}`, reqs[0].Body)
	assert.Equal(t, "application/json", reqs[0].Headers.Get("Content-Type"))
}

func TestRequest_GetSendsNoBody(t *testing.T) {
	srv, seen := recordingServer(t, http.StatusOK, `{}`)
	client, _ := newTestClient(t, srv.URL)

	_, err := client.Get(context.Background(), "/x", map[string]any{"a": 1}, nil)
	require.NoError(t, err)

	reqs := seen()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodGet, reqs[0].Method)
	assert.Empty(t, reqs[0].Body)
	assert.Empty(t, reqs[0].Headers.Get("Content-Type"))
}

func TestRequest_BodyMethods(t *testing.T) {
	for _, method := range []Method{MethodPost, MethodPut, MethodPatch, MethodDelete} {
		t.Run(method.String(), func(t *testing.T) {
			srv, seen := recordingServer(t, http.StatusOK, `{}`)
			client, _ := newTestClient(t, srv.URL)

			_, err := client.Request(context.Background(), method, "/items/1", map[string]any{"name": "n"}, nil)
			require.NoError(t, err)

			reqs := seen()
			require.Len(t, reqs, 1)
			assert.Equal(t, method.String(), reqs[0].Method)
			assert.JSONEq(t, `{"name":"n"}`, reqs[0].Body)
		})
	}
}

func TestRequest_NilPayloadSendsEmptyObject(t *testing.T) {
	srv, seen := recordingServer(t, http.StatusOK, ``)
	client, _ := newTestClient(t, srv.URL)

	_, err := client.Delete(context.Background(), "/items/1", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "{}", seen()[0].Body)
}

func TestRequest_CallerHeaders(t *testing.T) {
	srv, seen := recordingServer(t, http.StatusOK, `{}`)
	client, _ := newTestClient(t, srv.URL)

	_, err := client.Post(context.Background(), "/x", map[string]any{}, map[string]string{
		"Content-Type": "application/vnd.api+json",
		"X-Tenant":     "acme",
	})
	require.NoError(t, err)

	h := seen()[0].Headers
	assert.Equal(t, "application/vnd.api+json", h.Get("Content-Type"))
	assert.Equal(t, "acme", h.Get("X-Tenant"))
	assert.Equal(t, "cosmos-http-client/1.0", h.Get("User-Agent"))
}

func TestRequest_UnsupportedMethod(t *testing.T) {
	called := false
	client, _ := newTestClient(t, "https://api.example.com", WithRoundTripper(roundTripFunc(func(*http.Request) (*http.Response, error) {
		called = true
		return nil, errors.New("unexpected")
	})))

	resp, err := client.Request(context.Background(), Method("HEAD"), "/x", nil, nil)

	assert.Nil(t, resp)
	assert.ErrorIs(t, err, ErrUnsupportedMethod)
	assert.False(t, called)
}

func TestRequest_NormalizesResponse(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantBody    any
		wantRaw     string
		wantSuccess bool
	}{
		{"json object", http.StatusOK, `{"message":"success"}`, map[string]any{"message": "success"}, `{"message":"success"}`, true},
		{"empty body", http.StatusNoContent, ``, map[string]any{}, `{}`, true},
		{"json array", http.StatusOK, `[1,2]`, []any{1.0, 2.0}, `[1,2]`, true},
		{"not found", http.StatusNotFound, `{"error":"missing"}`, map[string]any{"error": "missing"}, `{"error":"missing"}`, false},
		{"server error", http.StatusInternalServerError, ``, map[string]any{}, `{}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := recordingServer(t, tt.status, tt.body)
			client, _ := newTestClient(t, srv.URL)

			resp, err := client.Get(context.Background(), "/x", nil, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.Status)
			assert.Equal(t, tt.wantBody, resp.Body)
			assert.Equal(t, tt.wantRaw, resp.RawBody)
			assert.Equal(t, tt.wantSuccess, resp.Success())
		})
	}
}

func TestRequest_MalformedBody(t *testing.T) {
	srv, _ := recordingServer(t, http.StatusBadGateway, `<html>bad gateway</html>`)
	client, _ := newTestClient(t, srv.URL)

	resp, err := client.Get(context.Background(), "/x", nil, nil)

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, http.StatusBadGateway, parseErr.Status)
	require.NotNil(t, resp)
	assert.Equal(t, `<html>bad gateway</html>`, resp.RawBody)
	assert.Nil(t, resp.Body)
}

func TestRequest_LogsRequestAndResponse(t *testing.T) {
	srv, _ := recordingServer(t, http.StatusOK, `{"token":"server-secret","status":"ok"}`)
	client, buf := newTestClient(t, srv.URL, WithRedaction(redact.Keys{"password", "token"}))

	_, err := client.Post(context.Background(), "/sessions", map[string]any{
		"username": "user",
		"password": "hunter2",
		"deep":     map[string]any{"token": "t", "foo": "bar"},
	}, map[string]string{"Authorization": "Bearer abc"})
	require.NoError(t, err)

	msgs := logMessages(t, buf)
	require.Len(t, msgs, 2)

	assert.True(t, strings.HasPrefix(msgs[0], "HTTP Request | ExampleService -- method=POST url=/sessions headers="), msgs[0])
	assert.Contains(t, msgs[0], `"password":"[FILTERED]"`)
	assert.Contains(t, msgs[0], `"token":"[FILTERED]"`)
	assert.Contains(t, msgs[0], `"foo":"bar"`)
	assert.Contains(t, msgs[0], `"username":"user"`)
	assert.Contains(t, msgs[0], `"Authorization":"[FILTERED]"`)

	assert.True(t, strings.HasPrefix(msgs[1], "HTTP Response | ExampleService -- success=true status=200 time="), msgs[1])
	assert.Contains(t, msgs[1], "method=POST url=/sessions")
	assert.Contains(t, msgs[1], `"status":"ok"`)

	out := buf.String()
	for _, secret := range []string{"hunter2", "Bearer abc", "server-secret"} {
		assert.NotContains(t, out, secret)
	}
}

func TestRequest_LogsNestedTypedPayloadRedacted(t *testing.T) {
	type login struct {
		User     string `json:"user"`
		Password string `json:"password"`
	}
	srv, seen := recordingServer(t, http.StatusOK, `{}`)
	client, buf := newTestClient(t, srv.URL, WithRedaction(redact.Keys{"password", "token"}))

	_, err := client.Post(context.Background(), "/sessions", map[string]any{
		"login":   login{User: "u", Password: "hunter2"},
		"headers": map[string]string{"token": "typed-map-secret"},
		"items":   []map[string]any{{"token": "slice-secret"}},
	}, nil)
	require.NoError(t, err)

	reqs := seen()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].Body, "hunter2", "the wire payload is not redacted")

	out := buf.String()
	for _, secret := range []string{"hunter2", "typed-map-secret", "slice-secret"} {
		assert.NotContains(t, out, secret)
	}
	assert.Contains(t, logMessages(t, buf)[0], `"user":"u"`)
}

type mutableKeys struct {
	mu   sync.Mutex
	keys []string
}

func (m *mutableKeys) FilterParameters() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.keys
}

func (m *mutableKeys) set(keys ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = keys
}

func TestRequest_RedactionReadFreshEachCall(t *testing.T) {
	srv, _ := recordingServer(t, http.StatusOK, `{}`)
	keys := &mutableKeys{}
	client, buf := newTestClient(t, srv.URL, WithRedaction(keys))

	_, err := client.Post(context.Background(), "/x", map[string]any{"pin": "1234"}, nil)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "1234")

	buf.Reset()
	keys.set("pin")
	_, err = client.Post(context.Background(), "/x", map[string]any{"pin": "1234"}, nil)
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "1234")
}

func TestRequest_TransportError(t *testing.T) {
	cause := errors.New("connection refused")
	client, buf := newTestClient(t, "https://api.example.com", WithRoundTripper(roundTripFunc(func(*http.Request) (*http.Response, error) {
		return nil, cause
	})))

	resp, err := client.Get(context.Background(), "/x", nil, nil)

	assert.Nil(t, resp)
	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.ErrorIs(t, err, cause)
	assert.True(t, transportErr.TransportFailure())
	assert.Equal(t, "ExampleService", transportErr.Service)
	assert.Equal(t, operation.KindTransport, operation.Classify(err))

	msgs := logMessages(t, buf)
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[1], "HTTP Request failed | ExampleService")
}

func TestRequest_ContextCancelled(t *testing.T) {
	srv, seen := recordingServer(t, http.StatusOK, `{}`)
	client, _ := newTestClient(t, srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Get(ctx, "/x", nil, nil)

	assert.ErrorIs(t, err, context.Canceled)
	var transportErr *TransportError
	assert.ErrorAs(t, err, &transportErr)
	assert.Empty(t, seen())
}

func TestRequest_PropagatesCorrelationID(t *testing.T) {
	srv, seen := recordingServer(t, http.StatusOK, `{}`)
	client, buf := newTestClient(t, srv.URL)

	ctx := tracing.ToContext(context.Background(), "corr-1")
	_, err := client.Get(ctx, "/x", nil, nil)
	require.NoError(t, err)

	assert.Equal(t, "corr-1", seen()[0].Headers.Get(tracing.HeaderCorrelationID))
	assert.Contains(t, buf.String(), `"correlation_id":"corr-1"`)
}

func TestRequest_ResolvesAgainstBaseURL(t *testing.T) {
	tests := []struct {
		base string
		path string
		want string
	}{
		{"/api/", "users", "/api/users"},
		{"/api/", "/users", "/users"},
		{"", "users?page=2", "/users?page=2"},
	}

	for _, tt := range tests {
		t.Run(tt.base+tt.path, func(t *testing.T) {
			srv, seen := recordingServer(t, http.StatusOK, `{}`)
			client, _ := newTestClient(t, srv.URL+tt.base)

			_, err := client.Get(context.Background(), tt.path, nil, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, seen()[0].Path)
		})
	}
}

func TestRequest_InsideOperation(t *testing.T) {
	srv, seen := recordingServer(t, http.StatusOK, `{"id":7}`)
	client, _ := newTestClient(t, srv.URL)

	res := operation.Invoke(context.Background(), operation.Func(func(ctx context.Context, _ *operation.Invocation) (operation.Result, error) {
		resp, err := client.Get(ctx, "/users/7", nil, nil)
		if err != nil {
			return operation.Result{}, err
		}
		return operation.Success(resp.Map()["id"]), nil
	}), operation.WithCorrelationID("op-7"), operation.WithName("FetchUser"))

	require.True(t, res.Succeeded())
	assert.Equal(t, 7.0, res.Value())
	assert.Equal(t, "op-7", seen()[0].Headers.Get(tracing.HeaderCorrelationID))
}

func TestRequest_RecordsMetrics(t *testing.T) {
	srv, _ := recordingServer(t, http.StatusOK, `{}`)
	client, _ := newTestClient(t, srv.URL)

	_, err := client.Get(context.Background(), "/x", nil, nil)
	require.NoError(t, err)

	assert.Positive(t, testutil.CollectAndCount(requestDuration, "cosmos_http_request_duration_seconds"))
}

func TestFilterSensitiveData(t *testing.T) {
	client, _ := newTestClient(t, "https://api.example.com", WithRedaction(redact.Keys{"password", "token"}))

	got := client.FilterSensitiveData(map[string]any{
		"password":  "secret",
		"username":  "user",
		"deep_hash": map[string]any{"token": "also a secret", "foo": "bar"},
	})

	assert.Equal(t, map[string]any{
		"password":  "[FILTERED]",
		"username":  "user",
		"deep_hash": map[string]any{"token": "[FILTERED]", "foo": "bar"},
	}, got)
}

func TestClientAccessors(t *testing.T) {
	client, _ := newTestClient(t, "https://api.example.com/v1")
	assert.Equal(t, "ExampleService", client.Service())
	assert.Equal(t, "https://api.example.com/v1", client.BaseURL())
}
