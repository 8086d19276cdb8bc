package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tombee/cosmos/internal/log"
	"github.com/tombee/cosmos/internal/tracing"
	"github.com/tombee/cosmos/pkg/redact"
)

// maxRedirects caps followed redirects.
const maxRedirects = 5

// Client sends requests to one service at a fixed base URL. A Client is safe
// for concurrent use.
type Client struct {
	cfg     Config
	baseURL *url.URL
	http    *http.Client
	logger  *slog.Logger
	keys    redact.KeySource
	rt      http.RoundTripper
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRedaction sets the source of sensitive field names. It is consulted on
// every request, so reloaded configuration applies immediately.
func WithRedaction(keys redact.KeySource) Option {
	return func(c *Client) {
		c.keys = keys
	}
}

// WithRoundTripper replaces the adapter's transport, typically with a stub
// in tests. Header injection and rate limiting still wrap it.
func WithRoundTripper(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.rt = rt
	}
}

// New creates a Client from cfg.
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, invalidConfig("base_url %q: %v", cfg.BaseURL, err)
	}

	c := &Client{
		cfg:     cfg,
		baseURL: base,
		keys:    redact.Keys(nil),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = log.WithComponent(log.OrDefault(c.logger), "httpclient")

	transport := c.rt
	if transport == nil {
		factory, err := lookupAdapter(cfg.Adapter)
		if err != nil {
			return nil, err
		}
		transport, err = factory(cfg)
		if err != nil {
			return nil, fmt.Errorf("adapter %s: %w", cfg.Adapter, err)
		}
	}
	if cfg.RateLimit != nil {
		transport = newRateLimitTransport(transport, cfg.RateLimit)
	}
	transport = newHeaderTransport(transport, cfg.UserAgent)

	c.http = &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}
	return c, nil
}

// Service returns the configured service name.
func (c *Client) Service() string {
	return c.cfg.Service
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// FilterSensitiveData returns payload with configured sensitive fields masked.
func (c *Client) FilterSensitiveData(payload any) any {
	return redact.Filter(payload, c.keys)
}

// Get sends a GET request. payload is logged but never sent.
func (c *Client) Get(ctx context.Context, path string, payload any, headers map[string]string) (*Response, error) {
	return c.Request(ctx, MethodGet, path, payload, headers)
}

// Post sends a POST request with payload as the JSON body.
func (c *Client) Post(ctx context.Context, path string, payload any, headers map[string]string) (*Response, error) {
	return c.Request(ctx, MethodPost, path, payload, headers)
}

// Put sends a PUT request with payload as the JSON body.
func (c *Client) Put(ctx context.Context, path string, payload any, headers map[string]string) (*Response, error) {
	return c.Request(ctx, MethodPut, path, payload, headers)
}

// Patch sends a PATCH request with payload as the JSON body.
func (c *Client) Patch(ctx context.Context, path string, payload any, headers map[string]string) (*Response, error) {
	return c.Request(ctx, MethodPatch, path, payload, headers)
}

// Delete sends a DELETE request with payload as the JSON body.
func (c *Client) Delete(ctx context.Context, path string, payload any, headers map[string]string) (*Response, error) {
	return c.Request(ctx, MethodDelete, path, payload, headers)
}

// Request sends one request and returns the normalized response.
//
// path is resolved against the base URL the way a browser resolves a link:
// a leading slash replaces the base path. For every method but GET the
// payload is JSON-encoded into the body, and a nil payload is sent as {}.
// The request and the response are each logged once at INFO with sensitive
// fields masked.
//
// Transport failures are returned as *TransportError. A body that is not
// valid JSON is returned with a *ParseError alongside the partial Response.
// Non-2xx statuses are not errors; check Response.Success.
func (c *Client) Request(ctx context.Context, method Method, path string, payload any, headers map[string]string) (*Response, error) {
	if !method.Valid() {
		return nil, unsupportedMethod(string(method))
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if headers == nil {
		headers = map[string]string{}
	}

	target, err := c.resolve(path)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if method.HasBody() {
		encoded, err := encodePayload(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s payload: %w", method, path, err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method.String(), target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build %s %s request: %w", method, path, err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if method.HasBody() && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	logURL := redact.URL(&url.URL{Path: target.Path, RawPath: target.RawPath, RawQuery: target.RawQuery}, c.keys)
	logger := c.requestLogger(ctx)

	logger.LogAttrs(ctx, slog.LevelInfo,
		fmt.Sprintf("HTTP Request | %s -- method=%s url=%s headers=%s payload=%s",
			c.cfg.Service, method, logURL,
			formatValue(redact.HeaderMap(headers, c.keys)),
			formatValue(redact.Filter(payload, c.keys)),
		),
		slog.String(log.EventKey, "http_request"),
		slog.String("method", method.String()),
		slog.String("url", logURL),
	)

	start := time.Now()
	httpResp, err := c.http.Do(req)
	if err != nil {
		elapsed := time.Since(start)
		recordRequest(c.cfg.Service, method, 0, elapsed)
		logger.LogAttrs(ctx, slog.LevelWarn,
			fmt.Sprintf("HTTP Request failed | %s -- method=%s url=%s time=%s error=%s",
				c.cfg.Service, method, logURL, formatSeconds(elapsed), err.Error()),
			slog.String(log.EventKey, "http_error"),
			log.Duration("duration", elapsed.Milliseconds()),
			log.Error(err),
		)
		return nil, &TransportError{Service: c.cfg.Service, Method: method, URL: logURL, Err: unwrapURLError(err)}
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	elapsed := time.Since(start)
	recordRequest(c.cfg.Service, method, httpResp.StatusCode, elapsed)
	if err != nil {
		return nil, &TransportError{Service: c.cfg.Service, Method: method, URL: logURL, Err: fmt.Errorf("read body: %w", err)}
	}

	resp, parseErr := NewResponse(httpResp.StatusCode, raw, httpResp.Header)

	loggedBody := formatValue(redact.Filter(resp.Body, c.keys))
	if parseErr != nil {
		loggedBody = strconv.Quote(resp.RawBody)
	}
	logger.LogAttrs(ctx, slog.LevelInfo,
		fmt.Sprintf("HTTP Response | %s -- success=%t status=%d time=%s method=%s url=%s headers=%s body=%s",
			c.cfg.Service, resp.Success(), resp.Status, formatSeconds(elapsed), method, logURL,
			formatValue(flattenHeader(redact.Header(resp.Headers, c.keys))),
			loggedBody,
		),
		slog.String(log.EventKey, "http_response"),
		slog.Int("status", resp.Status),
		slog.Bool("success", resp.Success()),
		log.Duration("duration", elapsed.Milliseconds()),
	)

	if parseErr != nil {
		return resp, parseErr
	}
	return resp, nil
}

// resolve joins path onto the base URL.
func (c *Client) resolve(path string) (*url.URL, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("parse request path %q: %w", path, err)
	}
	return c.baseURL.ResolveReference(ref), nil
}

func (c *Client) requestLogger(ctx context.Context) *slog.Logger {
	logger := log.WithService(c.logger, c.cfg.Service)
	if id := tracing.FromContextOrEmpty(ctx); id != "" {
		logger = log.WithCorrelationID(logger, id.String())
	}
	return logger
}

func encodePayload(payload any) ([]byte, error) {
	switch p := payload.(type) {
	case nil:
		return []byte(emptyBody), nil
	case json.RawMessage:
		return p, nil
	}
	return json.Marshal(payload)
}

// formatValue renders a value compactly for a log line.
func formatValue(v any) string {
	if v == nil {
		return "{}"
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// flattenHeader joins multi-valued headers so log lines stay readable.
func flattenHeader(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) == 1 {
			out[k] = v[0]
			continue
		}
		data, _ := json.Marshal(v)
		out[k] = string(data)
	}
	return out
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}

// unwrapURLError strips the *url.Error wrapper added by http.Client so the
// TransportError message is not repeated.
func unwrapURLError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		return urlErr.Err
	}
	return err
}
