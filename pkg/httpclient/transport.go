package httpclient

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/tombee/cosmos/internal/tracing"
)

// newBaseTransport returns a pooled transport with TLS 1.2 minimum.
func newBaseTransport(timeout time.Duration) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
			MaxVersion: tls.VersionTLS13,
		},

		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,

		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// headerTransport sets User-Agent and propagates the correlation ID.
type headerTransport struct {
	base      http.RoundTripper
	userAgent string
}

func newHeaderTransport(base http.RoundTripper, userAgent string) *headerTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &headerTransport{base: base, userAgent: userAgent}
}

// RoundTrip implements http.RoundTripper.
func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	needUA := t.userAgent != "" && req.Header.Get("User-Agent") == ""
	needID := tracing.FromContextOrEmpty(req.Context()) != "" && req.Header.Get(tracing.HeaderCorrelationID) == ""
	needTrace := tracing.HasTraceContext(req.Context())
	if !needUA && !needID && !needTrace {
		return t.base.RoundTrip(req)
	}

	// RoundTrippers must not modify the caller's request.
	out := req.Clone(req.Context())
	if needUA {
		out.Header.Set("User-Agent", t.userAgent)
	}
	tracing.InjectIntoRequest(out.Context(), out)
	if needTrace {
		tracing.InjectHTTPHeaders(out.Context(), out)
	}
	return t.base.RoundTrip(out)
}

// rateLimitTransport waits on a token bucket before each request.
type rateLimitTransport struct {
	base    http.RoundTripper
	limiter *rate.Limiter
}

func newRateLimitTransport(base http.RoundTripper, cfg *RateLimitConfig) *rateLimitTransport {
	return &rateLimitTransport{
		base:    base,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
	}
}

// RoundTrip implements http.RoundTripper. A cancelled context while waiting
// is returned as the request error.
func (t *rateLimitTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.base.RoundTrip(req)
}
