package httpclient

import (
	"net/url"
	"time"
)

// Adapter names understood by the built-in registry.
const (
	AdapterNetHTTP     = "net_http"
	AdapterRateLimited = "rate_limited"
	AdapterOAuth2      = "oauth2"
	AdapterAWSSigV4    = "aws_sigv4"
)

// Config configures a Client.
type Config struct {
	// BaseURL is the fixed base every request path is resolved against.
	// Required. Must be http or https with a host.
	BaseURL string

	// Service names the remote system in log lines and metrics. Required.
	Service string

	// Adapter selects the underlying transport. Default: net_http.
	Adapter string

	// Timeout bounds each request end to end. Default: 30s. Must be >= 0.
	Timeout time.Duration

	// UserAgent is sent when the caller does not set one.
	// Default: cosmos-http-client/1.0
	UserAgent string

	// RateLimit throttles outgoing requests. Required by the rate_limited
	// adapter and honored by every other adapter when set.
	RateLimit *RateLimitConfig

	// OAuth2 configures the oauth2 adapter.
	OAuth2 *OAuth2Config

	// AWS configures the aws_sigv4 adapter.
	AWS *AWSConfig
}

// RateLimitConfig is a token bucket.
type RateLimitConfig struct {
	// RequestsPerSecond is the refill rate. Must be > 0.
	RequestsPerSecond float64

	// Burst is the bucket size. Default: 1.
	Burst int
}

// OAuth2Config configures the client-credentials flow.
type OAuth2Config struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string

	// EndpointParams are extra form values sent to the token endpoint.
	EndpointParams map[string]string
}

// AWSConfig configures SigV4 request signing. Credentials come from the
// default AWS credential chain.
type AWSConfig struct {
	// Service is the signing name, e.g. "execute-api".
	Service string

	// Region is the signing region, e.g. "us-east-1".
	Region string
}

// DefaultConfig returns a Config with defaults applied. BaseURL and Service
// still need to be set.
func DefaultConfig() Config {
	return Config{
		Adapter:   AdapterNetHTTP,
		Timeout:   30 * time.Second,
		UserAgent: "cosmos-http-client/1.0",
	}
}

// withDefaults fills zero values from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Adapter == "" {
		c.Adapter = d.Adapter
	}
	if c.Timeout == 0 {
		c.Timeout = d.Timeout
	}
	if c.UserAgent == "" {
		c.UserAgent = d.UserAgent
	}
	if c.RateLimit != nil && c.RateLimit.Burst == 0 {
		rl := *c.RateLimit
		rl.Burst = 1
		c.RateLimit = &rl
	}
	return c
}

// Validate checks the configuration. Adapter-specific sections are checked
// by the adapter when the client is built.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return invalidConfig("base_url is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return invalidConfig("base_url %q: %v", c.BaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return invalidConfig("base_url must start with http:// or https://, got %q", c.BaseURL)
	}
	if u.Host == "" {
		return invalidConfig("base_url %q has no host", c.BaseURL)
	}

	if c.Service == "" {
		return invalidConfig("service is required")
	}

	if c.Timeout < 0 {
		return invalidConfig("timeout cannot be negative, got %v", c.Timeout)
	}

	if c.RateLimit != nil {
		if c.RateLimit.RequestsPerSecond <= 0 {
			return invalidConfig("rate_limit.requests_per_second must be > 0, got %v", c.RateLimit.RequestsPerSecond)
		}
		if c.RateLimit.Burst < 0 {
			return invalidConfig("rate_limit.burst must be >= 0, got %d", c.RateLimit.Burst)
		}
	}

	return nil
}
