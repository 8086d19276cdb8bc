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

// Package config loads the cosmos host configuration: logging, the
// redaction key set and the HTTP services clients can be built for.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tombee/cosmos/internal/log"
	"github.com/tombee/cosmos/internal/tracing"
	cosmoserrors "github.com/tombee/cosmos/pkg/errors"
	"github.com/tombee/cosmos/pkg/httpclient"
)

var (
	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("config: invalid configuration")
)

// Config is the complete cosmos configuration.
type Config struct {
	Log LogConfig `yaml:"log" json:"log,omitempty"`

	// FilterParams are the field names masked in logged payloads,
	// headers and bodies.
	FilterParams []string `yaml:"filter_parameters" json:"filter_parameters,omitempty"`

	// Services maps a service name to the settings of its HTTP client.
	Services map[string]ServiceConfig `yaml:"services,omitempty" json:"services,omitempty"`

	// Tracing selects where invocation and request spans are exported.
	Tracing TracingConfig `yaml:"tracing,omitempty" json:"tracing,omitempty"`
}

// TracingConfig configures span export. An empty Exporter disables tracing
// unless the CLI --trace flag enables it.
type TracingConfig struct {
	// Exporter is one of stdout, otlp or otlp-grpc.
	Exporter string `yaml:"exporter,omitempty" json:"exporter,omitempty"`

	// Endpoint is the collector host:port for the OTLP exporters.
	Endpoint string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`

	// URLPath overrides /v1/traces for the otlp exporter.
	URLPath string `yaml:"url_path,omitempty" json:"url_path,omitempty"`

	Insecure bool              `yaml:"insecure,omitempty" json:"insecure,omitempty"`
	Headers  map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of trace, debug, info, warn, error.
	Level string `yaml:"level" json:"level,omitempty"`

	// Format is json or text.
	Format string `yaml:"format" json:"format,omitempty"`

	// AddSource adds file and line to every record.
	AddSource bool `yaml:"add_source,omitempty" json:"add_source,omitempty"`
}

// ServiceConfig describes one remote service.
type ServiceConfig struct {
	BaseURL   string           `yaml:"base_url" json:"base_url,omitempty"`
	Adapter   string           `yaml:"adapter,omitempty" json:"adapter,omitempty"`
	Timeout   time.Duration    `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	UserAgent string           `yaml:"user_agent,omitempty" json:"user_agent,omitempty"`
	RateLimit *RateLimitConfig `yaml:"rate_limit,omitempty" json:"rate_limit,omitempty"`
	OAuth2    *OAuth2Config    `yaml:"oauth2,omitempty" json:"oauth2,omitempty"`
	AWS       *AWSConfig       `yaml:"aws,omitempty" json:"aws,omitempty"`
}

// RateLimitConfig is a token bucket for one service.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second,omitempty"`
	Burst             int     `yaml:"burst,omitempty" json:"burst,omitempty"`
}

// OAuth2Config holds client-credentials settings. Secrets should use
// ${VAR} references rather than literal values.
type OAuth2Config struct {
	TokenURL       string            `yaml:"token_url" json:"token_url,omitempty"`
	ClientID       string            `yaml:"client_id" json:"client_id,omitempty"`
	ClientSecret   string            `yaml:"client_secret" json:"client_secret,omitempty"`
	Scopes         []string          `yaml:"scopes,omitempty" json:"scopes,omitempty"`
	EndpointParams map[string]string `yaml:"endpoint_params,omitempty" json:"endpoint_params,omitempty"`
}

// AWSConfig holds SigV4 signing settings.
type AWSConfig struct {
	Service string `yaml:"service" json:"service,omitempty"`
	Region  string `yaml:"region" json:"region,omitempty"`
}

// defaultFilterParameters is used when the file does not set filter_parameters.
var defaultFilterParameters = []string{
	"password",
	"password_confirmation",
	"secret",
	"token",
	"access_token",
	"refresh_token",
	"api_key",
	"client_secret",
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		FilterParams: slices.Clone(defaultFilterParameters),
		Services:     map[string]ServiceConfig{},
	}
}

// Load reads configuration from path, then applies environment overrides
// and validates the result. An empty path yields the defaults plus
// environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			return nil, &cosmoserrors.ConfigError{
				Key:    "config_file",
				Reason: fmt.Sprintf("failed to load from %s", path),
				Cause:  err,
			}
		}
	}

	cfg.applyDefaults()
	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, &cosmoserrors.ConfigError{
			Key:    "validation",
			Reason: "configuration validation failed",
			Cause:  err,
		}
	}

	return cfg, nil
}

// envRefPattern matches ${VAR} references.
var envRefPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvRefs replaces ${VAR} with the variable's value. Bare $ is left
// alone so literal dollar signs survive.
func expandEnvRefs(s string) string {
	return envRefPattern.ReplaceAllStringFunc(s, func(ref string) string {
		return os.Getenv(ref[2 : len(ref)-1])
	})
}

func (c *Config) loadFromFile(path string) error {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal([]byte(expandEnvRefs(string(data))), c); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	return nil
}

// applyDefaults fills zero values left by a minimal file.
func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Services == nil {
		c.Services = map[string]ServiceConfig{}
	}
}

// loadFromEnv applies environment overrides.
func (c *Config) loadFromEnv() {
	if val := os.Getenv("COSMOS_LOG_LEVEL"); val != "" {
		c.Log.Level = strings.ToLower(val)
	} else if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = strings.ToLower(val)
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = strings.ToLower(val)
	}
	if val := os.Getenv("LOG_SOURCE"); val != "" {
		c.Log.AddSource = val == "1" || strings.ToLower(val) == "true"
	}

	// COSMOS_FILTER_PARAMETERS adds to the file's list.
	if val := os.Getenv("COSMOS_FILTER_PARAMETERS"); val != "" {
		for _, p := range strings.Split(val, ",") {
			p = strings.TrimSpace(p)
			if p != "" && !slices.Contains(c.FilterParams, p) {
				c.FilterParams = append(c.FilterParams, p)
			}
		}
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	var errs []string

	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "warning": true, "error": true}
	if !validLevels[c.Log.Level] {
		errs = append(errs, fmt.Sprintf("log.level must be one of [trace, debug, info, warn, error], got %q", c.Log.Level))
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Log.Format] {
		errs = append(errs, fmt.Sprintf("log.format must be one of [json, text], got %q", c.Log.Format))
	}

	for i, p := range c.FilterParams {
		if strings.TrimSpace(p) == "" {
			errs = append(errs, fmt.Sprintf("filter_parameters[%d] must not be empty", i))
		}
	}

	if c.Tracing.Exporter != "" && !slices.Contains(tracing.Exporters(), c.Tracing.Exporter) {
		errs = append(errs, fmt.Sprintf("tracing.exporter must be one of %v, got %q", tracing.Exporters(), c.Tracing.Exporter))
	}

	adapters := httpclient.Adapters()
	for _, name := range c.ServiceNames() {
		svc := c.Services[name]
		cc := svc.ClientConfig(name)
		if err := cc.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("services.%s: %v", name, err))
		}
		if svc.Adapter != "" && !slices.Contains(adapters, svc.Adapter) {
			errs = append(errs, fmt.Sprintf("services.%s.adapter %q is not one of %v", name, svc.Adapter, adapters))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w:\n  - %s", ErrInvalidConfig, strings.Join(errs, "\n  - "))
	}

	return nil
}

// ServiceNames returns the configured service names in sorted order.
func (c *Config) ServiceNames() []string {
	names := make([]string, 0, len(c.Services))
	for name := range c.Services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Service returns the named service or a *errors.NotFoundError.
func (c *Config) Service(name string) (ServiceConfig, error) {
	svc, ok := c.Services[name]
	if !ok {
		return ServiceConfig{}, &cosmoserrors.NotFoundError{Resource: "service", ID: name, Known: c.ServiceNames()}
	}
	return svc, nil
}

// FilterParameters returns the redaction key set. It satisfies
// redact.KeySource.
func (c *Config) FilterParameters() []string {
	return c.FilterParams
}

// LoggerConfig converts the log section for internal/log.
func (c *Config) LoggerConfig() *log.Config {
	cfg := log.DefaultConfig()
	cfg.Level = c.Log.Level
	cfg.Format = log.Format(c.Log.Format)
	cfg.AddSource = c.Log.AddSource
	return cfg
}

// OTLPConfig converts the tracing section for internal/tracing.
func (t TracingConfig) OTLPConfig() tracing.OTLPConfig {
	return tracing.OTLPConfig{
		Endpoint: t.Endpoint,
		URLPath:  t.URLPath,
		Insecure: t.Insecure,
		Headers:  t.Headers,
	}
}

// ClientConfig converts the service settings into an httpclient.Config.
// name becomes the service name used in log lines.
func (s ServiceConfig) ClientConfig(name string) httpclient.Config {
	cfg := httpclient.Config{
		BaseURL:   s.BaseURL,
		Service:   name,
		Adapter:   s.Adapter,
		Timeout:   s.Timeout,
		UserAgent: s.UserAgent,
	}
	if s.RateLimit != nil {
		cfg.RateLimit = &httpclient.RateLimitConfig{
			RequestsPerSecond: s.RateLimit.RequestsPerSecond,
			Burst:             s.RateLimit.Burst,
		}
	}
	if s.OAuth2 != nil {
		cfg.OAuth2 = &httpclient.OAuth2Config{
			TokenURL:       s.OAuth2.TokenURL,
			ClientID:       s.OAuth2.ClientID,
			ClientSecret:   s.OAuth2.ClientSecret,
			Scopes:         slices.Clone(s.OAuth2.Scopes),
			EndpointParams: s.OAuth2.EndpointParams,
		}
	}
	if s.AWS != nil {
		cfg.AWS = &httpclient.AWSConfig{
			Service: s.AWS.Service,
			Region:  s.AWS.Region,
		}
	}
	return cfg
}
