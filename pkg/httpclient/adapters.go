package httpclient

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// AdapterFactory builds the innermost RoundTripper for a client. cfg has
// defaults applied and has passed Validate.
type AdapterFactory func(cfg Config) (http.RoundTripper, error)

var (
	adaptersMu sync.RWMutex
	adapters   = map[string]AdapterFactory{
		AdapterNetHTTP:     netHTTPAdapter,
		AdapterRateLimited: rateLimitedAdapter,
		AdapterOAuth2:      oauth2Adapter,
		AdapterAWSSigV4:    awsSigV4Adapter,
	}
)

// RegisterAdapter makes an adapter available under name, replacing any
// existing registration.
func RegisterAdapter(name string, factory AdapterFactory) {
	if name == "" || factory == nil {
		panic("httpclient: RegisterAdapter requires a name and a factory")
	}
	adaptersMu.Lock()
	defer adaptersMu.Unlock()
	adapters[name] = factory
}

// Adapters lists registered adapter names in sorted order.
func Adapters() []string {
	adaptersMu.RLock()
	defer adaptersMu.RUnlock()
	names := make([]string, 0, len(adapters))
	for name := range adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func lookupAdapter(name string) (AdapterFactory, error) {
	adaptersMu.RLock()
	defer adaptersMu.RUnlock()
	factory, ok := adapters[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAdapter, name)
	}
	return factory, nil
}

func netHTTPAdapter(cfg Config) (http.RoundTripper, error) {
	return newBaseTransport(cfg.Timeout), nil
}

// rateLimitedAdapter is net_http that insists on a rate_limit section. The
// limiter itself is layered on by New.
func rateLimitedAdapter(cfg Config) (http.RoundTripper, error) {
	if cfg.RateLimit == nil {
		return nil, invalidConfig("adapter %s requires rate_limit", AdapterRateLimited)
	}
	return newBaseTransport(cfg.Timeout), nil
}

// oauth2Adapter attaches client-credentials bearer tokens. Tokens are fetched
// lazily on first use and reused until they expire.
func oauth2Adapter(cfg Config) (http.RoundTripper, error) {
	oc := cfg.OAuth2
	if oc == nil {
		return nil, invalidConfig("adapter %s requires an oauth2 section", AdapterOAuth2)
	}
	if oc.TokenURL == "" {
		return nil, invalidConfig("oauth2.token_url is required")
	}
	if oc.ClientID == "" {
		return nil, invalidConfig("oauth2.client_id is required")
	}
	if oc.ClientSecret == "" {
		return nil, invalidConfig("oauth2.client_secret is required")
	}

	base := newBaseTransport(cfg.Timeout)
	return newOAuth2Transport(base, oc, cfg.Timeout), nil
}

func newOAuth2Transport(base http.RoundTripper, oc *OAuth2Config, timeout time.Duration) *oauth2.Transport {
	cc := &clientcredentials.Config{
		ClientID:     oc.ClientID,
		ClientSecret: oc.ClientSecret,
		TokenURL:     oc.TokenURL,
		Scopes:       oc.Scopes,
	}
	if len(oc.EndpointParams) > 0 {
		cc.EndpointParams = make(map[string][]string, len(oc.EndpointParams))
		for k, v := range oc.EndpointParams {
			cc.EndpointParams[k] = []string{v}
		}
	}

	// The token endpoint is called through the same base transport.
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{
		Transport: base,
		Timeout:   timeout,
	})

	return &oauth2.Transport{
		Source: oauth2.ReuseTokenSource(nil, cc.TokenSource(tokenCtx)),
		Base:   base,
	}
}
