// Package httpclient sends JSON requests to a single service and returns a
// normalized Response.
//
// Each Client is bound to a base URL and a service name. Every request is
// logged twice at INFO, once before sending and once after the response
// arrives, with the payload, headers and body passed through package redact
// so configured sensitive fields never reach the logs.
//
// # Usage
//
//	client, err := httpclient.New(httpclient.Config{
//	    BaseURL: "https://api.example.com",
//	    Service: "ExampleService",
//	}, httpclient.WithRedaction(redact.Keys{"password", "token"}))
//	if err != nil {
//	    return err
//	}
//
//	resp, err := client.Post(ctx, "/users", map[string]any{"email": "a@example.com"}, nil)
//	if err != nil {
//	    return err // *TransportError or *ParseError
//	}
//	if !resp.Success() {
//	    ...
//	}
//
// # Adapters
//
// Config.Adapter selects the transport underneath the client:
//   - net_http (default): pooled connections, TLS 1.2 minimum
//   - rate_limited: net_http behind a token bucket (requires RateLimit)
//   - oauth2: client-credentials bearer tokens
//   - aws_sigv4: AWS Signature Version 4 signing
//
// Additional adapters can be added with RegisterAdapter. Whatever the
// adapter, the client sets User-Agent when absent and forwards the
// correlation ID found on the request context as X-Correlation-ID.
//
// # Errors
//
// Non-2xx statuses are returned as ordinary responses. Connection failures,
// timeouts and cancellations surface as *TransportError, which unwraps to
// the cause and is classified as a transport failure by package operation.
// There are no retries.
package httpclient
