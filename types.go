package edunet

import (
	"context"
	"net/http"
	"time"
)

// Option configures a Client.
type Option func(*Client)

// Middleware wraps the underlying HTTP round trip of every attempt.
type Middleware func(req *http.Request, next RoundTripper) (*http.Response, error)

// RoundTripper represents the HTTP transport interface seen by middleware.
type RoundTripper interface {
	RoundTrip(*http.Request) (*http.Response, error)
}

// RoundTripperFunc is a helper type for middleware.
type RoundTripperFunc func(*http.Request) (*http.Response, error)

// RoundTrip implements RoundTripper.
func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// RequestDescriptor describes one HTTP attempt. It is not modified by the
// transport and may be reused across retries.
type RequestDescriptor struct {
	Method  string
	URL     string
	Header  http.Header
	Body    []byte
	Timeout time.Duration
}

// Response is a fully read 2xx HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Transport issues a single HTTP attempt. Implementations return a
// *ClientError for non-2xx statuses, timeouts and network failures.
type Transport interface {
	RoundTrip(ctx context.Context, req *RequestDescriptor) (*Response, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, req *RequestDescriptor) (*Response, error)

// RoundTrip implements Transport.
func (f TransportFunc) RoundTrip(ctx context.Context, req *RequestDescriptor) (*Response, error) {
	return f(ctx, req)
}
