package edunet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// Client is the API facade. Every verb shares the same pipeline:
// pre-flight connectivity check, header construction, retried transport
// attempts and envelope unwrapping. It is safe for concurrent use.
type Client struct {
	baseURL      string
	readTimeout  time.Duration
	writeTimeout time.Duration

	httpClient  *http.Client
	transport   Transport
	middleware  []Middleware
	tracing     bool
	tracingOpts []otelhttp.Option

	retry          RetryConfig
	strategy       BackoffStrategy
	retryNotifiers []func(RetryEvent)
	retryOpts      []RetryOption
	executor       *RetryExecutor

	network     NetworkStatusProvider
	tokenSource oauth2.TokenSource
	headers     http.Header
	limiter     *rate.Limiter
	rateLimit   rate.Limit
	rateBurst   int

	metrics      *MetricsCollector
	debug        *DebugConfig
	logger       Logger
	requestIDGen func() string

	validationError error
}

// New constructs a Client using the provided functional options. A best
// effort validation is performed; an invalid client fails every call with
// the validation error.
func New(options ...Option) *Client {
	client := &Client{
		baseURL:      "http://localhost:5001/api",
		readTimeout:  20 * time.Second,
		writeTimeout: 30 * time.Second,
		httpClient:   &http.Client{},
		retry:        DefaultRetryConfig(),
		strategy:     ExponentialJitter,
		network:      AlwaysOnline{},
		headers:      make(http.Header),
		debug:        DefaultDebugConfig(),
		requestIDGen: newRequestID,
	}

	for _, option := range options {
		option(client)
	}
	if client.debug == nil {
		client.debug = &DebugConfig{}
	}

	if err := client.ValidateConfiguration(); err != nil {
		client.validationError = err
	}

	if client.transport == nil && client.httpClient != nil {
		httpClient := client.httpClient
		if client.tracing {
			traced := *httpClient
			base := traced.Transport
			if base == nil {
				base = http.DefaultTransport
			}
			traced.Transport = otelhttp.NewTransport(base, client.tracingOpts...)
			httpClient = &traced
		}
		client.transport = NewHTTPTransport(httpClient, client.middleware...)
	}

	if client.rateLimit > 0 {
		client.limiter = rate.NewLimiter(client.rateLimit, client.rateBurst)
	}

	opts := []RetryOption{WithBackoffStrategy(client.strategy), WithRetryHook(client.onRetry)}
	for _, fn := range client.retryNotifiers {
		opts = append(opts, WithRetryHook(fn))
	}
	client.executor = NewRetryExecutor(client.retry, append(opts, client.retryOpts...)...)

	return client
}

// Get performs a GET with the read deadline.
func (c *Client) Get(ctx context.Context, endpoint string) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodGet, endpoint, nil)
}

// Post performs a POST with body serialized as JSON.
func (c *Client) Post(ctx context.Context, endpoint string, body any) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodPost, endpoint, body)
}

// Put performs a PUT with body serialized as JSON.
func (c *Client) Put(ctx context.Context, endpoint string, body any) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodPut, endpoint, body)
}

// Patch performs a PATCH with body serialized as JSON.
func (c *Client) Patch(ctx context.Context, endpoint string, body any) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodPatch, endpoint, body)
}

// Delete performs a DELETE.
func (c *Client) Delete(ctx context.Context, endpoint string) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodDelete, endpoint, nil)
}

// Do sends method to endpoint, resolved against the base URL unless it is
// absolute, and returns the unwrapped payload. A nil body sends no body.
func (c *Client) Do(ctx context.Context, method, endpoint string, body any) (json.RawMessage, error) {
	if c.validationError != nil {
		return nil, c.validationError
	}

	start := time.Now()
	requestID := c.requestIDGen()
	label := endpointLabel(endpoint)
	desc := &RequestDescriptor{
		Method:  method,
		URL:     c.resolve(endpoint),
		Timeout: c.timeoutFor(method),
	}

	if !c.network.IsOnline() {
		err := &ClientError{Type: ErrorTypeNoConnection}
		err.Message = localizedMessage(err, 0)
		c.metrics.RecordError(ErrorTypeNoConnection, method, label)
		c.log().Warn("Request skipped, device offline", "requestID", requestID, "method", method, "endpoint", endpoint)
		return nil, c.stamp(err, desc, endpoint, requestID, start)
	}

	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, c.stamp(&ClientError{
				Type:    ErrorTypeValidation,
				Message: "invalid request body",
				Cause:   fmt.Errorf("encode body: %w", err),
			}, desc, endpoint, requestID, start)
		}
		desc.Body = payload
	}

	header, err := c.buildHeaders(requestID)
	if err != nil {
		return nil, c.stamp(err, desc, endpoint, requestID, start)
	}
	desc.Header = header

	if c.debugEnabled(c.debug.LogRequests) {
		c.logger.Debug("Starting request", "requestID", requestID, "method", method, "url", desc.URL, "timeout", desc.Timeout)
	}

	c.metrics.RecordRequestStart(method, label)
	resp, err := c.executor.execute(ctx, desc, func(ctx context.Context, attempt int) (*Response, error) {
		if attempt > 0 {
			c.metrics.RecordRetry(method, label, attempt)
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, &ClientError{Type: ErrorTypeRateLimit, Cause: err}
			}
		}
		return c.transport.RoundTrip(ctx, desc)
	})
	c.metrics.RecordRequestEnd(method, label)

	duration := time.Since(start)
	if err != nil {
		clientErr := c.stamp(err, desc, endpoint, requestID, start)
		c.metrics.RecordRequest(method, label, clientErr.StatusCode, duration)
		c.metrics.RecordError(clientErr.Type, method, label)
		c.log().Error("Request failed", "requestID", requestID, "method", method, "url", desc.URL,
			"type", clientErr.Type, "status", clientErr.StatusCode, "attempt", clientErr.Attempt, "duration", duration)
		return nil, clientErr
	}

	c.metrics.RecordRequest(method, label, resp.StatusCode, duration)
	if c.debugEnabled(c.debug.LogRequests) {
		c.logger.Debug("Request completed", "requestID", requestID, "status", resp.StatusCode, "duration", duration)
	}

	data, err := UnwrapEnvelope(resp.Body)
	if err != nil {
		clientErr := c.stamp(err, desc, endpoint, requestID, start)
		clientErr.StatusCode = resp.StatusCode
		c.metrics.RecordError(clientErr.Type, method, label)
		return nil, clientErr
	}
	return data, nil
}

// OnRetry registers fn to receive a RetryEvent before every backoff sleep.
func (c *Client) OnRetry(fn func(RetryEvent)) {
	c.executor.OnRetry(fn)
}

// BaseURL returns the URL endpoints are resolved against.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Network returns the connectivity provider consulted before each call.
func (c *Client) Network() NetworkStatusProvider {
	return c.network
}

// Metrics returns the metrics collector, or nil when metrics are disabled.
func (c *Client) Metrics() *MetricsCollector {
	return c.metrics
}

func (c *Client) onRetry(event RetryEvent) {
	if c.debugEnabled(c.debug.LogRetries) {
		c.logger.Info("Scheduling retry", "attempt", event.Attempt, "maxRetries", event.MaxRetries,
			"backoff", event.Delay, "method", event.Method, "url", event.URL, "error", event.Err)
	}
}

func (c *Client) buildHeaders(requestID string) (http.Header, error) {
	header := make(http.Header, len(c.headers)+5)
	header.Set("Content-Type", "application/json")
	header.Set("Accept", "application/json")
	header.Set("X-Request-ID", requestID)
	header.Set("X-Client-Version", Version)

	if c.tokenSource != nil {
		tok, err := c.tokenSource.Token()
		if err != nil {
			clientErr := &ClientError{
				Type:       ErrorTypeClient,
				StatusCode: http.StatusUnauthorized,
				Cause:      fmt.Errorf("token: %w", err),
			}
			clientErr.Message = localizedMessage(clientErr, 0)
			return nil, clientErr
		}
		if tok != nil && tok.AccessToken != "" {
			header.Set("Authorization", tok.Type()+" "+tok.AccessToken)
		}
	}

	for k, vs := range c.headers {
		header.Del(k)
		for _, v := range vs {
			header.Add(k, v)
		}
	}
	return header, nil
}

// stamp attaches request context to err, converting it to a *ClientError.
func (c *Client) stamp(err error, desc *RequestDescriptor, endpoint, requestID string, start time.Time) *ClientError {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		stamped := *clientErr
		clientErr = &stamped
	} else {
		clientErr = decorate(err, 0, c.retry.MaxRetries)
	}
	clientErr.RequestID = requestID
	clientErr.Method = desc.Method
	clientErr.URL = desc.URL
	clientErr.Endpoint = endpoint
	clientErr.Duration = time.Since(start)
	if clientErr.MaxRetries == 0 {
		clientErr.MaxRetries = c.retry.MaxRetries
	}
	if clientErr.Timestamp.IsZero() {
		clientErr.Timestamp = time.Now()
	}
	return clientErr
}

func (c *Client) timeoutFor(method string) time.Duration {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return c.readTimeout
	default:
		return c.writeTimeout
	}
}

func (c *Client) resolve(endpoint string) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	if endpoint == "" {
		return c.baseURL
	}
	return strings.TrimRight(c.baseURL, "/") + "/" + strings.TrimLeft(endpoint, "/")
}

func (c *Client) debugEnabled(category bool) bool {
	return c.debug != nil && c.debug.Enabled && category && c.logger != nil
}

func (c *Client) log() Logger {
	return loggerOrNop(c.logger)
}

// endpointLabel strips the query so metric labels stay bounded.
func endpointLabel(endpoint string) string {
	if i := strings.IndexAny(endpoint, "?#"); i >= 0 {
		endpoint = endpoint[:i]
	}
	if endpoint == "" {
		return "/"
	}
	return endpoint
}

func newRequestID() string {
	return uuid.NewString()
}
