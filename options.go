package edunet

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// WithBaseURL sets the URL relative endpoints are resolved against.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithToken attaches a static bearer token. An empty token sends no
// Authorization header.
func WithToken(token string) Option {
	return func(c *Client) {
		if token == "" {
			c.tokenSource = nil
			return
		}
		c.tokenSource = oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: token,
			TokenType:   "Bearer",
		})
	}
}

// WithTokenSource reads the bearer token from ts before every call. The
// token is cached until it expires.
func WithTokenSource(ts oauth2.TokenSource) Option {
	return func(c *Client) {
		if ts == nil {
			c.tokenSource = nil
			return
		}
		c.tokenSource = oauth2.ReuseTokenSource(nil, ts)
	}
}

// WithHeader adds a static header to every request, e.g. X-Platform.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.headers.Add(key, value)
	}
}

// WithReadTimeout sets the deadline for GET requests.
func WithReadTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.readTimeout = d
	}
}

// WithWriteTimeout sets the deadline for POST, PUT, PATCH and DELETE requests.
func WithWriteTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.writeTimeout = d
	}
}

// WithMaxRetries sets the maximum number of retry attempts
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		c.retry.MaxRetries = n
	}
}

// WithBaseDelay sets the delay before the first retry
func WithBaseDelay(d time.Duration) Option {
	return func(c *Client) {
		c.retry.BaseDelay = d
	}
}

// WithMaxDelay caps the exponential part of the backoff
func WithMaxDelay(d time.Duration) Option {
	return func(c *Client) {
		c.retry.MaxDelay = d
	}
}

// WithMaxJitter bounds the random amount added to each backoff
func WithMaxJitter(d time.Duration) Option {
	return func(c *Client) {
		c.retry.MaxJitter = d
	}
}

// WithRetryConfig replaces all retry bounds at once.
func WithRetryConfig(cfg RetryConfig) Option {
	return func(c *Client) {
		c.retry = cfg
	}
}

// WithBackoff selects the backoff strategy.
func WithBackoff(strategy BackoffStrategy) Option {
	return func(c *Client) {
		c.strategy = strategy
	}
}

// WithRetryNotifier registers fn to receive a RetryEvent before every
// backoff sleep, e.g. to show "retrying 2/3" in the UI.
func WithRetryNotifier(fn func(RetryEvent)) Option {
	return func(c *Client) {
		if fn != nil {
			c.retryNotifiers = append(c.retryNotifiers, fn)
		}
	}
}

// WithRetryOptions passes options straight to the RetryExecutor.
func WithRetryOptions(opts ...RetryOption) Option {
	return func(c *Client) {
		c.retryOpts = append(c.retryOpts, opts...)
	}
}

// WithNetworkStatus sets the connectivity provider consulted before each call.
func WithNetworkStatus(provider NetworkStatusProvider) Option {
	return func(c *Client) {
		c.network = provider
	}
}

// WithTransport replaces the HTTP transport entirely. Middleware, tracing
// and WithHTTPClient are ignored when a transport is set.
func WithTransport(t Transport) Option {
	return func(c *Client) {
		c.transport = t
	}
}

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithMiddleware adds middleware to the client
func WithMiddleware(middleware ...Middleware) Option {
	return func(c *Client) {
		c.middleware = append(c.middleware, middleware...)
	}
}

// WithTracing instruments outgoing requests with OpenTelemetry spans.
func WithTracing(opts ...otelhttp.Option) Option {
	return func(c *Client) {
		c.tracing = true
		c.tracingOpts = append(c.tracingOpts, opts...)
	}
}

// WithRateLimit limits attempts to rps per second with the given burst.
// Each attempt, retries included, waits for a token.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		c.rateLimit = rate.Limit(rps)
		c.rateBurst = burst
	}
}

// WithMetrics enables Prometheus metrics collection
func WithMetrics() Option {
	return func(c *Client) {
		c.metrics = NewMetricsCollector()
	}
}

// WithMetricsCollector sets a custom metrics collector
func WithMetricsCollector(collector *MetricsCollector) Option {
	return func(c *Client) {
		c.metrics = collector
	}
}

// WithDebug enables debug logging with default configuration
func WithDebug() Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.Enabled = true
	}
}

// WithDebugConfig sets custom debug configuration
func WithDebugConfig(config *DebugConfig) Option {
	return func(c *Client) {
		c.debug = config
	}
}

// WithLogger sets the logger. Warnings and failures are always logged;
// debug records also need WithDebug.
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithSimpleLogger enables debug logging with a simple console logger
func WithSimpleLogger() Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.Enabled = true
		c.logger = NewSimpleLogger()
	}
}

// WithRequestIDGenerator sets the function producing X-Request-ID values.
func WithRequestIDGenerator(gen func() string) Option {
	return func(c *Client) {
		c.requestIDGen = gen
	}
}

// ValidateConfiguration validates the client configuration and returns an error if invalid
func (c *Client) ValidateConfiguration() error {
	var errors []string

	errors = append(errors, c.validateBaseURL()...)
	errors = append(errors, c.validateRetryConfig()...)
	errors = append(errors, c.validateTimeouts()...)
	errors = append(errors, c.validateRateLimitConfig()...)
	errors = append(errors, c.validateDebugConfig()...)
	errors = append(errors, c.validateMiddlewareConfig()...)
	errors = append(errors, c.validateTransportConfig()...)
	errors = append(errors, c.validateExtremeValues()...)

	if len(errors) > 0 {
		return &ClientError{
			Type:    ErrorTypeValidation,
			Message: "configuration validation failed",
			Cause:   fmt.Errorf("validation errors: %v", errors),
		}
	}

	return nil
}

func (c *Client) validateBaseURL() []string {
	u, err := url.Parse(c.baseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return []string{fmt.Sprintf("baseURL must be an absolute http(s) URL, got %q", c.baseURL)}
	}
	return nil
}

func (c *Client) validateRetryConfig() []string {
	var errors []string

	if c.retry.MaxRetries < 0 {
		errors = append(errors, "maxRetries must be non-negative")
	}
	if c.retry.BaseDelay <= 0 {
		errors = append(errors, "baseDelay must be positive")
	}
	if c.retry.MaxDelay < c.retry.BaseDelay {
		errors = append(errors, "maxDelay must be greater than or equal to baseDelay")
	}
	if c.retry.MaxJitter < 0 {
		errors = append(errors, "maxJitter must be non-negative")
	}
	if c.strategy != ExponentialJitter && c.strategy != DecorrelatedJitter {
		errors = append(errors, fmt.Sprintf("unknown backoff strategy %d", c.strategy))
	}

	return errors
}

func (c *Client) validateTimeouts() []string {
	var errors []string

	if c.readTimeout <= 0 {
		errors = append(errors, "readTimeout must be positive")
	}
	if c.writeTimeout <= 0 {
		errors = append(errors, "writeTimeout must be positive")
	}

	return errors
}

func (c *Client) validateRateLimitConfig() []string {
	var errors []string

	if c.rateLimit < 0 {
		errors = append(errors, "rate limit must be non-negative")
	}
	if c.rateLimit > 0 && c.rateBurst <= 0 {
		errors = append(errors, "rate limit burst must be positive")
	}

	return errors
}

func (c *Client) validateDebugConfig() []string {
	var errors []string

	if c.debug != nil && c.debug.Enabled && c.logger == nil {
		errors = append(errors, "logger must be set when debug is enabled")
	}
	if c.requestIDGen == nil {
		errors = append(errors, "request ID generator cannot be nil")
	}

	return errors
}

func (c *Client) validateMiddlewareConfig() []string {
	var errors []string

	for i, middleware := range c.middleware {
		if middleware == nil {
			errors = append(errors, fmt.Sprintf("middleware[%d] cannot be nil", i))
		}
	}

	return errors
}

func (c *Client) validateTransportConfig() []string {
	var errors []string

	if c.transport == nil && c.httpClient == nil {
		errors = append(errors, "HTTP client cannot be nil")
	}
	if c.network == nil {
		errors = append(errors, "network status provider cannot be nil")
	}

	return errors
}

// validateExtremeValues validates that configuration values are within reasonable bounds
func (c *Client) validateExtremeValues() []string {
	var errors []string

	if c.retry.MaxRetries > 100 {
		errors = append(errors, "maxRetries > 100 may cause excessive resource usage")
	}
	if c.retry.MaxDelay > 10*time.Minute {
		errors = append(errors, "maxDelay > 10 minutes may cause very long waits")
	}
	if c.readTimeout > 10*time.Minute || c.writeTimeout > 10*time.Minute {
		errors = append(errors, "timeouts > 10 minutes may cause resource exhaustion")
	}

	return errors
}

// IsValid reports whether configuration validation passed at construction.
func (c *Client) IsValid() bool {
	return c.validationError == nil
}

// ValidationError returns the configuration validation error, if any.
func (c *Client) ValidationError() error {
	return c.validationError
}
