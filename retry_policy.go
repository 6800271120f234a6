package edunet

import (
	"context"
	"sync"
	"time"

	"github.com/ambiyansyah-risyal/edunet/internal/backoff"
)

// BackoffStrategy selects the delay curve between attempts.
type BackoffStrategy int

const (
	// ExponentialJitter computes min(base*2^attempt, max) plus up to MaxJitter.
	ExponentialJitter BackoffStrategy = iota
	// DecorrelatedJitter picks a random delay between base and min(max, base*3^attempt).
	DecorrelatedJitter
)

// String returns the strategy name.
func (s BackoffStrategy) String() string {
	switch s {
	case ExponentialJitter:
		return "ExponentialJitter"
	case DecorrelatedJitter:
		return "DecorrelatedJitter"
	default:
		return "Unknown"
	}
}

func (s BackoffStrategy) strategy() backoff.Strategy {
	if s == DecorrelatedJitter {
		return backoff.DecorrelatedJitterStrategy{}
	}
	return backoff.ExponentialJitterStrategy{}
}

// RetryConfig bounds the retry loop. MaxRetries counts retries, so a call
// makes at most MaxRetries+1 attempts.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	MaxJitter  time.Duration
}

// DefaultRetryConfig returns 3 retries, 1s base, 8s cap and up to 1s jitter.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		MaxDelay:   8 * time.Second,
		MaxJitter:  time.Second,
	}
}

// RetryEvent is delivered before each backoff sleep. Attempt is the number
// of the attempt about to run, starting at 1 for the first retry.
type RetryEvent struct {
	Attempt    int
	MaxRetries int
	Delay      time.Duration
	Err        error
	Method     string
	URL        string
}

// AttemptFunc performs one attempt. attempt is 0 for the initial try.
type AttemptFunc func(ctx context.Context, attempt int) (*Response, error)

// RetryOption configures a RetryExecutor.
type RetryOption func(*RetryExecutor)

// WithBackoffStrategy selects the delay curve.
func WithBackoffStrategy(s BackoffStrategy) RetryOption {
	return func(r *RetryExecutor) {
		r.strategy = s
	}
}

// WithRetryHook registers fn to receive every RetryEvent.
func WithRetryHook(fn func(RetryEvent)) RetryOption {
	return func(r *RetryExecutor) {
		if fn != nil {
			r.hooks = append(r.hooks, fn)
		}
	}
}

// WithRetryPredicate replaces IsRetryable as the retry classifier.
func WithRetryPredicate(fn func(error) bool) RetryOption {
	return func(r *RetryExecutor) {
		if fn != nil {
			r.retryable = fn
		}
	}
}

// WithJitterSource replaces the random jitter source. fn receives the
// configured MaxJitter and its result is clamped to [0, MaxJitter).
func WithJitterSource(fn func(max time.Duration) time.Duration) RetryOption {
	return func(r *RetryExecutor) {
		r.jitter = fn
	}
}

// withSleep replaces the context-aware sleep, for tests.
func withSleep(fn func(ctx context.Context, d time.Duration) error) RetryOption {
	return func(r *RetryExecutor) {
		r.sleep = fn
	}
}

// RetryExecutor runs an attempt function until it succeeds, fails with a
// terminal error or runs out of attempts. It is safe for concurrent use.
type RetryExecutor struct {
	cfg       RetryConfig
	strategy  BackoffStrategy
	jitter    func(time.Duration) time.Duration
	retryable func(error) bool
	sleep     func(ctx context.Context, d time.Duration) error
	calc      *backoff.Calculator

	mu    sync.RWMutex
	hooks []func(RetryEvent)
}

// NewRetryExecutor creates an executor for cfg.
func NewRetryExecutor(cfg RetryConfig, opts ...RetryOption) *RetryExecutor {
	r := &RetryExecutor{
		cfg:       cfg,
		strategy:  ExponentialJitter,
		retryable: IsRetryable,
		sleep:     sleepContext,
	}
	for _, opt := range opts {
		opt(r)
	}

	r.calc = backoff.NewCalculator(r.strategy.strategy(), backoff.Params{
		Base:       cfg.BaseDelay,
		Max:        cfg.MaxDelay,
		Multiplier: 2,
		MaxJitter:  cfg.MaxJitter,
		Jitter:     r.jitter,
	})
	return r
}

// Config returns the executor's retry bounds.
func (r *RetryExecutor) Config() RetryConfig {
	return r.cfg
}

// OnRetry registers fn to receive every RetryEvent.
func (r *RetryExecutor) OnRetry(fn func(RetryEvent)) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.hooks = append(r.hooks, fn)
	r.mu.Unlock()
}

// Delay returns the backoff before the retry that follows attempt.
func (r *RetryExecutor) Delay(attempt int) time.Duration {
	return r.calc.Calculate(attempt)
}

// Execute runs fn with retries. Terminal failures are returned as soon as
// they occur; retryable failures are retried until MaxRetries is spent and
// then returned wrapped in ErrExhaustedRetries. Errors are *ClientError
// values carrying a display message and, when known, the HTTP status.
func (r *RetryExecutor) Execute(ctx context.Context, fn AttemptFunc) (*Response, error) {
	return r.execute(ctx, nil, fn)
}

func (r *RetryExecutor) execute(ctx context.Context, req *RequestDescriptor, fn AttemptFunc) (*Response, error) {
	for attempt := 0; ; attempt++ {
		resp, err := fn(ctx, attempt)
		if err == nil {
			return resp, nil
		}

		clientErr := decorate(err, attempt, r.cfg.MaxRetries)
		if !r.retryable(clientErr) {
			return nil, clientErr
		}
		if attempt >= r.cfg.MaxRetries {
			return nil, exhausted(clientErr)
		}

		delay := r.Delay(attempt)
		if clientErr.RetryAfter > delay {
			delay = min(clientErr.RetryAfter, r.cfg.MaxDelay+r.cfg.MaxJitter)
		}

		event := RetryEvent{
			Attempt:    attempt + 1,
			MaxRetries: r.cfg.MaxRetries,
			Delay:      delay,
			Err:        clientErr,
		}
		if req != nil {
			event.Method, event.URL = req.Method, req.URL
		}
		r.notify(event)

		if err := r.sleep(ctx, delay); err != nil {
			return nil, decorate(err, attempt, r.cfg.MaxRetries)
		}
	}
}

func (r *RetryExecutor) notify(event RetryEvent) {
	r.mu.RLock()
	hooks := make([]func(RetryEvent), len(r.hooks))
	copy(hooks, r.hooks)
	r.mu.RUnlock()

	for _, hook := range hooks {
		hook(event)
	}
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
