package backoff

import "time"

// Calculator binds a Strategy to a fixed set of Params so callers only
// supply the attempt number. It is immutable and safe for concurrent use.
type Calculator struct {
	strategy Strategy
	params   Params
}

// NewCalculator creates a calculator with the given strategy and params.
func NewCalculator(strategy Strategy, params Params) *Calculator {
	if strategy == nil {
		strategy = ExponentialJitterStrategy{}
	}
	return &Calculator{
		strategy: strategy,
		params:   params,
	}
}

// Calculate computes the backoff duration for the given attempt.
func (c *Calculator) Calculate(attempt int) time.Duration {
	return c.strategy.Calculate(attempt, c.params)
}

// Strategy returns the strategy in use.
func (c *Calculator) Strategy() Strategy {
	return c.strategy
}
