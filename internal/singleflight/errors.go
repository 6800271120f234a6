package singleflight

import "errors"

// ErrPanicked wraps the value recovered from a panicking call function.
var ErrPanicked = errors.New("singleflight: call panicked")
