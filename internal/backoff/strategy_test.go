package backoff

import (
	"testing"
	"time"
)

func noJitter(p Params) Params {
	p.MaxJitter = 0
	return p
}

func TestExponentialJitterStrategy(t *testing.T) {
	strategy := ExponentialJitterStrategy{}
	base := Params{Base: time.Second, Max: 8 * time.Second, Multiplier: 2}

	tests := []struct {
		name     string
		attempt  int
		expected time.Duration
	}{
		{name: "attempt 0", attempt: 0, expected: time.Second},
		{name: "attempt 1", attempt: 1, expected: 2 * time.Second},
		{name: "attempt 2", attempt: 2, expected: 4 * time.Second},
		{name: "attempt 3", attempt: 3, expected: 8 * time.Second},
		{name: "capped", attempt: 6, expected: 8 * time.Second},
		{name: "negative attempt", attempt: -3, expected: time.Second},
		{name: "overflow guard", attempt: 500, expected: 8 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := strategy.Calculate(tt.attempt, noJitter(base))
			if result != tt.expected {
				t.Errorf("Calculate(%d) = %v, want %v", tt.attempt, result, tt.expected)
			}
		})
	}
}

func TestExponentialJitterIsAdditive(t *testing.T) {
	p := Params{
		Base:       time.Second,
		Max:        8 * time.Second,
		Multiplier: 2,
		MaxJitter:  time.Second,
		Jitter:     func(time.Duration) time.Duration { return 250 * time.Millisecond },
	}

	got := ExponentialJitterStrategy{}.Calculate(5, p)
	if want := 8*time.Second + 250*time.Millisecond; got != want {
		t.Errorf("Calculate(5) = %v, want %v", got, want)
	}
}

func TestExponentialJitterBounds(t *testing.T) {
	p := Params{Base: 100 * time.Millisecond, Max: time.Second, Multiplier: 2, MaxJitter: time.Second}
	for i := 0; i < 200; i++ {
		got := ExponentialJitterStrategy{}.Calculate(1, p)
		if got < 200*time.Millisecond || got >= 1200*time.Millisecond {
			t.Fatalf("Calculate(1) = %v, outside [200ms, 1.2s)", got)
		}
	}
}

func TestJitterClampsOutOfRangeValues(t *testing.T) {
	p := Params{MaxJitter: time.Second}

	p.Jitter = func(time.Duration) time.Duration { return -time.Second }
	if got := jitter(p); got != 0 {
		t.Errorf("jitter(negative) = %v, want 0", got)
	}

	p.Jitter = func(time.Duration) time.Duration { return 5 * time.Second }
	if got := jitter(p); got >= time.Second {
		t.Errorf("jitter(too large) = %v, want < 1s", got)
	}
}

func TestDecorrelatedJitterStrategy(t *testing.T) {
	strategy := DecorrelatedJitterStrategy{}
	p := Params{Base: 100 * time.Millisecond, Max: 5 * time.Second}

	if got := strategy.Calculate(0, p); got != 100*time.Millisecond {
		t.Errorf("Calculate(0) = %v, want %v", got, 100*time.Millisecond)
	}

	for i := 0; i < 50; i++ {
		got := strategy.Calculate(1, p)
		if got < 100*time.Millisecond || got > 300*time.Millisecond {
			t.Fatalf("Calculate(1) = %v, want between 100ms and 300ms", got)
		}
	}
}

func TestIntegerPow(t *testing.T) {
	tests := []struct {
		base     float64
		exponent int
		expected float64
	}{
		{2.0, 0, 1.0},
		{2.0, 1, 2.0},
		{2.0, 3, 8.0},
		{3.0, 2, 9.0},
	}

	for _, tt := range tests {
		if result := pow(tt.base, tt.exponent); result != tt.expected {
			t.Errorf("pow(%f, %d) = %f, want %f", tt.base, tt.exponent, result, tt.expected)
		}
	}
}

func BenchmarkExponentialJitterStrategy(b *testing.B) {
	strategy := ExponentialJitterStrategy{}
	p := Params{Base: 100 * time.Millisecond, Max: 5 * time.Second, Multiplier: 2, MaxJitter: time.Second}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		strategy.Calculate(i%10, p)
	}
}
