package core

import "time"

// Default retry tuning. The short ceiling keeps callers responsive: a target
// that needs more than a few seconds to appear is treated as absent.
const (
	DefaultRetryInitialInterval = 100 * time.Millisecond
	DefaultRetryMultiplier      = 1.3
	DefaultRetryMaxElapsedTime  = 4 * time.Second
)

// RetryPolicy tunes the caller's exponential backoff. Delays start at
// InitialInterval and grow by Multiplier per attempt; retrying stops once
// MaxElapsedTime has passed since the first attempt. RandomizationFactor
// spreads delays by the given fraction, 0 keeps them deterministic.
type RetryPolicy struct {
	InitialInterval     time.Duration
	Multiplier          float64
	MaxElapsedTime      time.Duration
	RandomizationFactor float64
}

// DefaultRetryPolicy returns the standard tuning: 100ms initial delay,
// multiplier 1.3, 4s total ceiling, no jitter.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		InitialInterval: DefaultRetryInitialInterval,
		Multiplier:      DefaultRetryMultiplier,
		MaxElapsedTime:  DefaultRetryMaxElapsedTime,
	}
}

// Normalized fills unset fields from the default policy, so the zero value
// behaves like DefaultRetryPolicy.
func (p RetryPolicy) Normalized() RetryPolicy {
	if p.InitialInterval <= 0 {
		p.InitialInterval = DefaultRetryInitialInterval
	}
	if p.Multiplier <= 1 {
		p.Multiplier = DefaultRetryMultiplier
	}
	if p.MaxElapsedTime <= 0 {
		p.MaxElapsedTime = DefaultRetryMaxElapsedTime
	}
	if p.RandomizationFactor < 0 {
		p.RandomizationFactor = 0
	}
	return p
}
