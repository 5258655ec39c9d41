package engine

import "time"

// RetryPolicy bounds how often a transiently failing task is retried
// and how long the engine waits between attempts. Attached per task
// type and immutable once a task is created.
type RetryPolicy struct {
	// MaxAttempts is the total number of executions allowed,
	// including the first one. Values below 1 behave as 1.
	MaxAttempts int

	// BaseDelay is the wait before the first retry.
	BaseDelay time.Duration

	// Multiplier grows the delay exponentially per attempt. Values
	// below 1 behave as 1 (constant delay).
	Multiplier float64

	// MaxDelay caps the computed delay. Zero means no cap.
	MaxDelay time.Duration
}

// DefaultRetryPolicy returns the policy applied to task types that do
// not configure their own.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		Multiplier:  2,
		MaxDelay:    time.Minute,
	}
}

// Delay computes the backoff before re-running a task that has
// already completed the given number of attempts:
//
//	delay = BaseDelay × Multiplier^attempt
//
// capped at MaxDelay. The first retry passes attempt 0.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	multiplier := p.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}

	delay := float64(p.BaseDelay)
	for i := 0; i < attempt; i++ {
		delay *= multiplier
		if p.MaxDelay > 0 && delay >= float64(p.MaxDelay) {
			return p.MaxDelay
		}
	}

	result := time.Duration(delay)
	if p.MaxDelay > 0 && result > p.MaxDelay {
		return p.MaxDelay
	}
	return result
}

// maxAttempts normalizes the configured ceiling.
func (p RetryPolicy) maxAttempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}
