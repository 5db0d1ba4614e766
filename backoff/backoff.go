// Package backoff computes retry delays and retry eligibility for calls to the
// remote trust service.
//
// The delay for attempt n (0-based) is
//
//	min(MaxDelay, InitialDelay * Factor^n) * jitter,  jitter in [0.5, 1.5)
//
// unless the server supplied a Retry-After hint in whole seconds, which is used
// verbatim.
package backoff

import (
	"math"
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"
	"time"

	cbackoff "github.com/cenkalti/backoff/v4"
)

// Policy describes an exponential backoff with jitter.
type Policy struct {
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
	Factor       float64       `yaml:"factor"`
	// MaxAttempts bounds the total number of attempts, including the first one.
	MaxAttempts int `yaml:"max_attempts"`
	// RetryableStatus is the allow-list of transient HTTP status codes.
	RetryableStatus []int `yaml:"retryable_status"`

	// Jitter returns a multiplier in [0.5, 1.5). Nil uses math/rand.
	Jitter func() float64 `yaml:"-"`
}

// DefaultPolicy returns the policy used by the trust service client.
func DefaultPolicy() Policy {
	return Policy{
		InitialDelay:    250 * time.Millisecond,
		MaxDelay:        10 * time.Second,
		Factor:          2,
		MaxAttempts:     5,
		RetryableStatus: []int{408, 425, 429, 500, 502, 503, 504},
	}
}

// CalculateBackoff returns the delay before retrying after the given attempt.
// A positive integer retryAfter is interpreted as seconds and wins over the
// computed delay.
func (p Policy) CalculateBackoff(attempt int, retryAfter string) time.Duration {
	if d, ok := ParseRetryAfter(retryAfter); ok {
		return d
	}
	if attempt < 0 {
		attempt = 0
	}

	delay := float64(p.InitialDelay) * math.Pow(p.Factor, float64(attempt))
	if delay > float64(p.MaxDelay) || math.IsInf(delay, 0) || math.IsNaN(delay) {
		delay = float64(p.MaxDelay)
	}

	return time.Duration(delay * p.jitter())
}

// ShouldRetry reports whether a call that failed with status on the given
// attempt (0-based) may be retried.
func (p Policy) ShouldRetry(attempt int, status int) bool {
	if attempt+1 >= p.MaxAttempts {
		return false
	}
	return slices.Contains(p.RetryableStatus, status)
}

// ParseRetryAfter parses a Retry-After header holding whole seconds.
// HTTP-date values are not honored.
func ParseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	seconds, err := strconv.Atoi(value)
	if err != nil || seconds < 0 {
		return 0, false
	}
	return time.Duration(seconds) * time.Second, true
}

func (p Policy) jitter() float64 {
	if p.Jitter != nil {
		return p.Jitter()
	}
	return 0.5 + rand.Float64()
}

// BackOff adapts a Policy to the cenkalti/backoff retry loop. The caller
// records the server's Retry-After hint with SetRetryAfter before returning
// the retryable error.
type BackOff struct {
	policy     Policy
	attempt    int
	retryAfter string
}

var _ cbackoff.BackOff = (*BackOff)(nil)

// NewBackOff creates a fresh BackOff for one call.
func (p Policy) NewBackOff() *BackOff {
	return &BackOff{policy: p}
}

// SetRetryAfter stores the Retry-After hint of the last response.
func (b *BackOff) SetRetryAfter(value string) {
	b.retryAfter = value
}

// NextBackOff implements cbackoff.BackOff.
func (b *BackOff) NextBackOff() time.Duration {
	if b.attempt+1 >= b.policy.MaxAttempts {
		return cbackoff.Stop
	}
	d := b.policy.CalculateBackoff(b.attempt, b.retryAfter)
	b.attempt++
	b.retryAfter = ""
	return d
}

// Reset implements cbackoff.BackOff.
func (b *BackOff) Reset() {
	b.attempt = 0
	b.retryAfter = ""
}

// Attempt returns the number of retries handed out so far.
func (b *BackOff) Attempt() int {
	return b.attempt
}
