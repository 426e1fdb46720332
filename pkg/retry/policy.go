// Package retry decides whether and when a failed API call is worth retrying.
package retry

import (
	"math"
	"time"

	"github.com/moweilong/tradeclient/pkg/apierr"
)

// Config bounds the retry behaviour. Web and mobile clients use different values.
type Config struct {
	// MaxAttempts is the total number of invocations, including the first one.
	MaxAttempts int
	// BaseDelay is the first exponential backoff step.
	BaseDelay time.Duration
	// Multiplier grows the backoff between attempts.
	Multiplier float64
	// MaxBackoff caps a single exponential backoff step.
	MaxBackoff time.Duration
	// MaxRateLimitDelay caps the server provided Retry-After. 0 means uncapped.
	MaxRateLimitDelay time.Duration
	// ServerErrorDelay is the fixed wait after a server error.
	ServerErrorDelay time.Duration
	// NetworkErrorDelay is the fixed wait after a network error.
	NetworkErrorDelay time.Duration
	// MaxTotalWait caps the cumulative waiting of one Do call. 0 means uncapped.
	MaxTotalWait time.Duration
}

// WebConfig returns the defaults used by the web client.
func WebConfig() Config {
	return Config{
		MaxAttempts:       3,
		BaseDelay:         time.Second,
		Multiplier:        2,
		MaxBackoff:        30 * time.Second,
		MaxRateLimitDelay: 0,
		ServerErrorDelay:  5 * time.Second,
		NetworkErrorDelay: 2 * time.Second,
		MaxTotalWait:      time.Minute,
	}
}

// MobileConfig returns the defaults used by the mobile client: fewer attempts and shorter waits.
func MobileConfig() Config {
	return Config{
		MaxAttempts:       2,
		BaseDelay:         500 * time.Millisecond,
		Multiplier:        2,
		MaxBackoff:        10 * time.Second,
		MaxRateLimitDelay: 30 * time.Second,
		ServerErrorDelay:  3 * time.Second,
		NetworkErrorDelay: time.Second,
		MaxTotalWait:      20 * time.Second,
	}
}

func (c Config) normalize() Config {
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 1
	}
	if c.Multiplier < 1 {
		c.Multiplier = 2
	}
	if c.BaseDelay < 0 {
		c.BaseDelay = 0
	}
	return c
}

// IsRecoverable reports whether retrying the failed operation may succeed.
func IsRecoverable(err error) bool {
	e, ok := apierr.As(err)
	if !ok {
		return false
	}
	switch e.Kind() {
	case apierr.KindRateLimited, apierr.KindServerError, apierr.KindNetworkError:
		return true
	default:
		return false
	}
}

// ShouldReport reports whether the failure is operationally significant and worth alerting on.
func ShouldReport(err error) bool {
	e, ok := apierr.As(err)
	if !ok {
		return false
	}
	switch e.Kind() {
	case apierr.KindSecurityViolation, apierr.KindServerError, apierr.KindIPBlocked:
		return true
	default:
		return false
	}
}

// Delay returns the kind specific wait before retrying err. Non retryable errors return 0.
func (c Config) Delay(err error) time.Duration {
	e, ok := apierr.As(err)
	if !ok {
		return 0
	}
	switch v := e.(type) {
	case *apierr.RateLimitedError:
		if !v.HasRetryAfter {
			return 0
		}
		d := time.Duration(v.RetryAfterSeconds) * time.Second
		if c.MaxRateLimitDelay > 0 && d > c.MaxRateLimitDelay {
			d = c.MaxRateLimitDelay
		}
		return d
	case *apierr.ServerError:
		return c.ServerErrorDelay
	case *apierr.NetworkError:
		return c.NetworkErrorDelay
	default:
		return 0
	}
}

// RetryDelaySeconds is Delay expressed in whole seconds, rounded up.
func (c Config) RetryDelaySeconds(err error) int {
	return int(math.Ceil(c.Delay(err).Seconds()))
}

// Backoff returns the exponential wait after the given failed attempt (1-based).
func (c Config) Backoff(attempt int) time.Duration {
	c = c.normalize()
	if attempt < 1 {
		attempt = 1
	}
	d := float64(c.BaseDelay) * math.Pow(c.Multiplier, float64(attempt-1))
	if c.MaxBackoff > 0 && d > float64(c.MaxBackoff) {
		return c.MaxBackoff
	}
	if d > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

// Wait returns how long to wait after attempt failed with err: the larger of the kind
// specific delay and the exponential backoff.
func (c Config) Wait(err error, attempt int) time.Duration {
	return max(c.Delay(err), c.Backoff(attempt))
}
