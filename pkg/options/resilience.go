// Package options holds the command line and file configuration of the trade
// client, one struct per concern, each with defaults, flags and validation.
package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/time/rate"

	"github.com/moweilong/tradeclient/pkg/httpcli"
	"github.com/moweilong/tradeclient/pkg/retry"
)

const (
	PlatformWeb    = "web"
	PlatformMobile = "mobile"

	mobileAutoRetryRateLimitBelow = 3 * time.Second
	mobileRequestTimeout          = 15 * time.Second
	defaultProactiveRefreshSkew   = 30 * time.Second
)

// ResilienceOptions tunes the request pipeline and the retry policy.
//
// A zero duration or count takes the value of the selected platform profile
// when Complete is called. A negative duration turns the feature off: no
// transparent rate limit retry, no Retry-After cap, no total wait cap, no
// proactive refresh.
type ResilienceOptions struct {
	// Platform selects the defaults profile, web or mobile.
	Platform string `json:"platform" mapstructure:"platform" validate:"oneof=web mobile"`
	// AutoRetryRateLimitBelow is the largest Retry-After the pipeline waits out on its own.
	AutoRetryRateLimitBelow time.Duration `json:"auto-retry-rate-limit-below" mapstructure:"auto-retry-rate-limit-below"`
	// MaxRetryAttempts is the number of invocations allowed by the retry policy.
	MaxRetryAttempts int `json:"max-retry-attempts" mapstructure:"max-retry-attempts" validate:"min=1,max=10"`
	// BaseRetryDelay is the first exponential backoff step.
	BaseRetryDelay time.Duration `json:"base-retry-delay" mapstructure:"base-retry-delay"`
	// BackoffMultiplier grows the backoff between attempts.
	BackoffMultiplier float64 `json:"backoff-multiplier" mapstructure:"backoff-multiplier" validate:"gte=1"`
	// MaxBackoff caps one backoff step.
	MaxBackoff time.Duration `json:"max-backoff" mapstructure:"max-backoff"`
	// MaxRateLimitDelay caps the Retry-After honoured by the retry policy.
	MaxRateLimitDelay time.Duration `json:"max-rate-limit-delay" mapstructure:"max-rate-limit-delay"`
	// ServerErrorRetryDelay is the wait after a server error.
	ServerErrorRetryDelay time.Duration `json:"server-error-retry-delay" mapstructure:"server-error-retry-delay"`
	// NetworkErrorRetryDelay is the wait after a network error.
	NetworkErrorRetryDelay time.Duration `json:"network-error-retry-delay" mapstructure:"network-error-retry-delay"`
	// MaxTotalWait caps the time spent waiting between attempts of one call.
	MaxTotalWait time.Duration `json:"max-total-wait" mapstructure:"max-total-wait"`
	// RequestTimeout bounds one HTTP exchange.
	RequestTimeout time.Duration `json:"request-timeout" mapstructure:"request-timeout"`
	// ProactiveRefreshSkew refreshes a JWT access token this long before it expires.
	ProactiveRefreshSkew time.Duration `json:"proactive-refresh-skew" mapstructure:"proactive-refresh-skew"`
	// RequestsPerSecond paces outgoing requests, 0 means unlimited.
	RequestsPerSecond float64 `json:"requests-per-second" mapstructure:"requests-per-second" validate:"gte=0"`
	// Burst is the number of requests allowed above RequestsPerSecond at once.
	Burst int `json:"burst" mapstructure:"burst" validate:"gte=0"`
}

// NewResilienceOptions returns options for the web platform whose values are
// filled from the profile by Complete.
func NewResilienceOptions() *ResilienceOptions {
	return &ResilienceOptions{Platform: PlatformWeb}
}

// NewWebResilienceOptions returns the web profile.
func NewWebResilienceOptions() *ResilienceOptions {
	cfg := retry.WebConfig()
	return &ResilienceOptions{
		Platform:                PlatformWeb,
		AutoRetryRateLimitBelow: httpcli.DefaultAutoRetryRateLimitBelow,
		MaxRetryAttempts:        cfg.MaxAttempts,
		BaseRetryDelay:          cfg.BaseDelay,
		BackoffMultiplier:       cfg.Multiplier,
		MaxBackoff:              cfg.MaxBackoff,
		MaxRateLimitDelay:       cfg.MaxRateLimitDelay,
		ServerErrorRetryDelay:   cfg.ServerErrorDelay,
		NetworkErrorRetryDelay:  cfg.NetworkErrorDelay,
		MaxTotalWait:            cfg.MaxTotalWait,
		RequestTimeout:          httpcli.DefaultTimeout,
		ProactiveRefreshSkew:    defaultProactiveRefreshSkew,
	}
}

// NewMobileResilienceOptions returns the mobile profile: a stricter auto retry
// threshold, fewer attempts and shorter waits.
func NewMobileResilienceOptions() *ResilienceOptions {
	cfg := retry.MobileConfig()
	return &ResilienceOptions{
		Platform:                PlatformMobile,
		AutoRetryRateLimitBelow: mobileAutoRetryRateLimitBelow,
		MaxRetryAttempts:        cfg.MaxAttempts,
		BaseRetryDelay:          cfg.BaseDelay,
		BackoffMultiplier:       cfg.Multiplier,
		MaxBackoff:              cfg.MaxBackoff,
		MaxRateLimitDelay:       cfg.MaxRateLimitDelay,
		ServerErrorRetryDelay:   cfg.ServerErrorDelay,
		NetworkErrorRetryDelay:  cfg.NetworkErrorDelay,
		MaxTotalWait:            cfg.MaxTotalWait,
		RequestTimeout:          mobileRequestTimeout,
		ProactiveRefreshSkew:    defaultProactiveRefreshSkew,
	}
}

// ForPlatform returns the profile of the named platform.
func ForPlatform(platform string) (*ResilienceOptions, error) {
	switch platform {
	case PlatformWeb, "":
		return NewWebResilienceOptions(), nil
	case PlatformMobile:
		return NewMobileResilienceOptions(), nil
	default:
		return nil, fmt.Errorf("unknown platform %q, must be %s or %s", platform, PlatformWeb, PlatformMobile)
	}
}

// AddFlags adds flags related to the request pipeline and retry policy to the specified FlagSet.
func (o *ResilienceOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Platform, "resilience.platform", o.Platform, "Defaults profile, web or mobile.")
	fs.DurationVar(&o.AutoRetryRateLimitBelow, "resilience.auto-retry-rate-limit-below", o.AutoRetryRateLimitBelow,
		"Largest Retry-After waited out transparently. Negative disables it, 0 uses the platform default.")
	fs.IntVar(&o.MaxRetryAttempts, "resilience.max-retry-attempts", o.MaxRetryAttempts, "Attempts allowed by the retry policy, including the first.")
	fs.DurationVar(&o.BaseRetryDelay, "resilience.base-retry-delay", o.BaseRetryDelay, "First exponential backoff step.")
	fs.Float64Var(&o.BackoffMultiplier, "resilience.backoff-multiplier", o.BackoffMultiplier, "Backoff growth factor between attempts.")
	fs.DurationVar(&o.MaxBackoff, "resilience.max-backoff", o.MaxBackoff, "Cap on one backoff step.")
	fs.DurationVar(&o.MaxRateLimitDelay, "resilience.max-rate-limit-delay", o.MaxRateLimitDelay, "Cap on the honoured Retry-After. Negative means uncapped.")
	fs.DurationVar(&o.ServerErrorRetryDelay, "resilience.server-error-retry-delay", o.ServerErrorRetryDelay, "Wait after a server error.")
	fs.DurationVar(&o.NetworkErrorRetryDelay, "resilience.network-error-retry-delay", o.NetworkErrorRetryDelay, "Wait after a network error.")
	fs.DurationVar(&o.MaxTotalWait, "resilience.max-total-wait", o.MaxTotalWait, "Cap on the total wait of one call. Negative means uncapped.")
	fs.DurationVar(&o.RequestTimeout, "resilience.request-timeout", o.RequestTimeout, "Timeout of one HTTP exchange.")
	fs.DurationVar(&o.ProactiveRefreshSkew, "resilience.proactive-refresh-skew", o.ProactiveRefreshSkew, "Refresh the access token this long before it expires. Negative disables it.")
	fs.Float64Var(&o.RequestsPerSecond, "resilience.requests-per-second", o.RequestsPerSecond, "Client side request rate, 0 means unlimited.")
	fs.IntVar(&o.Burst, "resilience.burst", o.Burst, "Requests allowed above the rate at once.")
}

// Complete fills unset values from the platform profile.
func (o *ResilienceOptions) Complete() error {
	profile, err := ForPlatform(o.Platform)
	if err != nil {
		return err
	}
	o.Platform = profile.Platform

	fillDuration(&o.AutoRetryRateLimitBelow, profile.AutoRetryRateLimitBelow)
	fillDuration(&o.BaseRetryDelay, profile.BaseRetryDelay)
	fillDuration(&o.MaxBackoff, profile.MaxBackoff)
	fillDuration(&o.MaxRateLimitDelay, profile.MaxRateLimitDelay)
	fillDuration(&o.ServerErrorRetryDelay, profile.ServerErrorRetryDelay)
	fillDuration(&o.NetworkErrorRetryDelay, profile.NetworkErrorRetryDelay)
	fillDuration(&o.MaxTotalWait, profile.MaxTotalWait)
	fillDuration(&o.RequestTimeout, profile.RequestTimeout)
	fillDuration(&o.ProactiveRefreshSkew, profile.ProactiveRefreshSkew)
	if o.MaxRetryAttempts == 0 {
		o.MaxRetryAttempts = profile.MaxRetryAttempts
	}
	if o.BackoffMultiplier == 0 {
		o.BackoffMultiplier = profile.BackoffMultiplier
	}
	if o.RequestsPerSecond > 0 && o.Burst == 0 {
		o.Burst = 1
	}
	return nil
}

func fillDuration(v *time.Duration, def time.Duration) {
	if *v == 0 {
		*v = def
	}
}

// Validate verifies the options. Call it after Complete.
func (o *ResilienceOptions) Validate() []error {
	errs := validateStruct(o)

	for name, d := range map[string]time.Duration{
		"base-retry-delay":          o.BaseRetryDelay,
		"max-backoff":               o.MaxBackoff,
		"server-error-retry-delay":  o.ServerErrorRetryDelay,
		"network-error-retry-delay": o.NetworkErrorRetryDelay,
		"request-timeout":           o.RequestTimeout,
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("resilience.%s must not be negative, got %s", name, d))
		}
	}
	if o.MaxBackoff > 0 && o.BaseRetryDelay > o.MaxBackoff {
		errs = append(errs, fmt.Errorf("resilience.base-retry-delay %s exceeds max-backoff %s", o.BaseRetryDelay, o.MaxBackoff))
	}

	return errs
}

// RetryConfig converts the options into a retry policy configuration.
func (o *ResilienceOptions) RetryConfig() retry.Config {
	return retry.Config{
		MaxAttempts:       o.MaxRetryAttempts,
		BaseDelay:         o.BaseRetryDelay,
		Multiplier:        o.BackoffMultiplier,
		MaxBackoff:        o.MaxBackoff,
		MaxRateLimitDelay: max(o.MaxRateLimitDelay, 0),
		ServerErrorDelay:  o.ServerErrorRetryDelay,
		NetworkErrorDelay: o.NetworkErrorRetryDelay,
		MaxTotalWait:      max(o.MaxTotalWait, 0),
	}
}

// ClientOptions converts the options into request pipeline options.
func (o *ResilienceOptions) ClientOptions() []httpcli.Option {
	opts := []httpcli.Option{
		httpcli.WithTimeout(o.RequestTimeout),
		httpcli.WithAutoRetryRateLimitBelow(o.AutoRetryRateLimitBelow),
		httpcli.WithHeader("X-Client-Platform", o.Platform),
	}
	if o.ProactiveRefreshSkew > 0 {
		opts = append(opts, httpcli.WithProactiveRefresh(o.ProactiveRefreshSkew))
	}
	if o.RequestsPerSecond > 0 {
		opts = append(opts, httpcli.WithRateLimit(rate.Limit(o.RequestsPerSecond), o.Burst))
	}
	return opts
}
