package httpcli

import (
	"context"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/moweilong/tradeclient/pkg/apierr"
	"github.com/moweilong/tradeclient/pkg/retry"
)

const (
	// DefaultRefreshPath is the endpoint exchanging a refresh token for a new access token.
	DefaultRefreshPath = "/api/users/token/refresh/"
	// DefaultTimeout bounds one HTTP exchange.
	DefaultTimeout = 30 * time.Second
	// DefaultAutoRetryRateLimitBelow is the largest Retry-After absorbed transparently.
	DefaultAutoRetryRateLimitBelow = 5 * time.Second

	defaultUserAgent = "tradeclient/1"
)

// SessionExpiredFunc is called once per failed refresh, after the token store
// has been cleared. err is the classified error of the refresh attempt.
type SessionExpiredFunc func(ctx context.Context, err apierr.Error)

// Option set the client options.
type Option func(*options)

type options struct {
	httpClient              *http.Client
	timeout                 time.Duration
	logger                  *zap.Logger
	autoRetryRateLimitBelow time.Duration
	refreshPath             string
	onSessionExpired        SessionExpiredFunc
	metrics                 *Metrics
	tracerProvider          trace.TracerProvider
	limiter                 *rate.Limiter
	proactiveSkew           time.Duration
	headers                 http.Header
	userAgent               string
	sleep                   func(ctx context.Context, d time.Duration) error
}

func defaultOptions() *options {
	return &options{
		timeout:                 DefaultTimeout,
		logger:                  zap.NewNop(),
		autoRetryRateLimitBelow: DefaultAutoRetryRateLimitBelow,
		refreshPath:             DefaultRefreshPath,
		headers:                 make(http.Header),
		userAgent:               defaultUserAgent,
		sleep:                   retry.Sleep,
	}
}

func (o *options) apply(opts ...Option) {
	for _, opt := range opts {
		opt(o)
	}
}

// WithHTTPClient set the underlying http client, its Timeout is overridden by WithTimeout
// only when it has none.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		if client != nil {
			o.httpClient = client
		}
	}
}

// WithTimeout set the timeout of a single HTTP exchange.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithLogger set logger
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithAutoRetryRateLimitBelow set the largest Retry-After the client waits out on its own.
// A value <= 0 disables the transparent rate limit retry.
func WithAutoRetryRateLimitBelow(d time.Duration) Option {
	return func(o *options) {
		o.autoRetryRateLimitBelow = d
	}
}

// WithRefreshPath set the token refresh endpoint.
func WithRefreshPath(path string) Option {
	return func(o *options) {
		if path != "" {
			o.refreshPath = path
		}
	}
}

// WithOnSessionExpired set the hook notified when a refresh fails and the session is torn down.
func WithOnSessionExpired(fn SessionExpiredFunc) Option {
	return func(o *options) {
		o.onSessionExpired = fn
	}
}

// WithMetrics set prometheus collectors.
func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithTracerProvider set the tracer provider, the global one is used by default.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tracerProvider = tp
	}
}

// WithRateLimit paces outgoing requests on the client side.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(o *options) {
		if limit > 0 && burst > 0 {
			o.limiter = rate.NewLimiter(limit, burst)
		}
	}
}

// WithProactiveRefresh refreshes a JWT access token that expires within skew before sending.
func WithProactiveRefresh(skew time.Duration) Option {
	return func(o *options) {
		o.proactiveSkew = skew
	}
}

// WithHeader adds a header sent with every request.
func WithHeader(key, value string) Option {
	return func(o *options) {
		o.headers.Add(key, value)
	}
}

// WithUserAgent set the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(o *options) {
		if ua != "" {
			o.userAgent = ua
		}
	}
}

func (o *options) tracer() trace.Tracer {
	tp := o.tracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return tp.Tracer(tracerName)
}
