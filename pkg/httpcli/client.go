// Package httpcli is the request pipeline of the trade client. Every call gets
// the current access token injected at send time, and failures are run through
// the error classifier. An expired session is refreshed once and replayed, and
// a short rate limit is waited out once. Anything else is returned to the
// caller as an apierr.Error.
package httpcli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/bytedance/sonic"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/moweilong/tradeclient/pkg/apierr"
	"github.com/moweilong/tradeclient/pkg/retry"
	"github.com/moweilong/tradeclient/pkg/token"
)

const (
	tracerName = "github.com/moweilong/tradeclient/pkg/httpcli"

	// HeaderRequestID carries an id shared by every attempt of one call.
	HeaderRequestID = "X-Request-ID"
)

// Request describes one logical call. Path is joined to the client base URL
// unless it is an absolute URL.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	// Body is sent as is when it is []byte or string, and JSON encoded otherwise.
	Body any
	// SkipAuth sends the request without a token and returns a 401 as is.
	SkipAuth bool
}

// Response is a successful (status < 400) response with its body fully read.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// JSON decodes the response body into v.
func (r *Response) JSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return apierr.NewNetworkError(fmt.Errorf("decode response body: %w", err))
	}
	return nil
}

// Client sends requests through the pipeline. It is safe for concurrent use
// and should be shared by every caller of one session so refreshes are shared too.
type Client struct {
	baseURL string
	store   token.Store
	http    *http.Client
	tracer  trace.Tracer

	logger                  *zap.Logger
	metrics                 *Metrics
	limiter                 *rate.Limiter
	headers                 http.Header
	userAgent               string
	refreshPath             string
	autoRetryRateLimitBelow time.Duration
	proactiveSkew           time.Duration
	onSessionExpired        SessionExpiredFunc
	sleep                   func(ctx context.Context, d time.Duration) error

	// refreshGroup holds the in-flight refresh, at most one at a time.
	refreshGroup singleflight.Group
}

// NewClient creates a client for the API rooted at baseURL.
func NewClient(baseURL string, store token.Store, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}
	if store == nil {
		return nil, errors.New("token store is required")
	}

	o := defaultOptions()
	o.apply(opts...)

	hc := &http.Client{Timeout: o.timeout}
	if o.httpClient != nil {
		copied := *o.httpClient
		if copied.Timeout == 0 {
			copied.Timeout = o.timeout
		}
		hc = &copied
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		store:   store,
		http:    hc,
		tracer:  o.tracer(),

		logger:                  o.logger,
		metrics:                 o.metrics,
		limiter:                 o.limiter,
		headers:                 o.headers,
		userAgent:               o.userAgent,
		refreshPath:             o.refreshPath,
		autoRetryRateLimitBelow: o.autoRetryRateLimitBelow,
		proactiveSkew:           o.proactiveSkew,
		onSessionExpired:        o.onSessionExpired,
		sleep:                   o.sleep,
	}, nil
}

// Store returns the token store the client reads credentials from.
func (c *Client) Store() token.Store {
	return c.store
}

// call is one logical request and the state shared by its attempts.
type call struct {
	req       *Request
	body      []byte
	requestID string
}

// Do sends req. A 401 is recovered by one shared refresh and one replay, a rate
// limit whose Retry-After is within the auto retry threshold by one wait and
// reissue. Every returned error is an apierr.Error.
func (c *Client) Do(ctx context.Context, req *Request) (resp *Response, err error) {
	if req == nil {
		return nil, &apierr.GenericError{Message: apierr.MsgGeneric}
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	start := time.Now()
	ctx, span := c.tracer.Start(ctx, "httpcli "+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", req.Path),
		),
	)
	defer func() {
		c.finish(span, method, resp, err, time.Since(start))
	}()

	body, encErr := encodeBody(req.Body)
	if encErr != nil {
		c.logger.Warn("encode request body failed", zap.String("path", req.Path), zap.Error(encErr))
		return nil, &apierr.GenericError{Message: apierr.MsgGeneric}
	}
	cl := &call{req: req, body: body, requestID: uuid.NewString()}
	span.SetAttributes(attribute.String("tradeclient.request_id", cl.requestID))

	if !req.SkipAuth {
		c.refreshIfExpiring(ctx)
	}

	var authRetried, rateRetried bool
	for attempt := 1; ; attempt++ {
		r, usedToken, cerr := c.send(ctx, method, cl, attempt)
		if cerr == nil {
			return r, nil
		}

		switch e := cerr.(type) {
		case *apierr.UnauthenticatedError:
			if req.SkipAuth || authRetried {
				return nil, cerr
			}
			authRetried = true
			if rerr := c.recoverSession(ctx, usedToken); rerr != nil {
				return nil, rerr
			}
			span.AddEvent("session refreshed, replaying")
			continue

		case *apierr.RateLimitedError:
			wait, ok := c.autoRetryWait(e)
			if rateRetried || !ok {
				return nil, cerr
			}
			rateRetried = true
			c.metrics.observeAutoRetry()
			c.logger.Info("rate limited, retrying after server delay",
				zap.String("request_id", cl.requestID), zap.Duration("wait", wait))
			span.AddEvent("rate limited, waiting", trace.WithAttributes(attribute.Int64("wait_ms", wait.Milliseconds())))
			if serr := c.sleep(ctx, wait); serr != nil {
				return nil, apierr.NewNetworkError(serr)
			}
			continue
		}

		return nil, cerr
	}
}

// autoRetryWait reports whether a rate limit is small enough to wait out.
func (c *Client) autoRetryWait(e *apierr.RateLimitedError) (time.Duration, bool) {
	if c.autoRetryRateLimitBelow <= 0 || !e.HasRetryAfter {
		return 0, false
	}
	wait := time.Duration(e.RetryAfterSeconds) * time.Second
	return wait, wait <= c.autoRetryRateLimitBelow
}

// send issues one attempt. It returns the access token the attempt carried so a
// 401 can be matched against the store afterwards.
func (c *Client) send(ctx context.Context, method string, cl *call, attempt int) (*Response, string, apierr.Error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, "", apierr.NewNetworkError(err)
		}
	}

	var body io.Reader
	if cl.body != nil {
		body = bytes.NewReader(cl.body)
	}
	hreq, err := http.NewRequestWithContext(ctx, method, c.resolve(cl.req.Path, cl.req.Query), body)
	if err != nil {
		c.logger.Warn("build request failed", zap.String("path", cl.req.Path), zap.Error(err))
		return nil, "", &apierr.GenericError{Message: apierr.MsgGeneric}
	}

	for k, vs := range c.headers {
		for _, v := range vs {
			hreq.Header.Add(k, v)
		}
	}
	for k, vs := range cl.req.Header {
		hreq.Header[k] = append([]string(nil), vs...)
	}
	hreq.Header.Set("User-Agent", c.userAgent)
	hreq.Header.Set("Accept", "application/json")
	hreq.Header.Set(HeaderRequestID, cl.requestID)
	if cl.body != nil && hreq.Header.Get("Content-Type") == "" {
		hreq.Header.Set("Content-Type", "application/json")
	}

	var access string
	if !cl.req.SkipAuth {
		access = c.store.AccessToken(ctx)
		if access != "" {
			hreq.Header.Set("Authorization", "Bearer "+access)
		}
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(hreq.Header))

	c.logger.Debug("send request",
		zap.String("method", method),
		zap.String("path", cl.req.Path),
		zap.String("request_id", cl.requestID),
		zap.Int("attempt", attempt),
	)

	hresp, err := c.http.Do(hreq)
	if err != nil {
		c.logger.Warn("request failed without response",
			zap.String("path", cl.req.Path), zap.String("request_id", cl.requestID), zap.Error(err))
		return nil, access, apierr.NewNetworkError(err)
	}
	defer hresp.Body.Close()

	data, err := io.ReadAll(hresp.Body)
	if err != nil {
		return nil, access, apierr.NewNetworkError(fmt.Errorf("read response body: %w", err))
	}

	if hresp.StatusCode < http.StatusBadRequest {
		return &Response{StatusCode: hresp.StatusCode, Header: hresp.Header, Body: data}, access, nil
	}

	cerr := apierr.Classify(hresp.StatusCode, hresp.Header, data)
	fields := []zap.Field{
		zap.String("path", cl.req.Path),
		zap.String("request_id", cl.requestID),
		zap.Int("status", hresp.StatusCode),
		zap.String("kind", cerr.Kind().String()),
	}
	switch {
	case retry.ShouldReport(cerr):
		c.logger.Error("request failed", fields...)
	case cerr.Kind() == apierr.KindUnauthenticated:
		c.logger.Debug("request unauthenticated", fields...)
	default:
		c.logger.Warn("request failed", fields...)
	}
	return nil, access, cerr
}

func (c *Client) resolve(path string, query url.Values) string {
	target := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		target = c.baseURL + "/" + strings.TrimLeft(path, "/")
	}
	if len(query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + query.Encode()
	}
	return target
}

func (c *Client) finish(span trace.Span, method string, resp *Response, err error, elapsed time.Duration) {
	defer span.End()
	c.metrics.observeRequest(method, err, elapsed.Seconds())

	if err == nil {
		span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
		span.SetStatus(codes.Ok, "")
		return
	}
	e, _ := apierr.As(err)
	span.SetAttributes(attribute.String("tradeclient.error.kind", e.Kind().String()))
	if status := e.StatusCode(); status > 0 {
		span.SetAttributes(attribute.Int("http.response.status_code", status))
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, e.Reason())
}

func encodeBody(v any) ([]byte, error) {
	switch b := v.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case string:
		return []byte(b), nil
	default:
		return json.Marshal(v)
	}
}

// Get sends a GET request and decodes the response into out when out is not nil.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.doJSON(ctx, http.MethodGet, path, nil, out)
}

// Post sends in as JSON and decodes the response into out when out is not nil.
func (c *Client) Post(ctx context.Context, path string, in, out any) error {
	return c.doJSON(ctx, http.MethodPost, path, in, out)
}

// Put sends in as JSON and decodes the response into out when out is not nil.
func (c *Client) Put(ctx context.Context, path string, in, out any) error {
	return c.doJSON(ctx, http.MethodPut, path, in, out)
}

// Delete sends a DELETE request and decodes the response into out when out is not nil.
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.doJSON(ctx, http.MethodDelete, path, nil, out)
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	resp, err := c.Do(ctx, &Request{Method: method, Path: path, Body: in})
	if err != nil {
		return err
	}
	if out == nil || len(resp.Body) == 0 {
		return nil
	}
	return resp.JSON(out)
}
