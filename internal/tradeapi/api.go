package tradeapi

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/moweilong/tradeclient/pkg/httpcli"
	"github.com/moweilong/tradeclient/pkg/retry"
)

// ProfilePath is the endpoint of the authenticated user.
const ProfilePath = "/api/users/me/"

// API runs pipeline calls under a retry policy.
type API struct {
	client *httpcli.Client
	policy *retry.Policy
	logger *zap.Logger
}

// New creates an API. A nil policy retries nothing.
func New(client *httpcli.Client, policy *retry.Policy, logger *zap.Logger) *API {
	if policy == nil {
		policy = retry.New(retry.Config{MaxAttempts: 1})
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &API{client: client, policy: policy, logger: logger}
}

// Call sends in to path and decodes the response into out, retrying
// recoverable failures. Either in or out may be nil. The body is decoded once
// the exchange succeeded, so a response that fails to decode is never sent again.
func (a *API) Call(ctx context.Context, method, path string, in, out any) error {
	resp, err := a.Raw(ctx, method, path, in)
	if err != nil {
		return err
	}
	if out == nil || len(resp.Body) == 0 {
		return nil
	}
	return resp.JSON(out)
}

// Raw is like Call but returns the undecoded response.
func (a *API) Raw(ctx context.Context, method, path string, in any) (*httpcli.Response, error) {
	return retry.Do(ctx, a.policy, func(ctx context.Context) (*httpcli.Response, error) {
		return a.client.Do(ctx, &httpcli.Request{Method: method, Path: path, Body: in})
	})
}

// Profile returns the authenticated user.
func (a *API) Profile(ctx context.Context) (*Profile, error) {
	var p Profile
	if err := a.Call(ctx, http.MethodGet, ProfilePath, nil, &p); err != nil {
		return nil, err
	}
	a.logger.Debug("profile loaded", zap.String("username", p.Username))
	return &p, nil
}
