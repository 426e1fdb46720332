package httpcli

import (
	"context"
	"net/http"

	json "github.com/bytedance/sonic"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/moweilong/tradeclient/pkg/apierr"
	"github.com/moweilong/tradeclient/pkg/token"
)

const refreshKey = "refresh"

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type refreshResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

// refreshTrigger records why a refresh ran. Only a failed proactive refresh
// leaves the session in place.
type refreshTrigger string

const (
	triggerUnauthorized refreshTrigger = "unauthorized"
	triggerProactive    refreshTrigger = "proactive"
	triggerExplicit     refreshTrigger = "explicit"
)

func (t refreshTrigger) tearsDown() bool {
	return t != triggerProactive
}

// Refresh exchanges the stored refresh token for a new access token. It joins
// a refresh already in flight instead of starting another one. On failure the
// session is torn down as it would be for a request.
func (c *Client) Refresh(ctx context.Context) error {
	if err := c.sharedRefresh(ctx, "", triggerExplicit); err != nil {
		return err
	}
	return nil
}

// recoverSession is called after an attempt carrying usedToken got a 401.
func (c *Client) recoverSession(ctx context.Context, usedToken string) apierr.Error {
	current := c.store.AccessToken(ctx)
	switch {
	case current == "":
		// Nothing to refresh: never logged in, or another caller already tore the session down.
		return apierr.NewUnauthenticated()
	case current != usedToken:
		c.logger.Debug("access token rotated by another request, replaying")
		c.metrics.observeRefresh(string(triggerUnauthorized), outcomeReplayed)
		return nil
	}
	return c.sharedRefresh(ctx, usedToken, triggerUnauthorized)
}

// refreshIfExpiring refreshes ahead of time when the access token is a JWT
// close to expiry. A failure keeps the session and the current token is sent;
// a 401 on it then goes through recoverSession.
func (c *Client) refreshIfExpiring(ctx context.Context) {
	if c.proactiveSkew <= 0 {
		return
	}
	access := c.store.AccessToken(ctx)
	if access == "" || !token.ExpiresWithin(access, c.proactiveSkew) {
		return
	}
	c.logger.Debug("access token close to expiry, refreshing", zap.Duration("skew", c.proactiveSkew))
	if err := c.sharedRefresh(ctx, access, triggerProactive); err != nil {
		c.logger.Warn("proactive token refresh failed, keeping current token",
			zap.String("kind", err.Kind().String()), zap.String("reason", err.Reason()))
	}
}

// sharedRefresh waits for the single in-flight refresh, starting it if needed.
// The refresh itself is detached from ctx so one waiter giving up does not fail
// it for the others. A non-empty staleToken skips the refresh when the store no
// longer holds it, which means a refresh finished in between.
//
// A caller that must tear the session down on failure but joined a proactive
// flight that failed runs one refresh of its own.
func (c *Client) sharedRefresh(ctx context.Context, staleToken string, trigger refreshTrigger) apierr.Error {
	ran, err := c.joinRefresh(ctx, staleToken, trigger)
	if err != nil && trigger.tearsDown() && !ran.tearsDown() && ctx.Err() == nil {
		_, err = c.joinRefresh(ctx, staleToken, trigger)
	}
	return err
}

// joinRefresh returns the trigger of the flight it waited on along with its result.
func (c *Client) joinRefresh(ctx context.Context, staleToken string, trigger refreshTrigger) (refreshTrigger, apierr.Error) {
	ch := c.refreshGroup.DoChan(refreshKey, func() (any, error) {
		rctx := context.WithoutCancel(ctx)
		if staleToken != "" && c.store.AccessToken(rctx) != staleToken {
			return trigger, nil
		}
		if err := c.doRefresh(rctx, trigger); err != nil {
			return trigger, err
		}
		return trigger, nil
	})

	select {
	case <-ctx.Done():
		return trigger, apierr.NewNetworkError(ctx.Err())
	case res := <-ch:
		ran, _ := res.Val.(refreshTrigger)
		if res.Err == nil {
			return ran, nil
		}
		if e, ok := apierr.As(res.Err); ok {
			return ran, e
		}
		return ran, apierr.NewUnauthenticated()
	}
}

func (c *Client) doRefresh(ctx context.Context, trigger refreshTrigger) apierr.Error {
	refresh := c.store.RefreshToken(ctx)
	if refresh == "" {
		err := apierr.NewUnauthenticated()
		c.refreshFailed(ctx, err, trigger, outcomeNoToken)
		return err
	}

	body, _ := json.Marshal(refreshRequest{Refresh: refresh})
	cl := &call{
		req:       &Request{Method: http.MethodPost, Path: c.refreshPath, SkipAuth: true},
		body:      body,
		requestID: uuid.NewString(),
	}
	resp, cerr := c.sendRefresh(ctx, cl)
	if cerr != nil {
		c.refreshFailed(ctx, cerr, trigger, outcomeFailed)
		return cerr
	}

	var out refreshResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil || out.Access == "" {
		c.logger.Warn("refresh response without access token", zap.Int("status", resp.StatusCode), zap.Error(err))
		e := apierr.NewUnauthenticated()
		c.refreshFailed(ctx, e, trigger, outcomeFailed)
		return e
	}
	if out.Refresh == "" {
		out.Refresh = refresh
	}

	if err := c.store.SetTokens(ctx, token.Pair{Access: out.Access, Refresh: out.Refresh}); err != nil {
		c.logger.Error("store refreshed tokens failed", zap.Error(err))
		e := apierr.NewUnauthenticated()
		c.refreshFailed(ctx, e, trigger, outcomeFailed)
		return e
	}

	c.metrics.observeRefresh(string(trigger), outcomeOK)
	c.logger.Info("access token refreshed", zap.String("trigger", string(trigger)), zap.Bool("rotated", out.Refresh != refresh))
	return nil
}

func (c *Client) refreshFailed(ctx context.Context, err apierr.Error, trigger refreshTrigger, outcome string) {
	c.metrics.observeRefresh(string(trigger), outcome)
	if trigger.tearsDown() {
		c.expireSession(ctx, err)
	}
}

func (c *Client) sendRefresh(ctx context.Context, cl *call) (*Response, apierr.Error) {
	ctx, span := c.tracer.Start(ctx, "httpcli refresh")
	defer span.End()

	resp, _, cerr := c.send(ctx, http.MethodPost, cl, 1)
	if cerr != nil {
		span.RecordError(cerr)
		return nil, cerr
	}
	return resp, nil
}

// expireSession clears the store and notifies the application.
func (c *Client) expireSession(ctx context.Context, err apierr.Error) {
	c.metrics.observeSessionExpired()

	if cerr := c.store.Clear(ctx); cerr != nil {
		c.logger.Error("clear token store failed", zap.Error(cerr))
	}
	c.logger.Warn("session expired", zap.String("kind", err.Kind().String()), zap.String("reason", err.Reason()))

	if c.onSessionExpired != nil {
		c.onSessionExpired(ctx, err)
	}
}
