package tradeapi

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	json "github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/moweilong/tradeclient/pkg/apierr"
	"github.com/moweilong/tradeclient/pkg/httpcli"
	"github.com/moweilong/tradeclient/pkg/retry"
	"github.com/moweilong/tradeclient/pkg/token"
)

const loginPath = "/api/users/token/"

func fakeAPI(t *testing.T, profileHits *atomic.Int32, profileFailures int32) http.Handler {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc(loginPath, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		raw, _ := io.ReadAll(r.Body)
		var req LoginRequest
		assert.NoError(t, json.Unmarshal(raw, &req))
		if req.Username != "trader" || req.Password != "s3cret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"No active account found with the given credentials"}`))
			return
		}
		_, _ = w.Write([]byte(`{"access":"a1","refresh":"r1"}`))
	})
	mux.HandleFunc(ProfilePath, func(w http.ResponseWriter, r *http.Request) {
		n := profileHits.Add(1)
		if n <= profileFailures {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if r.Header.Get("Authorization") != "Bearer a1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"id":7,"username":"trader","email":"trader@example.com"}`))
	})
	return mux
}

func newClient(t *testing.T, h http.Handler) *httpcli.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := httpcli.NewClient(srv.URL, token.NewMemoryStore(), httpcli.WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	return c
}

func noWaitPolicy(t *testing.T, attempts int) *retry.Policy {
	return retry.New(retry.Config{MaxAttempts: attempts, Multiplier: 2}, retry.WithLogger(zaptest.NewLogger(t)))
}

func TestAuth_LoginLogout(t *testing.T) {
	var hits atomic.Int32
	c := newClient(t, fakeAPI(t, &hits, 0))
	auth := NewAuth(c, loginPath)
	ctx := context.Background()

	assert.False(t, auth.LoggedIn(ctx))
	require.NoError(t, auth.Login(ctx, "trader", "s3cret"))
	assert.True(t, auth.LoggedIn(ctx))

	pair, _ := c.Store().Tokens(ctx)
	assert.Equal(t, token.Pair{Access: "a1", Refresh: "r1"}, pair)

	require.NoError(t, auth.Logout(ctx))
	assert.False(t, auth.LoggedIn(ctx))
}

func TestAuth_LoginRejected(t *testing.T) {
	var hits atomic.Int32
	c := newClient(t, fakeAPI(t, &hits, 0))
	auth := NewAuth(c, loginPath)

	err := auth.Login(context.Background(), "trader", "wrong")
	require.Error(t, err)
	assert.Equal(t, MsgInvalidCredentials, apierr.UserMessage(err))
	assert.False(t, auth.LoggedIn(context.Background()))

	assert.ErrorIs(t, auth.Login(context.Background(), "", "x"), ErrMissingCredentials)
}

func TestAPI_ProfileRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	c := newClient(t, fakeAPI(t, &hits, 2))
	require.NoError(t, NewAuth(c, loginPath).Login(context.Background(), "trader", "s3cret"))

	api := New(c, noWaitPolicy(t, 3), zaptest.NewLogger(t))
	p, err := api.Profile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &Profile{ID: 7, Username: "trader", Email: "trader@example.com"}, p)
	assert.EqualValues(t, 3, hits.Load())
}

func TestAPI_ProfileGivesUpAfterMaxAttempts(t *testing.T) {
	var hits atomic.Int32
	c := newClient(t, fakeAPI(t, &hits, 10))
	require.NoError(t, NewAuth(c, loginPath).Login(context.Background(), "trader", "s3cret"))

	_, err := New(c, noWaitPolicy(t, 2), nil).Profile(context.Background())
	assert.Equal(t, apierr.KindServerError, apierr.KindOf(err))
	assert.EqualValues(t, 2, hits.Load())
}

func TestAPI_UnauthenticatedIsNotRetried(t *testing.T) {
	var hits atomic.Int32
	c := newClient(t, fakeAPI(t, &hits, 0))

	_, err := New(c, noWaitPolicy(t, 3), nil).Profile(context.Background())
	assert.Equal(t, apierr.KindUnauthenticated, apierr.KindOf(err))
	assert.EqualValues(t, 1, hits.Load())
}

func TestAPI_Raw(t *testing.T) {
	var hits atomic.Int32
	c := newClient(t, fakeAPI(t, &hits, 1))
	require.NoError(t, NewAuth(c, loginPath).Login(context.Background(), "trader", "s3cret"))

	resp, err := New(c, noWaitPolicy(t, 2), nil).Raw(context.Background(), http.MethodGet, ProfilePath, nil)
	require.NoError(t, err)
	assert.Contains(t, string(resp.Body), `"username":"trader"`)
}

func TestAPI_CallDoesNotResendOnUndecodableBody(t *testing.T) {
	var hits atomic.Int32
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("<html>created</html>"))
	})
	c := newClient(t, h)

	var out map[string]any
	err := New(c, noWaitPolicy(t, 3), nil).Call(context.Background(), http.MethodPost, "/api/orders/", map[string]int{"qty": 1}, &out)
	assert.Equal(t, apierr.KindNetworkError, apierr.KindOf(err))
	assert.EqualValues(t, 1, hits.Load())
}
