// Package tradeapi is a thin typed layer over the request pipeline: session
// login and logout, the user profile, and retried calls for everything else.
package tradeapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/moweilong/tradeclient/pkg/apierr"
	"github.com/moweilong/tradeclient/pkg/httpcli"
	"github.com/moweilong/tradeclient/pkg/token"
)

// MsgInvalidCredentials is shown when the login endpoint rejects the credentials.
const MsgInvalidCredentials = "Invalid username or password."

// ErrMissingCredentials is returned before any request when username or password is empty.
var ErrMissingCredentials = errors.New("username and password are required")

// Auth manages the session held by the client's token store.
type Auth struct {
	client    *httpcli.Client
	loginPath string
}

// NewAuth creates an Auth posting credentials to loginPath.
func NewAuth(client *httpcli.Client, loginPath string) *Auth {
	return &Auth{client: client, loginPath: loginPath}
}

// Login exchanges credentials for a token pair and stores it.
func (a *Auth) Login(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return ErrMissingCredentials
	}

	resp, err := a.client.Do(ctx, &httpcli.Request{
		Method:   http.MethodPost,
		Path:     a.loginPath,
		Body:     LoginRequest{Username: username, Password: password},
		SkipAuth: true,
	})
	if err != nil {
		if apierr.KindOf(err) == apierr.KindUnauthenticated {
			return &apierr.GenericError{HTTPStatus: http.StatusUnauthorized, Message: MsgInvalidCredentials}
		}
		return err
	}

	var out TokenResponse
	if err := resp.JSON(&out); err != nil {
		return err
	}
	if out.Access == "" {
		return &apierr.GenericError{HTTPStatus: resp.StatusCode, Message: apierr.MsgGeneric}
	}

	return a.client.Store().SetTokens(ctx, token.Pair{Access: out.Access, Refresh: out.Refresh})
}

// Logout forgets the session locally.
func (a *Auth) Logout(ctx context.Context) error {
	return a.client.Store().Clear(ctx)
}

// LoggedIn reports whether a session is stored.
func (a *Auth) LoggedIn(ctx context.Context) bool {
	_, ok := a.client.Store().Tokens(ctx)
	return ok
}
