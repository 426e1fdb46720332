package app

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/moweilong/tradeclient/cmd/tradectl/app/options"
	"github.com/moweilong/tradeclient/internal/tradeapi"
	"github.com/moweilong/tradeclient/pkg/apierr"
	"github.com/moweilong/tradeclient/pkg/httpcli"
	"github.com/moweilong/tradeclient/pkg/log"
	"github.com/moweilong/tradeclient/pkg/retry"
	"github.com/moweilong/tradeclient/pkg/token"
)

// session wires the token store, the pipeline and the API for one command.
type session struct {
	client *httpcli.Client
	auth   *tradeapi.Auth
	api    *tradeapi.API
	store  token.Store
}

func newSession(cmd *cobra.Command, opts *options.ClientOptions) (*session, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	store, err := token.NewStore(opts.TokenStoreOptions.StoreConfig(), token.WithLogger(log.Z()))
	if err != nil {
		return nil, fmt.Errorf("failed to open token store: %w", err)
	}

	errOut := cmd.ErrOrStderr()
	clientOpts := append(opts.ResilienceOptions.ClientOptions(), opts.APIOptions.ClientOptions()...)
	clientOpts = append(clientOpts,
		httpcli.WithLogger(log.Z()),
		httpcli.WithOnSessionExpired(func(_ context.Context, err apierr.Error) {
			fmt.Fprintln(errOut, color.YellowString("%s Run `tradectl login` to sign in again.", err.UserMessage()))
		}),
	)

	client, err := httpcli.NewClient(opts.APIOptions.BaseURL, store, clientOpts...)
	if err != nil {
		return nil, err
	}
	policy := retry.New(opts.ResilienceOptions.RetryConfig(), retry.WithLogger(log.Z()))

	return &session{
		client: client,
		auth:   tradeapi.NewAuth(client, opts.APIOptions.LoginPath),
		api:    tradeapi.New(client, policy, log.Z()),
		store:  store,
	}, nil
}

// Close releases the token store.
func (s *session) Close() {
	if c, ok := s.store.(io.Closer); ok {
		_ = c.Close()
	}
}
