package app

import (
	"bufio"
	"errors"
	"fmt"
	"net/http"
	"strings"

	json "github.com/bytedance/sonic"
	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/moweilong/tradeclient/cmd/tradectl/app/options"
)

func newLoginCommand(opts *options.ClientOptions) *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				fmt.Fprint(cmd.OutOrStdout(), "Password: ")
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("failed to read password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}

			s, err := newSession(cmd, opts)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.auth.Login(cmd.Context(), username, password); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("Logged in as %s", username))
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Account username.")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Account password, prompted for when empty.")
	_ = cmd.MarkFlagRequired("username")

	return cmd
}

func newLogoutCommand(opts *options.ClientOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, opts)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.auth.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func newProfileCommand(opts *options.ClientOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "profile",
		Short: "Show the signed in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, opts)
			if err != nil {
				return err
			}
			defer s.Close()

			p, err := s.api.Profile(cmd.Context())
			if err != nil {
				return err
			}

			table := uitable.New()
			table.AddRow("ID:", p.ID)
			table.AddRow("USERNAME:", p.Username)
			table.AddRow("EMAIL:", p.Email)
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	}
}

func newGetCommand(opts *options.ClientOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "get PATH",
		Short:   "Send a GET request and print the response",
		Example: "  tradectl get /api/orders/",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return request(cmd, opts, http.MethodGet, args[0], nil)
		},
	}
}

func newPostCommand(opts *options.ClientOptions) *cobra.Command {
	var data string

	cmd := &cobra.Command{
		Use:     "post PATH",
		Short:   "Send a POST request with a JSON body and print the response",
		Example: `  tradectl post /api/orders/ --data '{"symbol":"AAPL","side":"buy","qty":1}'`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if data != "" && !gjson.Valid(data) {
				return errors.New("--data must be valid JSON")
			}
			var body any
			if data != "" {
				body = []byte(data)
			}
			return request(cmd, opts, http.MethodPost, args[0], body)
		},
	}

	cmd.Flags().StringVarP(&data, "data", "d", "", "JSON request body.")

	return cmd
}

func request(cmd *cobra.Command, opts *options.ClientOptions, method, path string, body any) error {
	s, err := newSession(cmd, opts)
	if err != nil {
		return err
	}
	defer s.Close()

	resp, err := s.api.Raw(cmd.Context(), method, path, body)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), prettyJSON(resp.Body))
	return nil
}

func prettyJSON(body []byte) string {
	var v any
	if len(body) == 0 || json.Unmarshal(body, &v) != nil {
		return string(body)
	}
	out, err := json.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return string(body)
	}
	return string(out)
}

func newConfigCommand(opts *options.ClientOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective client configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r := opts.ResilienceOptions

			table := uitable.New()
			table.MaxColWidth = 60
			table.AddRow("KEY", "VALUE")
			table.AddRow("api.base-url", opts.APIOptions.BaseURL)
			table.AddRow("token-store.type", opts.TokenStoreOptions.Type)
			table.AddRow("resilience.platform", r.Platform)
			table.AddRow("resilience.auto-retry-rate-limit-below", r.AutoRetryRateLimitBelow)
			table.AddRow("resilience.max-retry-attempts", r.MaxRetryAttempts)
			table.AddRow("resilience.base-retry-delay", r.BaseRetryDelay)
			table.AddRow("resilience.backoff-multiplier", r.BackoffMultiplier)
			table.AddRow("resilience.max-backoff", r.MaxBackoff)
			table.AddRow("resilience.max-rate-limit-delay", r.MaxRateLimitDelay)
			table.AddRow("resilience.server-error-retry-delay", r.ServerErrorRetryDelay)
			table.AddRow("resilience.network-error-retry-delay", r.NetworkErrorRetryDelay)
			table.AddRow("resilience.max-total-wait", r.MaxTotalWait)
			table.AddRow("resilience.request-timeout", r.RequestTimeout)
			table.AddRow("resilience.proactive-refresh-skew", r.ProactiveRefreshSkew)
			table.AddRow("resilience.requests-per-second", r.RequestsPerSecond)
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	}
}
