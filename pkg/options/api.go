package options

import (
	"github.com/spf13/pflag"

	"github.com/moweilong/tradeclient/pkg/httpcli"
)

// DefaultLoginPath is the endpoint exchanging credentials for a token pair.
const DefaultLoginPath = "/api/users/token/"

// APIOptions locates the trading API.
type APIOptions struct {
	BaseURL     string `json:"base-url" mapstructure:"base-url" validate:"required,url"`
	LoginPath   string `json:"login-path" mapstructure:"login-path" validate:"required,startswith=/"`
	RefreshPath string `json:"refresh-path" mapstructure:"refresh-path" validate:"required,startswith=/"`
	UserAgent   string `json:"user-agent" mapstructure:"user-agent"`
}

// NewAPIOptions creates an APIOptions object with default parameters.
func NewAPIOptions() *APIOptions {
	return &APIOptions{
		BaseURL:     "http://127.0.0.1:8000",
		LoginPath:   DefaultLoginPath,
		RefreshPath: httpcli.DefaultRefreshPath,
	}
}

// AddFlags adds flags related to the trading API to the specified FlagSet.
func (o *APIOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.BaseURL, "api.base-url", o.BaseURL, "Base URL of the trading API.")
	fs.StringVar(&o.LoginPath, "api.login-path", o.LoginPath, "Path of the login endpoint.")
	fs.StringVar(&o.RefreshPath, "api.refresh-path", o.RefreshPath, "Path of the token refresh endpoint.")
	fs.StringVar(&o.UserAgent, "api.user-agent", o.UserAgent, "User-Agent sent with every request.")
}

// Validate verifies flags passed to APIOptions.
func (o *APIOptions) Validate() []error {
	return validateStruct(o)
}

// ClientOptions converts the options into request pipeline options.
func (o *APIOptions) ClientOptions() []httpcli.Option {
	return []httpcli.Option{
		httpcli.WithRefreshPath(o.RefreshPath),
		httpcli.WithUserAgent(o.UserAgent),
	}
}
