package options

import (
	"os"
	"path/filepath"

	"github.com/spf13/pflag"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/moweilong/tradeclient/pkg/log"
	genericoptions "github.com/moweilong/tradeclient/pkg/options"
	"github.com/moweilong/tradeclient/pkg/token"
)

// defaultSessionFile is where the encrypted session is kept, relative to the home directory.
const defaultSessionFile = ".tradectl/session.bin"

// ClientOptions contains the configuration options of tradectl.
type ClientOptions struct {
	// APIOptions locates the trading API.
	APIOptions *genericoptions.APIOptions `json:"api" mapstructure:"api"`
	// ResilienceOptions tunes the request pipeline and the retry policy.
	ResilienceOptions *genericoptions.ResilienceOptions `json:"resilience" mapstructure:"resilience"`
	// TokenStoreOptions selects where the session is kept.
	TokenStoreOptions *genericoptions.TokenStoreOptions `json:"token-store" mapstructure:"token-store"`
	// LogOptions used to specify the log options.
	LogOptions *log.Options `json:"log" mapstructure:"log"`
}

// NewClientOptions creates a ClientOptions instance with default values.
func NewClientOptions() *ClientOptions {
	opts := &ClientOptions{
		APIOptions:        genericoptions.NewAPIOptions(),
		ResilienceOptions: genericoptions.NewResilienceOptions(),
		TokenStoreOptions: genericoptions.NewTokenStoreOptions(),
		LogOptions:        log.NewOptions(),
	}

	// A command line tool outlives its process, so the session goes to disk.
	opts.TokenStoreOptions.Type = string(token.FileStoreType)
	if home, err := os.UserHomeDir(); err == nil {
		opts.TokenStoreOptions.File.Path = filepath.Join(home, defaultSessionFile)
	}
	opts.APIOptions.UserAgent = "tradectl"
	opts.LogOptions.Level = "warn"

	return opts
}

// AddFlags binds the options in ClientOptions to command-line flags.
func (o *ClientOptions) AddFlags(fs *pflag.FlagSet) {
	o.APIOptions.AddFlags(fs)
	o.ResilienceOptions.AddFlags(fs)
	o.TokenStoreOptions.AddFlags(fs)
	o.LogOptions.AddFlags(fs)
}

// Complete completes all the required options.
func (o *ClientOptions) Complete() error {
	return o.ResilienceOptions.Complete()
}

// Validate checks whether the options in ClientOptions are valid.
func (o *ClientOptions) Validate() error {
	errs := []error{}

	errs = append(errs, o.APIOptions.Validate()...)
	errs = append(errs, o.ResilienceOptions.Validate()...)
	errs = append(errs, o.TokenStoreOptions.Validate()...)
	errs = append(errs, o.LogOptions.Validate()...)

	// Aggregate all errors and return them.
	return utilerrors.NewAggregate(errs)
}
