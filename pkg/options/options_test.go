package options

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moweilong/tradeclient/pkg/retry"
	"github.com/moweilong/tradeclient/pkg/token"
)

func TestPlatformProfiles(t *testing.T) {
	web, err := ForPlatform(PlatformWeb)
	require.NoError(t, err)
	mobile, err := ForPlatform(PlatformMobile)
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, web.AutoRetryRateLimitBelow)
	assert.Equal(t, 3*time.Second, mobile.AutoRetryRateLimitBelow)
	assert.Less(t, mobile.MaxRetryAttempts, web.MaxRetryAttempts)
	assert.Less(t, mobile.RequestTimeout, web.RequestTimeout)
	assert.Equal(t, retry.WebConfig(), web.RetryConfig())
	assert.Equal(t, retry.MobileConfig(), mobile.RetryConfig())

	_, err = ForPlatform("desktop")
	assert.Error(t, err)
}

func TestResilienceComplete(t *testing.T) {
	o := NewResilienceOptions()
	o.Platform = PlatformMobile
	o.MaxRetryAttempts = 4
	o.AutoRetryRateLimitBelow = -1
	o.MaxTotalWait = -1
	o.RequestsPerSecond = 2
	require.NoError(t, o.Complete())
	assert.Empty(t, o.Validate())

	assert.Equal(t, 4, o.MaxRetryAttempts, "explicit values are kept")
	assert.Equal(t, retry.MobileConfig().ServerErrorDelay, o.ServerErrorRetryDelay)
	assert.Equal(t, 1, o.Burst)

	cfg := o.RetryConfig()
	assert.Zero(t, cfg.MaxTotalWait, "negative means uncapped")
	assert.Len(t, o.ClientOptions(), 5)

	bad := &ResilienceOptions{Platform: "tv"}
	assert.Error(t, bad.Complete())
}

func TestResilienceValidate(t *testing.T) {
	o := NewWebResilienceOptions()
	assert.Empty(t, o.Validate())

	o.Platform = "tv"
	o.MaxRetryAttempts = 0
	o.BackoffMultiplier = 0.5
	o.ServerErrorRetryDelay = -time.Second
	o.BaseRetryDelay = time.Minute
	assert.Len(t, o.Validate(), 5)
}

func TestResilienceFlags(t *testing.T) {
	o := NewResilienceOptions()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	o.AddFlags(fs)

	require.NoError(t, fs.Parse([]string{
		"--resilience.platform=mobile",
		"--resilience.auto-retry-rate-limit-below=2s",
		"--resilience.max-retry-attempts=3",
	}))
	require.NoError(t, o.Complete())
	assert.Equal(t, 2*time.Second, o.AutoRetryRateLimitBelow)
	assert.Equal(t, 3, o.MaxRetryAttempts)
	assert.Equal(t, retry.MobileConfig().MaxBackoff, o.MaxBackoff)
}

func TestTokenStoreOptions(t *testing.T) {
	o := NewTokenStoreOptions()
	assert.Empty(t, o.Validate())
	assert.Equal(t, token.MemoryStoreType, o.StoreConfig().Type)

	o.Type = "file"
	errs := o.Validate()
	assert.Len(t, errs, 2)
	for _, err := range errs {
		assert.NotContains(t, err.Error(), "secret")
	}

	o.File.Path = "/tmp/session.bin"
	o.File.Passphrase = "secret"
	assert.Empty(t, o.Validate())
	cfg := o.StoreConfig()
	assert.Equal(t, token.FileStoreType, cfg.Type)
	assert.Equal(t, &token.FileConfig{Path: "/tmp/session.bin", Passphrase: "secret"}, cfg.File)

	o.Type = "redis"
	o.Redis.Addr = ""
	assert.Len(t, o.Validate(), 1)

	o.Type = "keychain"
	assert.Len(t, o.Validate(), 1)
}

func TestAPIOptions(t *testing.T) {
	o := NewAPIOptions()
	assert.Empty(t, o.Validate())
	assert.Len(t, o.ClientOptions(), 2)

	o.BaseURL = "not a url"
	o.RefreshPath = "refresh"
	assert.Len(t, o.Validate(), 2)
}
