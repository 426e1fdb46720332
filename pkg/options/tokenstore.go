package options

import (
	"errors"
	"time"

	"github.com/spf13/pflag"

	"github.com/moweilong/tradeclient/pkg/token"
)

// RedisStoreOptions configures the Redis token store.
type RedisStoreOptions struct {
	Addr     string        `json:"addr" mapstructure:"addr"`
	Password string        `json:"-" mapstructure:"password"`
	DB       int           `json:"db" mapstructure:"db" validate:"gte=0"`
	Key      string        `json:"key" mapstructure:"key"`
	TTL      time.Duration `json:"ttl" mapstructure:"ttl"`
}

// FileStoreOptions configures the encrypted file token store.
type FileStoreOptions struct {
	Path string `json:"path" mapstructure:"path"`
	// Passphrase is better supplied through the environment than a config file.
	Passphrase string `json:"-" mapstructure:"passphrase"`
}

// TokenStoreOptions selects and configures where the session tokens live.
type TokenStoreOptions struct {
	Type  string             `json:"type" mapstructure:"type" validate:"oneof=memory redis file"`
	Redis *RedisStoreOptions `json:"redis" mapstructure:"redis"`
	File  *FileStoreOptions  `json:"file" mapstructure:"file"`
}

// NewTokenStoreOptions creates a TokenStoreOptions object with default parameters.
func NewTokenStoreOptions() *TokenStoreOptions {
	def := token.DefaultRedisConfig()
	return &TokenStoreOptions{
		Type:  string(token.MemoryStoreType),
		Redis: &RedisStoreOptions{Addr: def.Addr, Key: def.Key},
		File:  &FileStoreOptions{},
	}
}

// AddFlags adds flags related to the token store to the specified FlagSet.
func (o *TokenStoreOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Type, "token-store.type", o.Type, "Where session tokens are kept: memory, redis or file.")
	fs.StringVar(&o.Redis.Addr, "token-store.redis.addr", o.Redis.Addr, "Redis address of the token store.")
	fs.StringVar(&o.Redis.Password, "token-store.redis.password", o.Redis.Password, "Redis password of the token store.")
	fs.IntVar(&o.Redis.DB, "token-store.redis.db", o.Redis.DB, "Redis database of the token store.")
	fs.StringVar(&o.Redis.Key, "token-store.redis.key", o.Redis.Key, "Redis key holding the session.")
	fs.DurationVar(&o.Redis.TTL, "token-store.redis.ttl", o.Redis.TTL, "Expiry of the stored session, 0 keeps it until logout.")
	fs.StringVar(&o.File.Path, "token-store.file.path", o.File.Path, "Encrypted session file.")
	fs.StringVar(&o.File.Passphrase, "token-store.file.passphrase", o.File.Passphrase, "Passphrase of the session file.")
}

// Validate verifies flags passed to TokenStoreOptions.
func (o *TokenStoreOptions) Validate() []error {
	errs := validateStruct(o)

	switch token.StoreType(o.Type) {
	case token.RedisStoreType:
		if o.Redis == nil || o.Redis.Addr == "" {
			errs = append(errs, errors.New("token-store.redis.addr is required for the redis store"))
		}
	case token.FileStoreType:
		if o.File == nil || o.File.Path == "" {
			errs = append(errs, errors.New("token-store.file.path is required for the file store"))
		}
		if o.File == nil || o.File.Passphrase == "" {
			errs = append(errs, errors.New("token-store.file.passphrase is required for the file store"))
		}
	}

	return errs
}

// StoreConfig builds the token store configuration.
func (o *TokenStoreOptions) StoreConfig() *token.Config {
	cfg := &token.Config{Type: token.StoreType(o.Type)}
	if o.Redis != nil {
		cfg.Redis = &token.RedisConfig{
			Addr:     o.Redis.Addr,
			Password: o.Redis.Password,
			DB:       o.Redis.DB,
			Key:      o.Redis.Key,
			TTL:      o.Redis.TTL,
		}
	}
	if o.File != nil {
		cfg.File = &token.FileConfig{Path: o.File.Path, Passphrase: o.File.Passphrase}
	}
	return cfg
}
