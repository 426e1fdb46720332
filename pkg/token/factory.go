package token

import (
	"fmt"
)

// StoreType represents the type of store to create
type StoreType string

const (
	// MemoryStoreType keeps the pair in process memory
	MemoryStoreType StoreType = "memory"
	// RedisStoreType keeps the pair in Redis
	RedisStoreType StoreType = "redis"
	// FileStoreType keeps the pair encrypted on disk
	FileStoreType StoreType = "file"
)

// FileConfig configures the encrypted file store.
type FileConfig struct {
	Path       string
	Passphrase string
}

// Config holds the configuration for creating a token store
type Config struct {
	Type  StoreType
	Redis *RedisConfig // only used when Type is RedisStoreType
	File  *FileConfig  // only used when Type is FileStoreType
}

// DefaultConfig returns a default configuration with memory store
func DefaultConfig() *Config {
	return &Config{Type: MemoryStoreType}
}

// NewStore creates a token store based on the provided configuration
func NewStore(config *Config, opts ...Option) (Store, error) {
	if config == nil {
		config = DefaultConfig()
	}

	switch config.Type {
	case MemoryStoreType, "":
		return NewMemoryStore(), nil

	case RedisStoreType:
		return NewRedisStore(config.Redis, opts...)

	case FileStoreType:
		if config.File == nil {
			return nil, fmt.Errorf("file store requires a file configuration")
		}
		return NewFileStore(config.File.Path, config.File.Passphrase, opts...)

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedStore, config.Type)
	}
}

// MustNewStore creates a token store and panics on error
func MustNewStore(config *Config, opts ...Option) Store {
	store, err := NewStore(config, opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to create token store: %v", err))
	}
	return store
}
