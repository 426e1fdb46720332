package token

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	json "github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var _ Store = (*RedisStore)(nil)

// RedisConfig holds the configuration for the Redis store
type RedisConfig struct {
	Addr     string // Redis server address (default: "localhost:6379")
	Password string // Redis password (default: "")
	DB       int    // Redis database number (default: 0)

	TLSConfig *tls.Config // optional

	// Key holds the serialized pair (default: "tradeclient:session")
	Key string
	// TTL expires the stored pair, 0 keeps it until cleared
	TTL time.Duration
}

// DefaultRedisConfig returns a default Redis configuration
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr: "localhost:6379",
		Key:  "tradeclient:session",
	}
}

// RedisStore keeps the pair in a single Redis key so a write replaces both tokens at once.
type RedisStore struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisStore connects to Redis and returns a store.
func NewRedisStore(config *RedisConfig, opts ...Option) (*RedisStore, error) {
	if config == nil {
		config = DefaultRedisConfig()
	}

	client := redis.NewClient(&redis.Options{
		Addr:      config.Addr,
		Password:  config.Password,
		DB:        config.DB,
		TLSConfig: config.TLSConfig,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisStoreWithClient(client, config.Key, config.TTL, opts...), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client redis.UniversalClient, key string, ttl time.Duration, opts ...Option) *RedisStore {
	o := defaultOptions()
	o.apply(opts...)
	if key == "" {
		key = DefaultRedisConfig().Key
	}
	return &RedisStore{
		client: client,
		key:    key,
		ttl:    ttl,
		logger: o.logger,
	}
}

// AccessToken returns the current access token.
func (s *RedisStore) AccessToken(ctx context.Context) string {
	pair, _ := s.Tokens(ctx)
	return pair.Access
}

// RefreshToken returns the current refresh token.
func (s *RedisStore) RefreshToken(ctx context.Context) string {
	pair, _ := s.Tokens(ctx)
	return pair.Refresh
}

// Tokens reads the pair. Read or decode failures are logged and reported as absent.
func (s *RedisStore) Tokens(ctx context.Context) (Pair, bool) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("read token pair from redis failed", zap.String("key", s.key), zap.Error(err))
		}
		return Pair{}, false
	}

	var pair Pair
	if err := json.Unmarshal(data, &pair); err != nil {
		s.logger.Warn("decode token pair failed", zap.String("key", s.key), zap.Error(err))
		return Pair{}, false
	}
	return pair, !pair.IsZero()
}

// SetTokens replaces the stored pair.
func (s *RedisStore) SetTokens(ctx context.Context, pair Pair) error {
	if err := validate(pair); err != nil {
		return err
	}

	data, err := json.Marshal(pair)
	if err != nil {
		return fmt.Errorf("failed to marshal token pair: %w", err)
	}
	if err := s.client.Set(ctx, s.key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store token pair in Redis: %w", err)
	}
	return nil
}

// Clear removes the stored pair.
func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("failed to delete token pair from Redis: %w", err)
	}
	return nil
}

// Close closes the Redis client connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}
