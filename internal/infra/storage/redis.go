package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	zlog "github.com/rs/zerolog/log"
)

// RedisSettings configures the redis backend.
type RedisSettings struct {
	Addr       string `mapstructure:"addr" default:"localhost:6379" validate:"required"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db" validate:"gte=0"`
	KeyPrefix  string `mapstructure:"key_prefix" default:"sidebox"`
	TTLSeconds int    `mapstructure:"ttl_sec" default:"86400" validate:"gte=0"`
}

// RedisStore keeps session values in redis, namespaced by session ID.
// Each write refreshes the key's TTL.
type RedisStore struct {
	client    *redis.Client
	namespace string
	ttl       time.Duration
}

// NewRedisStore connects to redis and verifies the connection.
func NewRedisStore(ctx context.Context, settings RedisSettings, sessionID string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     settings.Addr,
		Password: settings.Password,
		DB:       settings.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrapf(err, "failed to connect to redis at %s", settings.Addr)
	}

	zlog.Info().Msgf("storage: connected to redis: addr=%s db=%d", settings.Addr, settings.DB)
	return &RedisStore{
		client:    client,
		namespace: namespace(settings.KeyPrefix, sessionID),
		ttl:       time.Duration(settings.TTLSeconds) * time.Second,
	}, nil
}

// Get returns the value stored under key.
func (s *RedisStore) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "redis get %s", key)
	}
	return json.RawMessage(data), true, nil
}

// Set stores value under key.
func (s *RedisStore) Set(ctx context.Context, key string, value json.RawMessage) error {
	if err := s.client.Set(ctx, s.key(key), []byte(value), s.ttl).Err(); err != nil {
		return errors.Wrapf(err, "redis set %s", key)
	}
	return nil
}

// Close closes the redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) key(k string) string {
	return s.namespace + k
}

// namespace builds the key prefix for one session.
func namespace(prefix, sessionID string) string {
	if prefix == "" {
		return sessionID + ":"
	}
	return prefix + ":" + sessionID + ":"
}
