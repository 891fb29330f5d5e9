// Package storage provides session-scoped key/value persistence.
package storage

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"
)

// Store is a key/value store scoped to one browsing session.
// Values are JSON documents.
type Store interface {
	// Get returns the stored value and whether the key exists.
	Get(ctx context.Context, key string) (json.RawMessage, bool, error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value json.RawMessage) error
	// Close releases the store's resources.
	Close() error
}

// Config selects and configures a store backend.
type Config struct {
	Type      string         // "memory", "file" or "redis"
	SessionID string         // Scope of the stored keys
	Settings  map[string]any // Backend specific settings
}

// New creates a store from configuration.
func New(ctx context.Context, cfg Config) (Store, error) {
	if cfg.SessionID == "" {
		return nil, errors.New("session id is required")
	}

	zlog.Debug().Msgf("creating storage: type=%s session_id=%s settings=%+v", cfg.Type, cfg.SessionID, cfg.Settings)
	switch cfg.Type {
	case "memory", "":
		return NewMemoryStore(), nil

	case "file":
		var settings FileSettings
		if err := decodeSettings(cfg.Settings, &settings); err != nil {
			return nil, errors.Wrap(err, "file storage")
		}
		return OpenFileStore(settings.Dir, cfg.SessionID)

	case "redis":
		var settings RedisSettings
		if err := decodeSettings(cfg.Settings, &settings); err != nil {
			return nil, errors.Wrap(err, "redis storage")
		}
		return NewRedisStore(ctx, settings, cfg.SessionID)

	default:
		return nil, errors.Newf("unsupported storage type: %s", cfg.Type)
	}
}

// decodeSettings decodes, defaults and validates backend settings.
func decodeSettings(settings map[string]any, out any) error {
	if err := mapstructure.Decode(settings, out); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(out); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(out); err != nil {
		return errors.Wrap(err, "validation failed")
	}
	return nil
}

// Decode reads key from s into a value of type T.
// A missing key, a read failure or a malformed value yields fallback.
func Decode[T any](ctx context.Context, s Store, key string, fallback T) T {
	raw, ok, err := s.Get(ctx, key)
	if err != nil {
		zlog.Warn().Err(err).Msgf("storage: failed to read %s", key)
		return fallback
	}
	if !ok {
		return fallback
	}

	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		zlog.Warn().Msgf("storage: failed to parse %s: %v", key, err)
		return fallback
	}
	return v
}

// Encode marshals v and stores it under key.
func Encode(ctx context.Context, s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "failed to encode %s", key)
	}
	return s.Set(ctx, key, data)
}
