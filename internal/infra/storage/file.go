package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// FileSettings configures the file backend.
type FileSettings struct {
	Dir string `mapstructure:"dir" default:".sidebox/sessions" validate:"required"`
}

// FileStore persists one JSON document per session.
// Every Set rewrites the document before returning.
type FileStore struct {
	mu     sync.Mutex
	path   string
	values map[string]json.RawMessage
}

// OpenFileStore opens (or creates) the session document under dir.
// A malformed document is logged and treated as empty.
func OpenFileStore(dir, sessionID string) (*FileStore, error) {
	if !validSessionID(sessionID) {
		return nil, errors.Newf("invalid session id %q", sessionID)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create storage directory")
	}

	s := &FileStore{
		path:   filepath.Join(dir, sessionID+".json"),
		values: make(map[string]json.RawMessage),
	}

	data, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, errors.Wrap(err, "failed to read session document")
	}

	if err := json.Unmarshal(data, &s.values); err != nil {
		zlog.Warn().Msgf("storage: ignoring malformed session document %s: %v", s.path, err)
		s.values = make(map[string]json.RawMessage)
	}
	return s, nil
}

// sessionIDPattern limits session ids to a single path element.
var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

func validSessionID(id string) bool {
	return id != "." && id != ".." && sessionIDPattern.MatchString(id)
}

// Path returns the session document path.
func (s *FileStore) Path() string {
	return s.path
}

// Get returns the value stored under key.
func (s *FileStore) Get(_ context.Context, key string) (json.RawMessage, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.values[key]
	if !ok {
		return nil, false, nil
	}
	return append(json.RawMessage(nil), v...), true, nil
}

// Set stores value under key and writes the session document.
// On write failure the in-memory value is still updated.
func (s *FileStore) Set(_ context.Context, key string, value json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = append(json.RawMessage(nil), value...)
	return s.flushLocked()
}

// Close is a no-op; every Set is already durable.
func (s *FileStore) Close() error {
	return nil
}

// flushLocked writes the document atomically via a temp file.
func (s *FileStore) flushLocked() error {
	data, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode session document")
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "failed to create temp file")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrap(err, "failed to write session document")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "failed to close session document")
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "failed to replace session document")
	}
	return nil
}
