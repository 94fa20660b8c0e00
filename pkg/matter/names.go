package matter

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/urmzd/zigman/pkg/device"
)

// nameStore persists friendly-name overrides for Matter nodes. The server
// has no writable label field, so names live on our side.
type nameStore struct {
	path string

	mu    sync.Mutex
	names map[string]string
}

func newNameStore(path string) *nameStore {
	return &nameStore{path: path, names: make(map[string]string)}
}

func (s *nameStore) load() error {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	var names map[string]string
	if err := json.Unmarshal(raw, &names); err != nil {
		return fmt.Errorf("parse %s: %w", s.path, err)
	}
	s.mu.Lock()
	s.names = names
	s.mu.Unlock()
	return nil
}

func (s *nameStore) get(ieee string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name, ok := s.names[ieee]
	return name, ok
}

func (s *nameStore) set(ieee, name string) error {
	s.mu.Lock()
	s.names[ieee] = name
	raw, err := json.MarshalIndent(s.names, "", "  ")
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("encode names: %w: %w", err, device.ErrPersistence)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w: %w", err, device.ErrPersistence)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w: %w", err, device.ErrPersistence)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write names: %w: %w", err, device.ErrPersistence)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w: %w", err, device.ErrPersistence)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace names file: %w: %w", err, device.ErrPersistence)
	}
	return nil
}
