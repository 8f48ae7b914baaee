package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"stillpoint/core"
)

// settingsStore owns the user's meditation settings and their YAML file.
type settingsStore struct {
	path string

	mu      sync.Mutex
	current core.Settings
}

// loadSettingsStore reads path. A missing file yields defaults; invalid
// values are normalized rather than rejected.
func loadSettingsStore(path string) (*settingsStore, error) {
	s := &settingsStore{path: ExpandPath(path), current: core.DefaultSettings()}

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("read settings file: %w", err)
	}

	settings := core.DefaultSettings()
	if err := yaml.Unmarshal(raw, &settings); err != nil {
		return nil, fmt.Errorf("parse settings yaml: %w", err)
	}
	s.current = settings.Normalize()
	return s, nil
}

// Current returns the settings in effect.
func (s *settingsStore) Current() core.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Save replaces the current settings and writes them atomically.
// The in-memory value is updated even if the write fails.
func (s *settingsStore) Save(settings core.Settings) error {
	settings = settings.Normalize()

	s.mu.Lock()
	s.current = settings
	s.mu.Unlock()

	serialized, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshal settings yaml: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".settings-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp settings file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(serialized); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write settings file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close settings file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace settings file: %w", err)
	}
	return nil
}
