package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Backend is a flat key/value config source.
type Backend interface {
	Get(key string) (string, bool)
	Set(key, value string) error
}

// configPath is overridable in tests.
var configPath = defaultConfigPath

func defaultConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "valet", "config.json"), nil
}

type fileBackend struct {
	path   string
	values map[string]string
}

// openFileBackend loads the config file. Returns nil when no file exists.
func openFileBackend() (Backend, error) {
	path, err := configPath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	values := map[string]string{}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &fileBackend{path: path, values: values}, nil
}

func openOrCreateFileBackend() (Backend, error) {
	backend, err := openFileBackend()
	if err != nil {
		return nil, err
	}
	if backend != nil {
		return backend, nil
	}
	path, err := configPath()
	if err != nil {
		return nil, err
	}
	return &fileBackend{path: path, values: map[string]string{}}, nil
}

func (b *fileBackend) Get(key string) (string, bool) {
	v, ok := b.values[key]
	return v, ok
}

func (b *fileBackend) Set(key, value string) error {
	b.values[key] = value
	if err := os.MkdirAll(filepath.Dir(b.path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(b.values, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(b.path, data, 0o600)
}
