package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ExampleConfig is a commented configuration covering every option.
//
//go:embed example.toml
var ExampleConfig string

// ErrConfigExists is returned by WriteExample when the target exists.
var ErrConfigExists = errors.New("config file already exists")

// WriteExample writes ExampleConfig to path. An existing file is kept
// unless overwrite is set.
func WriteExample(path string, overwrite bool) error {
	if path == "" {
		path = ConfigPath()
	}

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s", ErrConfigExists, path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return os.WriteFile(path, []byte(ExampleConfig), 0644)
}
