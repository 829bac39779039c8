package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Storage reads and writes the whole settings document.
type Storage interface {
	Read() ([]byte, error)
	Write(data []byte) error
}

// FileStorage stores the settings document in a single file.
type FileStorage string

func (f FileStorage) Read() ([]byte, error) {
	return os.ReadFile(string(f))
}

// Write replaces the file atomically: a reader sees either the previous or
// the new document, never a partial one.
func (f FileStorage) Write(data []byte) error {
	path := string(f)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".settings-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write settings: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close settings: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("chmod settings: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}
