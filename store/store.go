// Package store persists the settings that authenticated commands can
// change at runtime, so a restart does not fall back to the defaults.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// DefaultFilePermissions is used when the settings file is written.
const DefaultFilePermissions = 0o600

// ErrNotFound is returned when the settings file does not exist yet.
var ErrNotFound = errors.New("settings not found")

// Settings is the runtime-mutable part of the configuration.
type Settings struct {
	Key             string `yaml:"key"`
	RelayActiveHigh bool   `yaml:"relay_active_high"`
}

// Repository defines persistence operations for the runtime settings.
type Repository interface {
	Load(ctx context.Context) (Settings, error)
	Save(ctx context.Context, s Settings) error
}

// FileRepository persists the settings to a YAML file on disk.
type FileRepository struct {
	// path is the filesystem location of the settings file.
	path string
	// mu protects concurrent access to the settings file.
	mu sync.Mutex
}

// NewFileRepository creates a repository that reads/writes YAML at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Load reads the settings from disk.
func (r *FileRepository) Load(_ context.Context) (Settings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Settings{}, ErrNotFound
		}

		return Settings{}, fmt.Errorf("read settings file: %w", err)
	}

	var s Settings
	if err = yaml.Unmarshal(contents, &s); err != nil {
		return Settings{}, fmt.Errorf("decode settings file: %w", err)
	}

	return s, nil
}

// Save writes the settings to disk. The file is replaced atomically so a
// power cut never leaves a truncated file behind.
func (r *FileRepository) Save(_ context.Context, s Settings) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	tmp := r.path + ".tmp"
	if err = os.WriteFile(tmp, data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings file: %w", err)
	}
	if err = os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("replace settings file: %w", err)
	}

	return nil
}

// Nop discards every save and never has settings to load.
type Nop struct{}

func (Nop) Load(context.Context) (Settings, error) { return Settings{}, ErrNotFound }

func (Nop) Save(context.Context, Settings) error { return nil }
