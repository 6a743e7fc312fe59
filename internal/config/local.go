package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultDataDir returns ~/.arise, or .arise in the working directory when
// there is no home directory.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".arise"
	}
	return filepath.Join(home, ".arise")
}

// EnsureDataDir creates the data directory and its subdirectories
func EnsureDataDir(dir string) error {
	for _, subdir := range []string{"", "logs"} {
		path := filepath.Join(dir, subdir)
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("create dir %s: %w", path, err)
		}
	}
	return nil
}

// LogDir returns the directory for log files
func (c *Config) LogDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// LoadFile overlays settings from a YAML file. Keys missing from the file
// keep their current values. Secrets are only read from the environment.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// SaveFile writes the non-secret settings as YAML
func (c *Config) SaveFile(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
