package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigFile is the configuration file name searched in the
	// current and home directories.
	DefaultConfigFile = ".darkwatch.yaml"

	// xdgConfigFile is the file name inside the XDG config directory.
	xdgConfigFile = "config.yaml"
)

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// LoadConfigFile reads the YAML file at path over cfg. Keys missing from the
// file keep the values already in cfg, so callers pass NewConfig() to
// overlay the file on the defaults.
// If the file does not exist, it returns ErrConfigNotFound.
func LoadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return ErrConfigNotFound
		}
		return err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.ConfigFilePath = path
	return nil
}

// Load returns the defaults overlaid with the configuration file found by
// FindConfigFile. An explicit path that does not exist is an error; a
// missing file in the search locations is not.
func Load(configPath string) (*Config, error) {
	cfg := NewConfig()

	path := FindConfigFile(configPath)
	if path == "" {
		if configPath != "" {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
		}
		return cfg, nil
	}
	if err := LoadConfigFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .darkwatch.yaml in the current directory
// 3. Look for .darkwatch.yaml in the user's home directory
// 4. Look for config.yaml in the XDG config directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	var candidates []string
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, DefaultConfigFile))
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, DefaultConfigFile))
	}
	candidates = append(candidates, filepath.Join(XDGConfigDir(), xdgConfigFile))

	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}
