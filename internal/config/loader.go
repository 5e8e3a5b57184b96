package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Loader resolves the layered configuration. Empty paths are skipped.
type Loader struct {
	SystemPath  string
	UserPath    string
	ProjectPath string
	// Getenv reads environment overrides. Defaults to os.Getenv.
	Getenv func(string) string
}

// DefaultLoader returns a loader for the standard locations. A non-empty
// configFile replaces the project config path.
func DefaultLoader(configFile string) *Loader {
	l := &Loader{
		SystemPath:  "/etc/kbexport/config.yaml",
		ProjectPath: filepath.Join(Dir, ConfigFileName),
		Getenv:      os.Getenv,
	}
	if home, err := os.UserHomeDir(); err == nil {
		l.UserPath = filepath.Join(home, Dir, ConfigFileName)
	}
	if configFile != "" {
		l.ProjectPath = configFile
	}
	return l
}

// LoadWithSources loads configuration with source tracking from the
// standard locations.
func LoadWithSources(configFile string) (*TrackedConfig, error) {
	return DefaultLoader(configFile).Load()
}

// Load resolves configuration with source tracking.
// Load order (later sources override earlier):
//  1. Built-in defaults
//  2. System config (/etc/kbexport/config.yaml) - optional
//  3. User config (~/.kbexport/config.yaml) - optional
//  4. Project config (.kbexport/config.yaml or --config)
//  5. Environment variables (KBX_*)
func (l *Loader) Load() (*TrackedConfig, error) {
	tc := NewTrackedConfig()

	for _, layer := range []struct {
		path   string
		source ConfigSource
	}{
		{l.SystemPath, SourceSystem},
		{l.UserPath, SourceUser},
	} {
		if layer.path == "" {
			continue
		}
		if _, err := os.Stat(layer.path); err != nil {
			continue
		}
		if err := mergeFromFile(tc, layer.path, layer.source); err != nil {
			slog.Warn("failed to load config", "source", layer.source, "path", layer.path, "error", err)
		}
	}

	if l.ProjectPath != "" {
		if _, err := os.Stat(l.ProjectPath); err == nil {
			// Project config errors are fatal
			if err := mergeFromFile(tc, l.ProjectPath, SourceProject); err != nil {
				return nil, err
			}
		}
	}

	getenv := l.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	ApplyEnvVars(tc, getenv)

	return tc, nil
}

// mergeFromFile decodes the file over tc.Config. Only keys present in the
// file change, so each layer overrides exactly what it sets.
func mergeFromFile(tc *TrackedConfig, path string, source ConfigSource) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	// Parse YAML into a map to track which fields are set
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	merged := *tc.Config
	if err := yaml.Unmarshal(data, &merged); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	*tc.Config = merged

	set := make(map[string]any)
	flatten("", raw, set)
	for key := range set {
		tc.SetSourceWithPath(key, source, path)
	}
	return nil
}
