package config

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// ConfigSource indicates where a configuration value came from.
type ConfigSource string

const (
	// SourceDefault indicates a built-in default value.
	SourceDefault ConfigSource = "default"
	// SourceSystem indicates /etc/kbexport/config.yaml.
	SourceSystem ConfigSource = "system"
	// SourceUser indicates ~/.kbexport/config.yaml.
	SourceUser ConfigSource = "user"
	// SourceProject indicates .kbexport/config.yaml or an explicit --config file.
	SourceProject ConfigSource = "project"
	// SourceEnv indicates an environment variable override.
	SourceEnv ConfigSource = "env"
	// SourceFlag indicates a CLI flag override.
	SourceFlag ConfigSource = "flag"
)

// TrackedSource contains both the source type and the file path.
type TrackedSource struct {
	Source ConfigSource
	Path   string // File path or empty for defaults/env
}

// String returns a human-readable source description.
func (ts TrackedSource) String() string {
	if ts.Path == "" {
		return string(ts.Source)
	}
	return fmt.Sprintf("%s: %s", ts.Source, ts.Path)
}

// TrackedConfig wraps a Config with source tracking.
type TrackedConfig struct {
	// Config is the merged configuration.
	Config *Config

	// Sources maps dotted config paths to where their value came from.
	// Paths without an entry hold their default.
	Sources map[string]TrackedSource
}

// NewTrackedConfig creates a new TrackedConfig with defaults.
func NewTrackedConfig() *TrackedConfig {
	return &TrackedConfig{
		Config:  Default(),
		Sources: make(map[string]TrackedSource),
	}
}

// SetSource records the source for a config path.
func (tc *TrackedConfig) SetSource(path string, source ConfigSource) {
	tc.Sources[path] = TrackedSource{Source: source}
}

// SetSourceWithPath records the source and file path for a config path.
func (tc *TrackedConfig) SetSourceWithPath(path string, source ConfigSource, filePath string) {
	tc.Sources[path] = TrackedSource{Source: source, Path: filePath}
}

// GetSource returns the source for a config path.
// Returns SourceDefault if no source is recorded.
func (tc *TrackedConfig) GetSource(path string) ConfigSource {
	if ts, ok := tc.Sources[path]; ok {
		return ts.Source
	}
	return SourceDefault
}

// Entry is one resolved configuration value.
type Entry struct {
	Path   string
	Value  any
	Source TrackedSource
}

// Entries lists every leaf value of the merged config with its source,
// sorted by path.
func (tc *TrackedConfig) Entries() ([]Entry, error) {
	data, err := yaml.Marshal(tc.Config)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	values := make(map[string]any)
	flatten("", raw, values)

	entries := make([]Entry, 0, len(values))
	for path, v := range values {
		src, ok := tc.Sources[path]
		if !ok {
			src = TrackedSource{Source: SourceDefault}
		}
		entries = append(entries, Entry{Path: path, Value: v, Source: src})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

// flatten collects the leaves of a decoded YAML mapping under dotted paths.
func flatten(prefix string, raw map[string]any, out map[string]any) {
	for k, v := range raw {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			flatten(path, nested, out)
			continue
		}
		out[path] = v
	}
}
