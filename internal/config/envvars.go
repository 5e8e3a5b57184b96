package config

import (
	"strconv"
	"strings"
	"time"
)

// EnvVarMapping defines the mapping between environment variables and config paths.
var EnvVarMapping = map[string]string{
	"KBX_ENVIRONMENT":            "environment",
	"KBX_DB_DRIVER":              "database.driver",
	"KBX_DB_PATH":                "database.path",
	"KBX_DB_DSN":                 "database.dsn",
	"KBX_BLOB_DRIVER":            "blob.driver",
	"KBX_BLOB_DIR":               "blob.dir",
	"KBX_BLOB_BUCKET":            "blob.bucket",
	"KBX_BLOB_PROJECT":           "blob.project",
	"KBX_BLOB_CREDENTIALS_FILE":  "blob.credentials_file",
	"KBX_BLOB_CACHE_ENABLED":     "blob.cache.enabled",
	"KBX_BLOB_CACHE_DIR":         "blob.cache.dir",
	"KBX_BLOB_CACHE_IN_MEMORY":   "blob.cache.in_memory",
	"KBX_BLOB_CACHE_TTL":         "blob.cache.ttl",
	"KBX_EXPORT_FORMAT":          "export.format",
	"KBX_EXPORT_ARCHIVE":         "export.archive",
	"KBX_ATTACHMENT_CONCURRENCY": "export.attachment_concurrency",
	"KBX_TEMP_DIR":               "export.temp_dir",
	"KBX_HOST":                   "server.host",
	"KBX_PORT":                   "server.port",
}

// ApplyEnvVars applies environment variable overrides to a TrackedConfig.
// Returns a list of paths that were overridden.
func ApplyEnvVars(tc *TrackedConfig, getenv func(string) string) []string {
	var overridden []string

	for envVar, configPath := range EnvVarMapping {
		value := getenv(envVar)
		if value == "" {
			continue
		}

		if applyEnvVar(tc.Config, configPath, value) {
			tc.SetSource(configPath, SourceEnv)
			overridden = append(overridden, configPath)
		}
	}

	return overridden
}

// applyEnvVar applies a single environment variable to the config.
// Returns true if the value was applied.
func applyEnvVar(cfg *Config, path string, value string) bool {
	switch path {
	case "environment":
		cfg.Environment = value
	case "database.driver":
		cfg.Database.Driver = value
	case "database.path":
		cfg.Database.Path = value
	case "database.dsn":
		cfg.Database.DSN = value
	case "blob.driver":
		cfg.Blob.Driver = value
	case "blob.dir":
		cfg.Blob.Dir = value
	case "blob.bucket":
		cfg.Blob.Bucket = value
	case "blob.project":
		cfg.Blob.Project = value
	case "blob.credentials_file":
		cfg.Blob.CredentialsFile = value
	case "blob.cache.enabled":
		cfg.Blob.Cache.Enabled = parseBool(value)
	case "blob.cache.dir":
		cfg.Blob.Cache.Dir = value
	case "blob.cache.in_memory":
		cfg.Blob.Cache.InMemory = parseBool(value)
	case "blob.cache.ttl":
		d, err := time.ParseDuration(value)
		if err != nil {
			return false
		}
		cfg.Blob.Cache.TTL = d
	case "export.format":
		cfg.Export.Format = value
	case "export.archive":
		cfg.Export.Archive = value
	case "export.attachment_concurrency":
		v, err := strconv.Atoi(value)
		if err != nil {
			return false
		}
		cfg.Export.AttachmentConcurrency = v
	case "export.temp_dir":
		cfg.Export.TempDir = value
	case "server.host":
		cfg.Server.Host = value
	case "server.port":
		v, err := strconv.Atoi(value)
		if err != nil {
			return false
		}
		cfg.Server.Port = v
	default:
		return false
	}
	return true
}

// parseBool parses a boolean string value.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}
