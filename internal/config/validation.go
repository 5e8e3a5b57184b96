package config

import (
	"fmt"
	"strings"

	"github.com/randalmurphal/kbexport/internal/archive"
	kberrors "github.com/randalmurphal/kbexport/internal/errors"
)

var (
	validEnvironments = []string{"development", "production", "test"}
	validDBDrivers    = []string{"sqlite", "postgres"}
	validBlobDrivers  = []string{"fs", "gcs"}
	validFormats      = []string{"json", "markdown"}
)

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if !oneOf(c.Environment, validEnvironments) {
		return kberrors.ErrConfigInvalid("environment", mustBe(validEnvironments))
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return kberrors.ErrConfigMissing("database.path")
		}
	case "postgres":
		if c.Database.DSN == "" {
			return kberrors.ErrConfigMissing("database.dsn")
		}
	default:
		return kberrors.ErrConfigInvalid("database.driver", mustBe(validDBDrivers))
	}

	switch c.Blob.Driver {
	case "fs":
		if c.Blob.Dir == "" {
			return kberrors.ErrConfigMissing("blob.dir")
		}
	case "gcs":
		if c.Blob.Bucket == "" {
			return kberrors.ErrConfigMissing("blob.bucket")
		}
	default:
		return kberrors.ErrConfigInvalid("blob.driver", mustBe(validBlobDrivers))
	}
	if c.Blob.Cache.Enabled && !c.Blob.Cache.InMemory && c.Blob.Cache.Dir == "" {
		return kberrors.ErrConfigMissing("blob.cache.dir")
	}
	if c.Blob.Cache.TTL < 0 {
		return kberrors.ErrConfigInvalid("blob.cache.ttl", "must not be negative")
	}

	if !oneOf(strings.ToLower(c.Export.Format), validFormats) {
		return kberrors.ErrConfigInvalid("export.format", mustBe(validFormats))
	}
	if _, err := archive.ParseFormat(c.Export.Archive); err != nil {
		return kberrors.ErrConfigInvalid("export.archive", "must be one of: zip, tar.zst")
	}
	if c.Export.AttachmentConcurrency < 1 {
		return kberrors.ErrConfigInvalid("export.attachment_concurrency", "must be at least 1")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return kberrors.ErrConfigInvalid("server.port", fmt.Sprintf("%d is not a valid port", c.Server.Port))
	}
	return nil
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

func mustBe(allowed []string) string {
	return "must be one of: " + strings.Join(allowed, ", ")
}
