package config

import (
	"errors"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"
)

// Validate checks the configuration shared by every command
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("configuration is nil")
	}

	if len(c.Sources) == 0 {
		return newFieldError("sources", "at least one source directory is required")
	}
	for i, source := range c.Sources {
		if strings.TrimSpace(source) == "" {
			return newFieldError(indexedField("sources", i), "must not be empty")
		}
	}
	for i, key := range c.GPGPublicKeys {
		if strings.TrimSpace(key) == "" {
			return newFieldError(indexedField("gpg_public_keys", i), "must not be empty")
		}
	}

	if c.OsMajorCeiling < 1 {
		return newFieldError("os_major_ceiling", "must be at least 1")
	}
	if !strings.HasPrefix(c.DistributionPath, "/") {
		return newFieldError("distribution_path", "must start with /")
	}
	if c.ReloadInterval < 0 {
		return newFieldError("reload_interval", "must not be negative")
	}
	if c.SiteRoot != "" {
		if err := validateSiteRoot(c.SiteRoot); err != nil {
			return err
		}
	}

	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return newFieldError("log.level", err.Error())
	}
	if c.Log.File != "" {
		if c.Log.MaxSize <= 0 {
			return newFieldError("log.max_size", "must be greater than 0")
		}
		if c.Log.MaxBackups < 0 {
			return newFieldError("log.max_backups", "must not be negative")
		}
	}

	return nil
}

// ValidateServe adds the checks only the HTTP server needs
func (c *Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.SiteRoot == "" {
		return newFieldError("site_root", "is required to serve the repository")
	}
	if strings.TrimSpace(c.Listen) == "" {
		return newFieldError("listen", "must not be empty")
	}
	return nil
}

func validateSiteRoot(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return newFieldError("site_root", err.Error())
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return newFieldError("site_root", "scheme must be http or https")
	}
	if u.Host == "" {
		return newFieldError("site_root", "host is required")
	}
	return nil
}
