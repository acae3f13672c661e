// Package config loads the repository configuration from a file, the
// environment and command line overrides.
package config

import "time"

// Config is the whole repository configuration
type Config struct {
	Listen           string        `mapstructure:"listen"`
	SiteRoot         string        `mapstructure:"site_root"`
	DistributionPath string        `mapstructure:"distribution_path"`
	StorageRoot      string        `mapstructure:"storage_root"`
	OsMajorCeiling   int           `mapstructure:"os_major_ceiling"`
	DefaultLanguage  string        `mapstructure:"default_language"`
	Sources          []string      `mapstructure:"sources"`
	GPGPublicKeys    []string      `mapstructure:"gpg_public_keys"`
	ReloadInterval   time.Duration `mapstructure:"reload_interval"`
	Cache            CacheConfig   `mapstructure:"cache"`
	Log              LogConfig     `mapstructure:"log"`
}

// CacheConfig controls where source caches are persisted
type CacheConfig struct {
	// Directory "-" keeps caches in memory only
	Directory string `mapstructure:"directory"`
	Compress  bool   `mapstructure:"compress"`
}

// LogConfig controls the server logger
type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// Overrides are command line values taking precedence over the file
type Overrides struct {
	Sources  []string
	CacheDir string
	Listen   string
	SiteRoot string
}

// Apply copies every non-empty override into c
func (o Overrides) Apply(c *Config) {
	if len(o.Sources) > 0 {
		c.Sources = append([]string(nil), o.Sources...)
	}
	if o.CacheDir != "" {
		c.Cache.Directory = o.CacheDir
	}
	if o.Listen != "" {
		c.Listen = o.Listen
	}
	if o.SiteRoot != "" {
		c.SiteRoot = o.SiteRoot
	}
}
