package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ralt/spkrepo/internal/cache"
)

func writeTempConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func validConfig() *Config {
	return &Config{
		Listen:           ":8080",
		SiteRoot:         "https://packages.example.com",
		DistributionPath: "/spk",
		OsMajorCeiling:   7,
		DefaultLanguage:  "enu",
		Sources:          []string{"/srv/spk"},
		Log:              LogConfig{Level: "info", MaxSize: 100, MaxBackups: 10},
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Listen)
	assert.Equal(t, "/spk", cfg.DistributionPath)
	assert.Equal(t, ".", cfg.StorageRoot)
	assert.Equal(t, 7, cfg.OsMajorCeiling)
	assert.Equal(t, "enu", cfg.DefaultLanguage)
	assert.Equal(t, cache.DefaultDirectory(), cfg.Cache.Directory)
	assert.False(t, cfg.Cache.Compress)
	assert.Equal(t, time.Duration(0), cfg.ReloadInterval)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 100, cfg.Log.MaxSize)
	assert.Equal(t, 10, cfg.Log.MaxBackups)
	assert.True(t, cfg.Log.Compress)
	assert.Empty(t, cfg.Sources)
}

func TestLoadTOML(t *testing.T) {
	path := writeTempConfig(t, "spkrepo.toml", `
listen = ":9000"
site_root = "https://packages.example.com"
distribution_path = "/synology"
storage_root = "/srv/www"
os_major_ceiling = 8
default_language = "FRE"
sources = ["/srv/www/spk/stable", "/srv/www/spk/beta"]
gpg_public_keys = ["/etc/spkrepo/key.asc"]
reload_interval = "5m"

[cache]
directory = "/var/cache/spkrepo"
compress = true

[log]
level = "debug"
file = "/var/log/spkrepo.log"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Listen)
	assert.Equal(t, "/synology", cfg.DistributionPath)
	assert.Equal(t, "/srv/www", cfg.StorageRoot)
	assert.Equal(t, 8, cfg.OsMajorCeiling)
	assert.Equal(t, "fre", cfg.DefaultLanguage)
	assert.Equal(t, []string{"/srv/www/spk/stable", "/srv/www/spk/beta"}, cfg.Sources)
	assert.Equal(t, []string{"/etc/spkrepo/key.asc"}, cfg.GPGPublicKeys)
	assert.Equal(t, 5*time.Minute, cfg.ReloadInterval)
	assert.Equal(t, "/var/cache/spkrepo", cfg.Cache.Directory)
	assert.True(t, cfg.Cache.Compress)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/var/log/spkrepo.log", cfg.Log.File)
	assert.Equal(t, 100, cfg.Log.MaxSize, "unset keys keep defaults")
	assert.NoError(t, cfg.ValidateServe())
}

func TestLoadYAMLWithSecondsInterval(t *testing.T) {
	path := writeTempConfig(t, "spkrepo.yaml", `
sources:
  - /srv/spk
reload_interval: 90
cache:
  directory: "-"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, cfg.ReloadInterval)
	assert.Equal(t, cache.Disabled, cfg.Cache.Directory)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("SPKREPO_LISTEN", ":7000")
	t.Setenv("SPKREPO_CACHE_DIRECTORY", "/tmp/env-cache")
	t.Setenv("SPKREPO_SOURCES", "/a,/b")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Listen)
	assert.Equal(t, "/tmp/env-cache", cfg.Cache.Directory)
	assert.Equal(t, []string{"/a", "/b"}, cfg.Sources)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestOverridesApply(t *testing.T) {
	cfg := validConfig()
	Overrides{Sources: []string{"/x"}, CacheDir: "-", SiteRoot: "http://localhost"}.Apply(cfg)

	assert.Equal(t, []string{"/x"}, cfg.Sources)
	assert.Equal(t, "-", cfg.Cache.Directory)
	assert.Equal(t, ":8080", cfg.Listen, "empty overrides leave values alone")
	assert.Equal(t, "http://localhost", cfg.SiteRoot)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"no sources", func(c *Config) { c.Sources = nil }, "sources"},
		{"blank source", func(c *Config) { c.Sources = []string{"/ok", " "} }, "sources[1]"},
		{"blank key", func(c *Config) { c.GPGPublicKeys = []string{""} }, "gpg_public_keys[0]"},
		{"ceiling", func(c *Config) { c.OsMajorCeiling = 0 }, "os_major_ceiling"},
		{"distribution path", func(c *Config) { c.DistributionPath = "spk" }, "distribution_path"},
		{"negative interval", func(c *Config) { c.ReloadInterval = -time.Second }, "reload_interval"},
		{"site root scheme", func(c *Config) { c.SiteRoot = "ftp://example.com" }, "site_root"},
		{"site root host", func(c *Config) { c.SiteRoot = "https://" }, "site_root"},
		{"log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"log size", func(c *Config) { c.Log.File = "x.log"; c.Log.MaxSize = 0 }, "log.max_size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			var fieldErr FieldError
			require.True(t, errors.As(err, &fieldErr))
			assert.Equal(t, tt.field, fieldErr.Field)
		})
	}

	assert.NoError(t, validConfig().Validate())
}

func TestValidateServeRequiresSiteRoot(t *testing.T) {
	cfg := validConfig()
	cfg.SiteRoot = ""
	assert.NoError(t, cfg.Validate(), "scanning needs no site root")

	err := cfg.ValidateServe()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "site_root")
}
