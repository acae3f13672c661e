package config

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/ralt/spkrepo/internal/cache"
	"github.com/ralt/spkrepo/internal/projection"
	"github.com/ralt/spkrepo/internal/selector"
)

// EnvPrefix prefixes environment variables overriding configuration keys,
// e.g. SPKREPO_CACHE_DIRECTORY
const EnvPrefix = "SPKREPO"

// Load reads the configuration file at path, if any, applies defaults and
// environment overrides. The result is not validated; call Validate once
// command line overrides have been applied.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		secondsDecodeHook(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen", ":8080")
	v.SetDefault("site_root", "")
	v.SetDefault("distribution_path", projection.DefaultDistributionPath)
	v.SetDefault("storage_root", ".")
	v.SetDefault("os_major_ceiling", selector.DefaultOsMajorCeiling)
	v.SetDefault("default_language", projection.DefaultLanguage)
	v.SetDefault("sources", []string{})
	v.SetDefault("gpg_public_keys", []string{})
	v.SetDefault("reload_interval", "0s")
	v.SetDefault("cache.directory", cache.DefaultDirectory())
	v.SetDefault("cache.compress", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 10)
	v.SetDefault("log.compress", true)
}

func applyDefaults(c *Config) {
	c.DefaultLanguage = strings.ToLower(strings.TrimSpace(c.DefaultLanguage))
	if c.DefaultLanguage == "" {
		c.DefaultLanguage = projection.DefaultLanguage
	}
	if c.DistributionPath == "" {
		c.DistributionPath = projection.DefaultDistributionPath
	}
	if c.OsMajorCeiling == 0 {
		c.OsMajorCeiling = selector.DefaultOsMajorCeiling
	}
	c.SiteRoot = strings.TrimSpace(c.SiteRoot)
}

// secondsDecodeHook accepts plain numbers of seconds for durations
func secondsDecodeHook() mapstructure.DecodeHookFunc {
	target := reflect.TypeOf(time.Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != target {
			return data, nil
		}
		switch v := data.(type) {
		case int:
			return time.Duration(v) * time.Second, nil
		case int64:
			return time.Duration(v) * time.Second, nil
		case float64:
			return time.Duration(v * float64(time.Second)), nil
		default:
			return data, nil
		}
	}
}
