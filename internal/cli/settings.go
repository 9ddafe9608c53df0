package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/sluice"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment variables overriding flags,
// e.g. SLUICE_CACHE_ROOT for --cache-root.
const EnvPrefix = "SLUICE"

// Log formats accepted by --log-format.
const (
	LogText = "text"
	LogJSON = "json"
)

// Settings is the resolved CLI configuration. Values come from flags, then
// SLUICE_* environment variables, then the optional --config file.
type Settings struct {
	Debug     bool   `mapstructure:"debug"`
	LogFormat string `mapstructure:"log-format"`

	CacheRoot string        `mapstructure:"cache-root"`
	WorkRoot  string        `mapstructure:"work-root"`
	RedisURL  string        `mapstructure:"redis-url"`
	LockTTL   time.Duration `mapstructure:"lock-ttl"`

	NoPurge     bool   `mapstructure:"no-purge"`
	MetricsAddr string `mapstructure:"metrics-addr"`
}

// AddFlags declares the settings shared by every command.
func AddFlags(flags *pflag.FlagSet) {
	flags.String("config", "", "Settings file (yaml, json or toml)")
	flags.Bool("debug", false, "Log every stage event")
	flags.String("log-format", LogText, "Log format: text or json")
	flags.String("cache-root", "", "Override the pipeline's cache root")
	flags.String("work-root", "", "Override the pipeline's work root")
	flags.String("redis-url", "", "Lock the cache root through Redis instead of a lock file")
	flags.Duration("lock-ttl", sluice.DefaultLockTTL, "Lease of the Redis lock; renewed while a run holds it")
}

// LoadSettings resolves Settings from flags, environment and config file.
func LoadSettings(flags *pflag.FlagSet) (Settings, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(flags); err != nil {
		return Settings{}, fmt.Errorf("failed to bind flags: %w", err)
	}
	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Settings{}, fmt.Errorf("failed to read settings %s: %w", path, err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("invalid settings: %w", err)
	}
	switch s.LogFormat {
	case "", LogText, LogJSON:
	default:
		return Settings{}, fmt.Errorf("invalid log format %q (want %s or %s)", s.LogFormat, LogText, LogJSON)
	}
	return s, nil
}
