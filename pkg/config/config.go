// Package config loads the transit proxy configuration from defaults, an
// optional YAML file and TRANSIT_* environment variables, in increasing
// priority.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Sternrassler/transit-cache/pkg/client"
	"github.com/Sternrassler/transit-cache/pkg/explore"
	"github.com/Sternrassler/transit-cache/pkg/logging"
	"github.com/Sternrassler/transit-cache/pkg/station"
	"github.com/Sternrassler/transit-cache/pkg/storage"
)

// EnvPrefix prefixes every environment override, e.g. TRANSIT_API_BASE_URL.
const EnvPrefix = "TRANSIT"

// Config is the complete proxy configuration.
type Config struct {
	DBPath string `mapstructure:"db_path"`
	Listen string `mapstructure:"listen"`

	Log     LogConfig     `mapstructure:"log"`
	API     APIConfig     `mapstructure:"api"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Explore ExploreConfig `mapstructure:"explore"`
	Bike    PolicyConfig  `mapstructure:"bike"`
	Subway  PolicyConfig  `mapstructure:"subway"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// APIConfig configures the transit API client.
type APIConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	UserAgent string        `mapstructure:"user_agent"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// RedisConfig enables the shared refresh stamp. An empty Addr keeps the
// stamp in memory.
type RedisConfig struct {
	Addr string `mapstructure:"addr"`
}

// ExploreConfig configures the exploration tracker.
type ExploreConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// PolicyConfig configures the freshness rules of one station kind.
type PolicyConfig struct {
	TTL           time.Duration `mapstructure:"ttl"`
	FreshTTL      time.Duration `mapstructure:"fresh_ttl"`
	GlobalRefresh time.Duration `mapstructure:"global_refresh"`
}

// Policy converts to a station.Policy.
func (p PolicyConfig) Policy() station.Policy {
	return station.Policy{
		TTL:                   p.TTL,
		FreshTTL:              p.FreshTTL,
		GlobalRefreshInterval: p.GlobalRefresh,
	}
}

func setDefaults(v *viper.Viper) {
	bike := station.BikePolicy()
	subway := station.SubwayPolicy()

	v.SetDefault("db_path", "transit-cache.db")
	v.SetDefault("listen", ":8080")
	v.SetDefault("log.level", string(logging.LevelInfo))
	v.SetDefault("log.pretty", false)
	v.SetDefault("api.base_url", "")
	v.SetDefault("api.user_agent", "")
	v.SetDefault("api.timeout", 15*time.Second)
	v.SetDefault("redis.addr", "")
	v.SetDefault("explore.ttl", explore.DefaultConfig().TTL)
	v.SetDefault("bike.ttl", bike.TTL)
	v.SetDefault("bike.fresh_ttl", bike.FreshTTL)
	v.SetDefault("bike.global_refresh", bike.GlobalRefreshInterval)
	v.SetDefault("subway.ttl", subway.TTL)
	v.SetDefault("subway.fresh_ttl", subway.FreshTTL)
	v.SetDefault("subway.global_refresh", subway.GlobalRefreshInterval)
}

// Load reads the configuration. path may be empty, in which case only
// defaults and environment variables apply.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error

	if c.DBPath == "" {
		errs = append(errs, errors.New("db_path is required"))
	}
	if c.Listen == "" {
		errs = append(errs, errors.New("listen is required"))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.API.BaseURL == "" {
		errs = append(errs, errors.New("api.base_url is required"))
	}
	if c.API.UserAgent == "" {
		errs = append(errs, errors.New("api.user_agent is required"))
	}
	if c.API.Timeout <= 0 {
		errs = append(errs, errors.New("api.timeout must be positive"))
	}
	if c.Explore.TTL <= 0 {
		errs = append(errs, errors.New("explore.ttl must be positive"))
	}
	if err := c.Bike.Policy().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("bike: %w", err))
	}
	if err := c.Subway.Policy().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("subway: %w", err))
	}

	return errors.Join(errs...)
}

// Storage returns the store configuration.
func (c Config) Storage() storage.Config {
	return storage.DefaultConfig(c.DBPath)
}

// Client returns the transit API client configuration.
func (c Config) Client() client.Config {
	cfg := client.DefaultConfig(c.API.BaseURL, c.API.UserAgent)
	cfg.Timeout = c.API.Timeout
	return cfg
}

// Logging returns the logger configuration.
func (c Config) Logging() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.LogLevel(c.Log.Level)
	cfg.Pretty = c.Log.Pretty
	return cfg
}

// Tracker returns the exploration tracker configuration.
func (c Config) Tracker() explore.Config {
	return explore.Config{TTL: c.Explore.TTL}
}
