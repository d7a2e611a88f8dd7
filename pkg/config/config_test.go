package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/transit-cache/pkg/station"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "transit-cache.db", cfg.DBPath)
	assert.Equal(t, ":8080", cfg.Listen)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 15*time.Second, cfg.API.Timeout)
	assert.Equal(t, time.Hour, cfg.Explore.TTL)
	assert.Equal(t, station.BikePolicy(), cfg.Bike.Policy())
	assert.Equal(t, station.SubwayPolicy(), cfg.Subway.Policy())

	err = cfg.Validate()
	require.Error(t, err, "base url and user agent have no default")
	assert.Contains(t, err.Error(), "api.base_url")
	assert.Contains(t, err.Error(), "api.user_agent")
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
db_path: /var/lib/transit/cache.db
listen: 127.0.0.1:9090
log:
  level: debug
  pretty: true
api:
  base_url: https://api.transit.example
  user_agent: transit-cache/1.0 (ops@example.com)
  timeout: 5s
redis:
  addr: localhost:6379
explore:
  ttl: 2h
bike:
  ttl: 10m
  fresh_ttl: 20s
  global_refresh: 3m
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "/var/lib/transit/cache.db", cfg.DBPath)
	assert.Equal(t, "127.0.0.1:9090", cfg.Listen)
	assert.True(t, cfg.Log.Pretty)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 2*time.Hour, cfg.Tracker().TTL)
	assert.Equal(t, station.Policy{TTL: 10 * time.Minute, FreshTTL: 20 * time.Second, GlobalRefreshInterval: 3 * time.Minute}, cfg.Bike.Policy())
	assert.Equal(t, station.SubwayPolicy(), cfg.Subway.Policy(), "unset sections keep defaults")

	clientCfg := cfg.Client()
	assert.Equal(t, "https://api.transit.example", clientCfg.BaseURL)
	assert.Equal(t, 5*time.Second, clientCfg.Timeout)
	assert.Equal(t, "/var/lib/transit/cache.db", cfg.Storage().Path)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transit.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api:\n  base_url: https://file.example\n"), 0o600))

	t.Setenv("TRANSIT_API_BASE_URL", "https://env.example")
	t.Setenv("TRANSIT_API_USER_AGENT", "env-agent/1.0")
	t.Setenv("TRANSIT_BIKE_FRESH_TTL", "45s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://env.example", cfg.API.BaseURL)
	assert.Equal(t, "env-agent/1.0", cfg.API.UserAgent)
	assert.Equal(t, 45*time.Second, cfg.Bike.FreshTTL)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		cfg, err := Load("")
		require.NoError(t, err)
		cfg.API.BaseURL = "https://api.transit.example"
		cfg.API.UserAgent = "test/1.0"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"empty db path", func(c *Config) { c.DBPath = "" }, "db_path"},
		{"unknown log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"zero timeout", func(c *Config) { c.API.Timeout = 0 }, "api.timeout"},
		{"negative explore ttl", func(c *Config) { c.Explore.TTL = -time.Second }, "explore.ttl"},
		{"zero bike ttl", func(c *Config) { c.Bike.TTL = 0 }, "bike"},
		{"zero subway refresh", func(c *Config) { c.Subway.GlobalRefresh = 0 }, "subway"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
