package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aussiebroadwan/clipshare/pkg/httpx"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	require.Equal(t, "dev", cfg.Env)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	require.Equal(t, 7*24*time.Hour, cfg.RefreshTokenTTL)
	require.Equal(t, "sqlite", cfg.StoreDriver)
	require.Equal(t, "local", cfg.AssetHost)
	require.False(t, cfg.CookieSecure, "dev cookies work over plain http")
	require.False(t, cfg.EndSessionOnPasswordChange)
	require.Equal(t, "http://localhost:8080/media", cfg.publicAssetURL())
	require.Equal(t, httpx.DefaultRateLimits(), cfg.RateLimits)
}

func TestLoadConfig_Env(t *testing.T) {
	t.Setenv("ENV", "prod")
	t.Setenv("PORT", "9090")
	t.Setenv("ACCESS_TOKEN_SECRET", "a")
	t.Setenv("REFRESH_TOKEN_SECRET", "r")
	t.Setenv("ACCESS_TOKEN_TTL", "5m")
	t.Setenv("REFRESH_TOKEN_TTL", "30") // bare minutes
	t.Setenv("ACCOUNTS_END_SESSION_ON_PASSWORD_CHANGE", "true")
	t.Setenv("ASSET_PUBLIC_URL", "https://cdn.example.com/media/")
	t.Setenv("RATELIMIT_CREDENTIALS_REQUESTS", "3")
	t.Setenv("RATELIMIT_CREDENTIALS_WINDOW", "10s")
	t.Setenv("RATELIMIT_CREDENTIALS_BURST", "2")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Port)
	require.Equal(t, 5*time.Minute, cfg.AccessTokenTTL)
	require.Equal(t, 30*time.Minute, cfg.RefreshTokenTTL)
	require.True(t, cfg.EndSessionOnPasswordChange)
	require.True(t, cfg.CookieSecure)
	require.Equal(t, "https://cdn.example.com/media", cfg.publicAssetURL())
	require.Equal(t, httpx.RateLimit{Requests: 3, Window: 10 * time.Second, Burst: 2}, cfg.RateLimits.Credentials)
	require.Equal(t, httpx.DefaultRateLimits().Writes, cfg.RateLimits.Writes)
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
env: staging
port: 7000
accessTokenSecret: from-file-a
refreshTokenSecret: from-file-r
accessTokenTTL: 10m
storeDriver: postgres
databaseDSN: postgres://localhost/accounts
cookieSecure: false
rateLimits:
  reads:
    requests: 5
    window: 30s
    burst: 5
`), 0o600))

	t.Setenv("PORT", "7001")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.Equal(t, "staging", cfg.Env)
	require.Equal(t, 7001, cfg.Port, "env beats file")
	require.Equal(t, 10*time.Minute, cfg.AccessTokenTTL)
	require.Equal(t, "postgres", cfg.StoreDriver)
	require.False(t, cfg.CookieSecure, "explicit file value is kept")
	require.Equal(t, 7*24*time.Hour, cfg.RefreshTokenTTL, "unset keys keep defaults")
	require.Equal(t, httpx.RateLimit{Requests: 5, Window: 30 * time.Second, Burst: 5}, cfg.RateLimits.Reads)
	require.Equal(t, httpx.DefaultRateLimits().Credentials, cfg.RateLimits.Credentials)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad port", func(c *Config) { c.Port = 0 }, "port 0 out of range"},
		{"secrets outside dev", func(c *Config) { c.Env = "prod" }, "ACCESS_TOKEN_SECRET is required outside dev"},
		{"same secrets", func(c *Config) { c.AccessTokenSecret, c.RefreshTokenSecret = "x", "x" }, "must differ"},
		{"unknown driver", func(c *Config) { c.StoreDriver = "oracle" }, `unknown store driver "oracle"`},
		{"postgres without dsn", func(c *Config) { c.StoreDriver = "postgres" }, "DATABASE_DSN is required"},
		{"mongo without uri", func(c *Config) { c.StoreDriver = "mongo" }, "MONGO_URI and MONGO_DATABASE are required"},
		{"s3 without bucket", func(c *Config) { c.AssetHost = "s3" }, "S3_BUCKET is required"},
		{"zero ttl", func(c *Config) { c.AccessTokenTTL = 0 }, "token ttls must be positive"},
		{"zero rate limit", func(c *Config) { c.RateLimits.Writes.Burst = 0 }, "rate limit writes needs positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.want)
		})
	}

	require.NoError(t, DefaultConfig().Validate())
}
