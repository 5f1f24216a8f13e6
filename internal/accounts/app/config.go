package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/clipshare/pkg/httpx"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Env                  string        `yaml:"env"`                  // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        `yaml:"logLevel"`             // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        `yaml:"logFormat"`            // Log format (json, text) (default: json)
	Port                 int           `yaml:"port"`                 // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration `yaml:"shutdownGracePeriod"`  // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration `yaml:"housekeepingInterval"` // Expired session sweep interval (default: 1h)
	MaxUploadBytes       int64         `yaml:"maxUploadBytes"`       // Multipart request cap (default: 10 MiB)
	CookieSecure         bool          `yaml:"cookieSecure"`         // Secure flag on session cookies (default: true outside dev)
	AutoMigrate          bool          `yaml:"autoMigrate"`          // Apply migrations on serve (default: true)

	Issuer                     string        `yaml:"issuer"`                     // iss claim (default: clipshare-accounts)
	AccessTokenSecret          string        `yaml:"accessTokenSecret"`          // Required outside dev
	AccessTokenTTL             time.Duration `yaml:"accessTokenTTL"`             // (default: 15m)
	RefreshTokenSecret         string        `yaml:"refreshTokenSecret"`         // Required outside dev
	RefreshTokenTTL            time.Duration `yaml:"refreshTokenTTL"`            // (default: 7d)
	PepperFile                 string        `yaml:"pepperFile"`                 // Password pepper, created if missing (default: ./pepper)
	EndSessionOnPasswordChange bool          `yaml:"endSessionOnPasswordChange"` // (default: false)

	StoreDriver   string `yaml:"storeDriver"`   // sqlite, postgres, mongo (default: sqlite)
	DatabaseFile  string `yaml:"databaseFile"`  // SQLite file (default: ./accounts.db)
	DatabaseDSN   string `yaml:"databaseDSN"`   // Postgres DSN
	MongoURI      string `yaml:"mongoURI"`      // MongoDB connection string
	MongoDatabase string `yaml:"mongoDatabase"` // (default: clipshare)

	AssetHost      string `yaml:"assetHost"`      // local, s3 (default: local)
	AssetDir       string `yaml:"assetDir"`       // Local asset directory (default: ./media)
	AssetPublicURL string `yaml:"assetPublicURL"` // Public prefix of asset URLs
	S3Bucket       string `yaml:"s3Bucket"`
	S3Region       string `yaml:"s3Region"`       // (default: us-east-1)
	S3Endpoint     string `yaml:"s3Endpoint"`     // Set for MinIO and other S3 compatible stores
	S3AccessKey    string `yaml:"s3AccessKey"`
	S3SecretKey    string `yaml:"s3SecretKey"`

	RedisAddr        string        `yaml:"redisAddr"`        // Enables login throttling when set
	RedisPassword    string        `yaml:"redisPassword"`
	LoginMaxAttempts int           `yaml:"loginMaxAttempts"` // (default: 5)
	LoginLockout     time.Duration `yaml:"loginLockout"`     // (default: 15m)

	NATSURL string `yaml:"natsURL"` // Enables event publishing when set

	RateLimits httpx.RateLimits `yaml:"rateLimits"` // Per-route request budgets
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		Env:                  "dev",
		LogLevel:             "info",
		LogFormat:            "json",
		Port:                 8080,
		ShutdownGracePeriod:  10 * time.Second,
		HousekeepingInterval: time.Hour,
		MaxUploadBytes:       10 << 20,
		AutoMigrate:          true,

		Issuer:          "clipshare-accounts",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
		PepperFile:      "pepper",

		StoreDriver:   "sqlite",
		DatabaseFile:  "accounts.db",
		MongoDatabase: "clipshare",

		AssetHost: "local",
		AssetDir:  "media",
		S3Region:  "us-east-1",

		LoginMaxAttempts: 5,
		LoginLockout:     15 * time.Minute,

		RateLimits: httpx.DefaultRateLimits(),
	}
}

// LoadConfig layers defaults, the optional YAML file at path and then the
// environment, and validates the result.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	cookieSet := false

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}

		var explicit struct {
			CookieSecure *bool `yaml:"cookieSecure"`
		}
		_ = yaml.Unmarshal(raw, &explicit)
		cookieSet = explicit.CookieSecure != nil
	}

	if _, ok := os.LookupEnv("COOKIE_SECURE"); ok {
		cookieSet = true
	}
	cfg.applyEnv()

	// Cookies default to Secure everywhere but a local dev loop
	if !cookieSet {
		cfg.CookieSecure = cfg.Env != "dev"
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Env = getEnvOrDefault("ENV", c.Env)
	c.LogLevel = getEnvOrDefault("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnvOrDefault("LOG_FORMAT", c.LogFormat)
	c.Port = getEnvIntOrDefault("PORT", c.Port)
	c.ShutdownGracePeriod = getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", c.ShutdownGracePeriod)
	c.HousekeepingInterval = getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", c.HousekeepingInterval)
	c.MaxUploadBytes = int64(getEnvIntOrDefault("MAX_UPLOAD_BYTES", int(c.MaxUploadBytes)))
	c.CookieSecure = getEnvBoolOrDefault("COOKIE_SECURE", c.CookieSecure)
	c.AutoMigrate = getEnvBoolOrDefault("AUTO_MIGRATE", c.AutoMigrate)

	c.Issuer = getEnvOrDefault("ACCOUNTS_ISSUER", c.Issuer)
	c.AccessTokenSecret = getEnvOrDefault("ACCESS_TOKEN_SECRET", c.AccessTokenSecret)
	c.AccessTokenTTL = getEnvDurationOrDefault("ACCESS_TOKEN_TTL", c.AccessTokenTTL)
	c.RefreshTokenSecret = getEnvOrDefault("REFRESH_TOKEN_SECRET", c.RefreshTokenSecret)
	c.RefreshTokenTTL = getEnvDurationOrDefault("REFRESH_TOKEN_TTL", c.RefreshTokenTTL)
	c.PepperFile = getEnvOrDefault("ACCOUNTS_PEPPER_FILE", c.PepperFile)
	c.EndSessionOnPasswordChange = getEnvBoolOrDefault("ACCOUNTS_END_SESSION_ON_PASSWORD_CHANGE", c.EndSessionOnPasswordChange)

	c.StoreDriver = getEnvOrDefault("STORE_DRIVER", c.StoreDriver)
	c.DatabaseFile = getEnvOrDefault("DATABASE_FILE", c.DatabaseFile)
	c.DatabaseDSN = getEnvOrDefault("DATABASE_DSN", c.DatabaseDSN)
	c.MongoURI = getEnvOrDefault("MONGO_URI", c.MongoURI)
	c.MongoDatabase = getEnvOrDefault("MONGO_DATABASE", c.MongoDatabase)

	c.AssetHost = getEnvOrDefault("ASSET_HOST", c.AssetHost)
	c.AssetDir = getEnvOrDefault("ASSET_DIR", c.AssetDir)
	c.AssetPublicURL = getEnvOrDefault("ASSET_PUBLIC_URL", c.AssetPublicURL)
	c.S3Bucket = getEnvOrDefault("S3_BUCKET", c.S3Bucket)
	c.S3Region = getEnvOrDefault("S3_REGION", c.S3Region)
	c.S3Endpoint = getEnvOrDefault("S3_ENDPOINT", c.S3Endpoint)
	c.S3AccessKey = getEnvOrDefault("S3_ACCESS_KEY", c.S3AccessKey)
	c.S3SecretKey = getEnvOrDefault("S3_SECRET_KEY", c.S3SecretKey)

	c.RedisAddr = getEnvOrDefault("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = getEnvOrDefault("REDIS_PASSWORD", c.RedisPassword)
	c.LoginMaxAttempts = getEnvIntOrDefault("LOGIN_MAX_ATTEMPTS", c.LoginMaxAttempts)
	c.LoginLockout = getEnvDurationOrDefault("LOGIN_LOCKOUT", c.LoginLockout)

	c.NATSURL = getEnvOrDefault("NATS_URL", c.NATSURL)

	c.RateLimits.Credentials = getEnvRateLimit("CREDENTIALS", c.RateLimits.Credentials)
	c.RateLimits.Writes = getEnvRateLimit("WRITES", c.RateLimits.Writes)
	c.RateLimits.Reads = getEnvRateLimit("READS", c.RateLimits.Reads)
	c.RateLimits.Public = getEnvRateLimit("PUBLIC", c.RateLimits.Public)
}

// getEnvRateLimit reads RATELIMIT_<name>_REQUESTS, _WINDOW and _BURST.
func getEnvRateLimit(name string, l httpx.RateLimit) httpx.RateLimit {
	prefix := "RATELIMIT_" + name + "_"
	l.Requests = getEnvIntOrDefault(prefix+"REQUESTS", l.Requests)
	l.Window = getEnvDurationOrDefault(prefix+"WINDOW", l.Window)
	l.Burst = getEnvIntOrDefault(prefix+"BURST", l.Burst)
	return l
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		errs = append(errs, errors.New("token ttls must be positive"))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("maxUploadBytes must be positive"))
	}
	for name, l := range map[string]httpx.RateLimit{
		"credentials": c.RateLimits.Credentials,
		"writes":      c.RateLimits.Writes,
		"reads":       c.RateLimits.Reads,
		"public":      c.RateLimits.Public,
	} {
		if l.Requests <= 0 || l.Window <= 0 || l.Burst <= 0 {
			errs = append(errs, fmt.Errorf("rate limit %s needs positive requests, window and burst", name))
		}
	}

	if c.Env != "dev" {
		if c.AccessTokenSecret == "" {
			errs = append(errs, errors.New("ACCESS_TOKEN_SECRET is required outside dev"))
		}
		if c.RefreshTokenSecret == "" {
			errs = append(errs, errors.New("REFRESH_TOKEN_SECRET is required outside dev"))
		}
	}
	if c.AccessTokenSecret != "" && c.AccessTokenSecret == c.RefreshTokenSecret {
		errs = append(errs, errors.New("access and refresh token secrets must differ"))
	}

	switch c.StoreDriver {
	case "sqlite":
		if c.DatabaseFile == "" {
			errs = append(errs, errors.New("DATABASE_FILE is required for the sqlite store"))
		}
	case "postgres":
		if c.DatabaseDSN == "" {
			errs = append(errs, errors.New("DATABASE_DSN is required for the postgres store"))
		}
	case "mongo":
		if c.MongoURI == "" || c.MongoDatabase == "" {
			errs = append(errs, errors.New("MONGO_URI and MONGO_DATABASE are required for the mongo store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.StoreDriver))
	}

	switch c.AssetHost {
	case "local":
		if c.AssetDir == "" {
			errs = append(errs, errors.New("ASSET_DIR is required for the local asset host"))
		}
	case "s3":
		if c.S3Bucket == "" {
			errs = append(errs, errors.New("S3_BUCKET is required for the s3 asset host"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown asset host %q", c.AssetHost))
	}

	return errors.Join(errs...)
}

// publicAssetURL is the prefix of local asset URLs.
func (c Config) publicAssetURL() string {
	if c.AssetPublicURL != "" {
		return strings.TrimSuffix(c.AssetPublicURL, "/")
	}
	return fmt.Sprintf("http://localhost:%d/media", c.Port)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer minutes (for backwards compatibility)
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
