package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	platformstrings "corretaje/pkg/platform/strings"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	defaultSecretKey = "dev-secret-key-change-in-production"
)

// Config is the immutable process configuration loaded once at startup.
type Config struct {
	Environment string
	Server      Server
	Database    Database
	Auth        Auth
	Redis       RedisConfig
	Catalog     Catalog
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr               string
	CORSAllowedOrigins []string
	LogFormat          string
	LogLevel           string
	ShutdownTimeout    time.Duration
}

// Database configures the PostgreSQL pool. An empty URL selects the
// in-memory stores.
type Database struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	RunMigrations   bool
	TxTimeout       time.Duration
}

// Auth configures password hashing and bearer tokens.
type Auth struct {
	SecretKey      string
	Algorithm      string
	AccessTokenTTL time.Duration
	BcryptCost     int
}

// RedisConfig configures the optional catalog cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Catalog configures catalog list caching.
type Catalog struct {
	CacheTTL time.Duration
}

// SupportedAlgorithms lists the HMAC signing algorithms accepted in ALGORITHM.
var SupportedAlgorithms = []string{"HS256", "HS384", "HS512"}

// Load reads an optional .env file and then the environment.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		// a missing .env is normal outside local development
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv()
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() (Config, error) {
	env := getString("APP_ENV", EnvDevelopment)

	cfg := Config{
		Environment: env,
		Server: Server{
			Addr:               getString("HTTP_ADDR", ":8000"),
			CORSAllowedOrigins: getList("CORS_ALLOWED_ORIGINS"),
			LogFormat:          getString("LOG_FORMAT", defaultLogFormat(env)),
			LogLevel:           getString("LOG_LEVEL", "info"),
			ShutdownTimeout:    10 * time.Second,
		},
		Database: Database{
			URL:           os.Getenv("DATABASE_URL"),
			RunMigrations: getString("DB_RUN_MIGRATIONS", "true") == "true",
		},
		Auth: Auth{
			SecretKey: getString("SECRET_KEY", defaultSecretKey),
			Algorithm: strings.ToUpper(getString("ALGORITHM", "HS256")),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
	}

	var err error
	if cfg.Database.MaxOpenConns, err = getInt("DB_MAX_OPEN_CONNS", 25); err != nil {
		return Config{}, err
	}
	if cfg.Database.MaxIdleConns, err = getInt("DB_MAX_IDLE_CONNS", 5); err != nil {
		return Config{}, err
	}
	if cfg.Database.ConnMaxLifetime, err = getDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.Database.TxTimeout, err = getDuration("TX_TIMEOUT", 5*time.Second); err != nil {
		return Config{}, err
	}
	minutes, err := getInt("ACCESS_TOKEN_EXPIRE_MINUTES", 30)
	if err != nil {
		return Config{}, err
	}
	cfg.Auth.AccessTokenTTL = time.Duration(minutes) * time.Minute
	if cfg.Auth.BcryptCost, err = getInt("BCRYPT_COST", 12); err != nil {
		return Config{}, err
	}
	if cfg.Redis.PoolSize, err = getInt("REDIS_POOL_SIZE", 10); err != nil {
		return Config{}, err
	}
	if cfg.Redis.MinIdleConns, err = getInt("REDIS_MIN_IDLE_CONNS", 2); err != nil {
		return Config{}, err
	}
	cfg.Redis.DialTimeout = 5 * time.Second
	cfg.Redis.ReadTimeout = 3 * time.Second
	cfg.Redis.WriteTimeout = 3 * time.Second
	if cfg.Catalog.CacheTTL, err = getDuration("CATALOG_CACHE_TTL", 10*time.Minute); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the service must not start with.
func (c Config) Validate() error {
	if !platformstrings.NewFoldedSet(SupportedAlgorithms...).Has(c.Auth.Algorithm) {
		return fmt.Errorf("ALGORITHM %q not supported, use one of %s", c.Auth.Algorithm, strings.Join(SupportedAlgorithms, ", "))
	}
	if c.Auth.BcryptCost < 10 || c.Auth.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 10 and 31, got %d", c.Auth.BcryptCost)
	}
	if c.Auth.AccessTokenTTL <= 0 {
		return errors.New("ACCESS_TOKEN_EXPIRE_MINUTES must be positive")
	}
	if c.Auth.SecretKey == "" {
		return errors.New("SECRET_KEY is required")
	}
	if c.Environment == EnvProduction {
		if c.Auth.SecretKey == defaultSecretKey {
			return errors.New("SECRET_KEY must be set in production")
		}
		if c.Database.URL == "" {
			return errors.New("DATABASE_URL must be set in production")
		}
	}
	return nil
}

func defaultLogFormat(env string) string {
	if env == EnvProduction {
		return "json"
	}
	return "text"
}

func getString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return d, nil
}

func getList(key string) []string {
	return platformstrings.SplitList(os.Getenv(key), ",")
}
