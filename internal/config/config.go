package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server  ServerConfig
	Store   StoreConfig
	Redis   RedisConfig
	Auth    AuthConfig
	TMDB    TMDBConfig
	NATS    NATSConfig
	Sync    SyncConfig
	Session SessionConfig
	Logging LoggingConfig
}

type ServerConfig struct {
	Env  string
	Port string
	Host string
}

// Document store backends
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

type StoreConfig struct {
	Backend     string
	DatabaseURL string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	TLS      bool
}

// AuthConfig points at an OAuth2 password-grant provider. An empty
// TokenURL selects the in-process provider.
type AuthConfig struct {
	TokenURL     string
	SignupURL    string
	ClientID     string
	ClientSecret string
}

type TMDBConfig struct {
	APIKey       string
	BaseURL      string
	ImageBaseURL string
}

type NATSConfig struct {
	URL string
}

// Mutation failure policies
const (
	PolicyFailOpen   = "fail-open"
	PolicyFailClosed = "fail-closed"
)

type SyncConfig struct {
	RemoteTimeout        time.Duration
	HydrationConcurrency int
	MutationPolicy       string
}

type SessionConfig struct {
	TTL time.Duration
}

type LoggingConfig struct {
	File        string
	MaxSizeMB   int
	TraceStdout bool
}

// Load reads environment variables and returns a Config struct
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Env:  getEnv("NODE_ENV", "local"),
			Port: getEnv("PORT", "4000"),
			Host: getEnv("HOST", "http://localhost:4000"),
		},
		Store: StoreConfig{
			Backend:     getEnv("STORE_BACKEND", BackendMemory),
			DatabaseURL: getEnv("DATABASE_URL", ""),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			TLS:      getEnv("REDIS_TLS", "false") == "true",
		},
		Auth: AuthConfig{
			TokenURL:     getEnv("AUTH_TOKEN_URL", ""),
			SignupURL:    getEnv("AUTH_SIGNUP_URL", ""),
			ClientID:     getEnv("AUTH_CLIENT_ID", ""),
			ClientSecret: getEnv("AUTH_CLIENT_SECRET", ""),
		},
		TMDB: TMDBConfig{
			APIKey:       getEnv("TMDB_KEY", ""),
			BaseURL:      getEnv("TMDB_URL", "https://api.themoviedb.org"),
			ImageBaseURL: getEnv("TMDB_IMAGE_URL", "https://image.tmdb.org/t/p/w500"),
		},
		NATS: NATSConfig{
			URL: getEnv("NATS_URL", ""),
		},
		Sync: SyncConfig{
			MutationPolicy: getEnv("MUTATION_POLICY", PolicyFailOpen),
		},
		Logging: LoggingConfig{
			File:        getEnv("LOG_FILE", ""),
			TraceStdout: getEnv("TRACE_STDOUT", "false") == "true",
		},
	}

	var err error
	if cfg.Sync.RemoteTimeout, err = getDuration("REMOTE_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.Session.TTL, err = getDuration("SESSION_TTL", 7*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.Sync.HydrationConcurrency, err = getInt("HYDRATION_CONCURRENCY", 8); err != nil {
		return nil, err
	}
	if cfg.Logging.MaxSizeMB, err = getInt("LOG_MAX_SIZE_MB", 100); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Store.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_BACKEND is %s", BackendPostgres)
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be %s or %s, got %q", BackendMemory, BackendPostgres, c.Store.Backend)
	}

	switch c.Sync.MutationPolicy {
	case PolicyFailOpen, PolicyFailClosed:
	default:
		return fmt.Errorf("MUTATION_POLICY must be %s or %s, got %q", PolicyFailOpen, PolicyFailClosed, c.Sync.MutationPolicy)
	}

	if c.Sync.RemoteTimeout <= 0 {
		return fmt.Errorf("REMOTE_TIMEOUT must be positive")
	}
	if c.Sync.HydrationConcurrency < 1 {
		return fmt.Errorf("HYDRATION_CONCURRENCY must be at least 1")
	}
	if c.Auth.TokenURL != "" && c.Auth.ClientID == "" {
		return fmt.Errorf("AUTH_CLIENT_ID is required when AUTH_TOKEN_URL is set")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return d, nil
}

func getInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// IsDevelopment returns true if running in development/local mode
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "local" || c.Server.Env == "development"
}

// RedisAddr returns the Redis address in host:port format
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}

// FailClosed reports whether remote writes must succeed before local state changes
func (c *Config) FailClosed() bool {
	return c.Sync.MutationPolicy == PolicyFailClosed
}
