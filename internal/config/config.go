package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"
)

const devSessionSecret = "time2watch-development-session-secret"

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Session   SessionConfig
	RateLimit RateLimitConfig
	Email     EmailConfig
	Catalog   CatalogConfig
	List      ListConfig
	Log       LogConfig
}

type ServerConfig struct {
	Host        string
	Port        int
	Secure      bool   // Use HTTPS-only cookies
	Environment string // "development", "production", "test"

	// TrustedProxies lists IPs or CIDR ranges whose X-Forwarded-For is honored.
	TrustedProxies []string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type SessionConfig struct {
	Secret   string
	Duration time.Duration
}

// RateLimitPolicy allows MaxAttempts hits per Window for one guard.
type RateLimitPolicy struct {
	MaxAttempts int
	Window      time.Duration
}

type RateLimitConfig struct {
	Backend       string // "postgres", "redis", "memory"
	FailOpen      bool
	Login         RateLimitPolicy
	Register      RateLimitPolicy
	Recover       RateLimitPolicy
	FriendRequest RateLimitPolicy
}

type EmailConfig struct {
	Provider     string // "resend", "smtp", "console", "none"
	FromAddress  string
	FromName     string
	ReplyTo      string
	BaseURL      string // Application base URL for links
	ResendAPIKey string
	// SMTP settings (for Mailpit in local dev)
	SMTPHost string
	SMTPPort int

	// EchoRecoveredCode returns recovered codes in the response when no
	// provider is configured. Development only.
	EchoRecoveredCode bool
}

type CatalogConfig struct {
	APIKey   string
	BaseURL  string
	Language string
	CacheTTL time.Duration
	Timeout  time.Duration
}

type ListConfig struct {
	RemovalPolicy string // "archive", "purge"
}

type LogConfig struct {
	Level string
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

func (s ServerConfig) IsProduction() bool {
	return s.Environment == "production"
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnvInt("SERVER_PORT", 8080),
			Secure:         getEnvBool("SERVER_SECURE", false),
			Environment:    getEnv("APP_ENV", "development"),
			TrustedProxies: getEnvList("TRUSTED_PROXIES"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "time2watch"),
			Password: getEnv("DB_PASSWORD", "time2watch"),
			DBName:   getEnv("DB_NAME", "time2watch"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: int32(getEnvInt("DB_MAX_CONNS", 25)),
			MinConns: int32(getEnvInt("DB_MIN_CONNS", 2)),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Session: SessionConfig{
			Secret:   getEnv("SESSION_SECRET", ""),
			Duration: getEnvDuration("SESSION_DURATION", 30*24*time.Hour),
		},
		RateLimit: RateLimitConfig{
			Backend:  strings.ToLower(getEnv("RATE_LIMIT_BACKEND", "postgres")),
			FailOpen: getEnvBool("RATE_LIMIT_FAIL_OPEN", false),
			Login: RateLimitPolicy{
				MaxAttempts: getEnvInt("RATE_LIMIT_LOGIN_MAX", 5),
				Window:      getEnvDuration("RATE_LIMIT_LOGIN_WINDOW", 5*time.Minute),
			},
			Register: RateLimitPolicy{
				MaxAttempts: getEnvInt("RATE_LIMIT_REGISTER_MAX", 5),
				Window:      getEnvDuration("RATE_LIMIT_REGISTER_WINDOW", 10*time.Minute),
			},
			Recover: RateLimitPolicy{
				MaxAttempts: getEnvInt("RATE_LIMIT_RECOVER_MAX", 5),
				Window:      getEnvDuration("RATE_LIMIT_RECOVER_WINDOW", 10*time.Minute),
			},
			FriendRequest: RateLimitPolicy{
				MaxAttempts: getEnvInt("RATE_LIMIT_FRIEND_REQUEST_MAX", 8),
				Window:      getEnvDuration("RATE_LIMIT_FRIEND_REQUEST_WINDOW", 10*time.Minute),
			},
		},
		Email: EmailConfig{
			Provider:     strings.ToLower(getEnv("EMAIL_PROVIDER", "none")),
			FromAddress:  getEnv("EMAIL_FROM_ADDRESS", "noreply@time2watch.app"),
			FromName:     getEnv("EMAIL_FROM_NAME", "time2watch"),
			ReplyTo:      getEnv("EMAIL_REPLY_TO", ""),
			BaseURL:      getEnv("APP_BASE_URL", "http://localhost:8080"),
			ResendAPIKey: getEnv("RESEND_API_KEY", ""),
			SMTPHost:     getEnv("SMTP_HOST", "localhost"),
			SMTPPort:     getEnvInt("SMTP_PORT", 1025),

			EchoRecoveredCode: getEnvBool("EMAIL_ECHO_RECOVERED_CODE", false),
		},
		Catalog: CatalogConfig{
			APIKey:   getEnv("TMDB_API_KEY", ""),
			BaseURL:  getEnv("TMDB_BASE_URL", "https://api.themoviedb.org/3"),
			Language: getEnv("TMDB_LANGUAGE", "en-US"),
			CacheTTL: getEnvDuration("CATALOG_CACHE_TTL", time.Hour),
			Timeout:  getEnvDuration("CATALOG_TIMEOUT", 10*time.Second),
		},
		List: ListConfig{
			RemovalPolicy: strings.ToLower(getEnv("LIST_REMOVAL_POLICY", "archive")),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if cfg.Session.Secret == "" && !cfg.Server.IsProduction() {
		cfg.Session.Secret = devSessionSecret
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects combinations the server cannot start with.
func (c *Config) Validate() error {
	var errs []error

	if len(c.Session.Secret) < 32 {
		errs = append(errs, errors.New("SESSION_SECRET must be at least 32 characters"))
	}

	if c.Database.MaxConns <= 0 || c.Database.MinConns < 0 || c.Database.MinConns > c.Database.MaxConns {
		errs = append(errs, errors.New("DB_MIN_CONNS must be between 0 and DB_MAX_CONNS"))
	}

	switch c.RateLimit.Backend {
	case "postgres", "redis", "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown RATE_LIMIT_BACKEND %q", c.RateLimit.Backend))
	}
	for name, p := range map[string]RateLimitPolicy{
		"login":          c.RateLimit.Login,
		"register":       c.RateLimit.Register,
		"recover":        c.RateLimit.Recover,
		"friend request": c.RateLimit.FriendRequest,
	} {
		if p.MaxAttempts <= 0 || p.Window <= 0 {
			errs = append(errs, fmt.Errorf("%s rate limit needs a positive max and window", name))
		}
	}

	for _, raw := range c.Server.TrustedProxies {
		if !validProxy(raw) {
			errs = append(errs, fmt.Errorf("invalid TRUSTED_PROXIES entry %q", raw))
		}
	}

	if c.Email.EchoRecoveredCode && c.Server.IsProduction() {
		errs = append(errs, errors.New("EMAIL_ECHO_RECOVERED_CODE cannot be enabled in production"))
	}

	switch c.Email.Provider {
	case "none", "console", "smtp":
	case "resend":
		if c.Email.ResendAPIKey == "" {
			errs = append(errs, errors.New("RESEND_API_KEY is required when EMAIL_PROVIDER=resend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown EMAIL_PROVIDER %q", c.Email.Provider))
	}

	switch c.List.RemovalPolicy {
	case "archive", "purge":
	default:
		errs = append(errs, fmt.Errorf("unknown LIST_REMOVAL_POLICY %q", c.List.RemovalPolicy))
	}

	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvList splits a comma separated value, dropping blanks.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func validProxy(raw string) bool {
	if _, err := netip.ParsePrefix(raw); err == nil {
		return true
	}
	_, err := netip.ParseAddr(raw)
	return err == nil
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
