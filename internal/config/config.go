package config

import (
	"flag"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Cache    CacheConfig
	Fetch    FetchConfig
	Logging  LoggingConfig
	Auth     AuthConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	HTTPAddr string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// CacheConfig holds cache configuration
type CacheConfig struct {
	Backend   string // "memory" or "redis"
	TTL       time.Duration
	RedisAddr string
}

// FetchConfig holds feed ingestion configuration
type FetchConfig struct {
	Timeout         time.Duration
	RefreshInterval time.Duration
	Retention       time.Duration
	RateLimitDur    time.Duration
	ProxyPrefix     string
	RehostImages    bool
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string
}

// AuthConfig holds admin token configuration
type AuthConfig struct {
	JWTSecret string
	JWTIssuer string
}

// Load parses flags and environment variables to build configuration
func Load() *Config {
	httpAddr := flag.String("http", ":8080", "HTTP server address")
	cacheTTL := flag.Duration("cache-ttl", 5*time.Minute, "Cache TTL for stored articles")
	cacheBackend := flag.String("cache-backend", "memory", "Cache backend: memory or redis")
	redisAddr := flag.String("redis-addr", "localhost:6379", "Redis server address")
	fetchTimeout := flag.Duration("fetch-timeout", 15*time.Second, "Timeout for one feed fetch")
	refreshInterval := flag.Duration("refresh-interval", 15*time.Minute, "Interval between full feed refreshes")
	retention := flag.Duration("retention", 30*24*time.Hour, "How long stored articles are kept")
	rateLimitDur := flag.Duration("rate-limit", time.Second, "Minimum delay between requests to same host")
	proxyPrefix := flag.String("proxy-prefix", "", "Outbound feed proxy prefix (prepended to URL-encoded feed URL)")
	rehostImages := flag.Bool("rehost-images", false, "Copy article images into owned storage")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	dbHost := flag.String("db-host", "localhost", "PostgreSQL host")
	dbPort := flag.Int("db-port", 5432, "PostgreSQL port")
	dbUser := flag.String("db-user", "postgres", "PostgreSQL user")
	dbPassword := flag.String("db-password", "postgres", "PostgreSQL password")
	dbName := flag.String("db-name", "newsfold", "PostgreSQL database name")
	dbSSLMode := flag.String("db-sslmode", "disable", "PostgreSQL SSL mode")

	flag.Parse()

	applyEnvString("HTTP_ADDR", httpAddr)
	applyEnvDuration("CACHE_TTL", cacheTTL)
	applyEnvString("CACHE_BACKEND", cacheBackend)
	applyEnvString("REDIS_ADDR", redisAddr)
	applyEnvDuration("FETCH_TIMEOUT", fetchTimeout)
	applyEnvDuration("REFRESH_INTERVAL", refreshInterval)
	applyEnvDuration("RETENTION", retention)
	applyEnvDuration("RATE_LIMIT", rateLimitDur)
	applyEnvString("FEED_PROXY_PREFIX", proxyPrefix)
	applyEnvBool("REHOST_IMAGES", rehostImages)
	applyEnvString("LOG_LEVEL", logLevel)
	applyEnvString("DB_HOST", dbHost)
	applyEnvInt("DB_PORT", dbPort)
	applyEnvString("DB_USER", dbUser)
	applyEnvString("DB_PASSWORD", dbPassword)
	applyEnvString("DB_NAME", dbName)
	applyEnvString("DB_SSLMODE", dbSSLMode)

	return &Config{
		Server: ServerConfig{
			HTTPAddr: *httpAddr,
		},
		Database: DatabaseConfig{
			Host:     *dbHost,
			Port:     *dbPort,
			User:     *dbUser,
			Password: *dbPassword,
			Database: *dbName,
			SSLMode:  *dbSSLMode,
		},
		Cache: CacheConfig{
			Backend:   *cacheBackend,
			TTL:       *cacheTTL,
			RedisAddr: *redisAddr,
		},
		Fetch: FetchConfig{
			Timeout:         *fetchTimeout,
			RefreshInterval: *refreshInterval,
			Retention:       *retention,
			RateLimitDur:    *rateLimitDur,
			ProxyPrefix:     *proxyPrefix,
			RehostImages:    *rehostImages,
		},
		Logging: LoggingConfig{
			Level: *logLevel,
		},
		Auth: AuthConfig{
			JWTSecret: getEnvOrDefault("AUTH_JWT_SECRET", "change-me-in-production"),
			JWTIssuer: getEnvOrDefault("AUTH_JWT_ISSUER", "newsfold"),
		},
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func applyEnvString(key string, target *string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

func applyEnvDuration(key string, target *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*target = d
		}
	}
}

func applyEnvInt(key string, target *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*target = n
		}
	}
}

func applyEnvBool(key string, target *bool) {
	if v := os.Getenv(key); v == "true" || v == "1" {
		*target = true
	}
}
