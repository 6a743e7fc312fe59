package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Store drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds all configuration for the application
type Config struct {
	// Server
	Port     int    `yaml:"port"`
	Bind     string `yaml:"bind"`
	Debug    bool   `yaml:"debug"`
	LogLevel string `yaml:"log_level"`

	// LogFormat selects the stderr encoding of the daemon log: text or json.
	// The log file is always JSON.
	LogFormat string `yaml:"log_format"`

	// CORSOrigins are the browser origins allowed to call the API; "*"
	// admits any origin without credentials
	CORSOrigins []string `yaml:"cors_origins"`

	// DataDir holds the SQLite database and log files
	DataDir string `yaml:"data_dir"`

	// Storage
	StoreDriver string `yaml:"store_driver"` // sqlite, postgres
	SQLitePath  string `yaml:"sqlite_path"`  // Defaults to <data dir>/arise.db
	DatabaseURL string `yaml:"database_url"`

	// Event bus, optional
	RabbitMQURL string `yaml:"rabbitmq_url"`

	// Leaderboard cache, optional
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"-"`

	// Challenges; the embedded catalog is used when empty
	CatalogPath string `yaml:"catalog_path"`

	// Limits
	SubmitRatePerMinute int `yaml:"submit_rate_per_minute"`
	LeaderboardSize     int `yaml:"leaderboard_size"`

	// AdminToken guards the audit endpoint; audit is disabled when empty
	AdminToken string `yaml:"-"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Port:                7480,
		Bind:                "127.0.0.1",
		LogLevel:            "info",
		LogFormat:           "text",
		DataDir:             DefaultDataDir(),
		StoreDriver:         DriverSQLite,
		SubmitRatePerMinute: 30,
		LeaderboardSize:     10,
	}
}

// Load builds the configuration from defaults, the optional YAML file named
// by ARISE_CONFIG, and environment variables, in that order of precedence.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("ARISE_CONFIG"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Port = getEnvInt("PORT", c.Port)
	c.Bind = getEnv("BIND", c.Bind)
	c.Debug = getEnvBool("DEBUG", c.Debug)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
	c.CORSOrigins = getEnvList("CORS_ORIGINS", c.CORSOrigins)
	c.DataDir = getEnv("DATA_DIR", c.DataDir)
	c.StoreDriver = getEnv("STORE_DRIVER", c.StoreDriver)
	c.SQLitePath = getEnv("SQLITE_PATH", c.SQLitePath)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.RabbitMQURL = getEnv("RABBITMQ_URL", c.RabbitMQURL)
	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = getEnv("REDIS_PASSWORD", c.RedisPassword)
	c.CatalogPath = getEnv("CATALOG_PATH", c.CatalogPath)
	c.SubmitRatePerMinute = getEnvInt("SUBMIT_RATE_PER_MINUTE", c.SubmitRatePerMinute)
	c.LeaderboardSize = getEnvInt("LEADERBOARD_SIZE", c.LeaderboardSize)
	c.AdminToken = getEnv("ADMIN_TOKEN", c.AdminToken)
}

// Validate rejects settings the daemon cannot start with
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	switch c.StoreDriver {
	case DriverSQLite:
		if c.SQLiteFile() == "" {
			return fmt.Errorf("SQLITE_PATH or DATA_DIR must be set for the sqlite driver")
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL must be set for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q (want %s or %s)", c.StoreDriver, DriverSQLite, DriverPostgres)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.LogFormat {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown LOG_FORMAT %q (want text or json)", c.LogFormat)
	}
	for _, origin := range c.CORSOrigins {
		if err := checkOrigin(origin); err != nil {
			return err
		}
	}
	if c.SubmitRatePerMinute < 0 {
		return fmt.Errorf("SUBMIT_RATE_PER_MINUTE must not be negative")
	}
	if c.LeaderboardSize < 1 || c.LeaderboardSize > 100 {
		return fmt.Errorf("LEADERBOARD_SIZE must be between 1 and 100, got %d", c.LeaderboardSize)
	}
	return nil
}

// Addr returns the listen address of the HTTP server
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Bind, c.Port)
}

// SQLiteFile returns the SQLite database path
func (c *Config) SQLiteFile() string {
	if c.SQLitePath != "" {
		return c.SQLitePath
	}
	if c.DataDir == "" {
		return ""
	}
	return filepath.Join(c.DataDir, "arise.db")
}

// SlogLevel returns the configured log level. Debug mode forces debug logging.
func (c *Config) SlogLevel() slog.Level {
	if c.Debug {
		return slog.LevelDebug
	}
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown LOG_LEVEL %q", s)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvList splits a comma separated variable, dropping empty items
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// checkOrigin accepts "*" or a bare scheme://host[:port] origin
func checkOrigin(origin string) error {
	if origin == "*" {
		return nil
	}
	u, err := url.Parse(strings.TrimRight(origin, "/"))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" || u.Path != "" || u.RawQuery != "" || u.User != nil {
		return fmt.Errorf("CORS_ORIGINS entry %q is not an origin like https://ctf.example", origin)
	}
	return nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
