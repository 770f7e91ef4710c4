package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage drivers for the employee table.
const (
	DriverCSV      = "csv"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const envDevelopment = "development"

type Config struct {
	App     AppConfig
	Leave   LeaveConfig
	Storage StorageConfig
	Auth    AuthConfig
}

// AppConfig holds application configuration
type AppConfig struct {
	Port        int
	Env         string
	LogLevel    string
	CORSOrigins []string
}

// LeaveConfig holds leave policy configuration
type LeaveConfig struct {
	MonthlyQuota int
}

// StorageConfig selects where the employee table lives.
// DataCSV is the table itself for the csv driver and the import seed otherwise.
type StorageConfig struct {
	Driver      string
	DataCSV     string
	SQLitePath  string
	DatabaseURL string
}

// AuthConfig holds login and session token configuration
type AuthConfig struct {
	AdminUser     string
	AdminPassword string
	JWTSecret     string
	TokenTTL      time.Duration
}

// Load reads .env when present, then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	config := &Config{}

	appPort, err := strconv.Atoi(getEnv("APP_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid APP_PORT: %w", err)
	}
	env := getEnv("APP_ENV", envDevelopment)
	config.App = AppConfig{
		Port:        appPort,
		Env:         env,
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		CORSOrigins: getEnvSlice("CORS_ORIGINS"),
	}

	quota, err := strconv.Atoi(getEnv("LEAVE_QUOTA", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid LEAVE_QUOTA: %w", err)
	}
	config.Leave = LeaveConfig{MonthlyQuota: quota}

	config.Storage = StorageConfig{
		Driver:      strings.ToLower(getEnv("STORAGE_DRIVER", DriverCSV)),
		DataCSV:     getEnv("DATA_CSV", "employee_data.csv"),
		SQLitePath:  getEnv("SQLITE_PATH", "leave.db"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
	}

	ttl, err := time.ParseDuration(getEnv("TOKEN_TTL", "8h"))
	if err != nil {
		return nil, fmt.Errorf("invalid TOKEN_TTL: %w", err)
	}
	defaultPassword := ""
	if env == envDevelopment {
		defaultPassword = "1234"
	}
	config.Auth = AuthConfig{
		AdminUser:     getEnv("ADMIN_USER", "admin"),
		AdminPassword: getEnv("ADMIN_PASSWORD", defaultPassword),
		JWTSecret:     getEnv("JWT_SECRET", ""),
		TokenTTL:      ttl,
	}
	if config.Auth.JWTSecret == "" && env == envDevelopment {
		config.Auth.JWTSecret = "dev-secret-change-me"
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.App.Port <= 0 || c.App.Port > 65535 {
		return fmt.Errorf("APP_PORT out of range: %d", c.App.Port)
	}
	if c.Leave.MonthlyQuota < 1 {
		return fmt.Errorf("LEAVE_QUOTA must be at least 1")
	}
	switch c.Storage.Driver {
	case DriverCSV, DriverSQLite:
	case DriverPostgres:
		if c.Storage.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.Storage.Driver)
	}
	if c.Auth.AdminPassword == "" {
		return fmt.Errorf("ADMIN_PASSWORD is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive")
	}
	return nil
}

// IsDevelopment reports whether the app runs in the development environment.
func (c *Config) IsDevelopment() bool {
	return c.App.Env == envDevelopment
}

// SlogLevel maps LOG_LEVEL to a slog level, info when unrecognized.
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.App.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Address returns the listen address
func (c *Config) Address() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return defaultValue
}

func getEnvSlice(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
