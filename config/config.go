/*
Package config loads runtime configuration.

SOURCES (later wins):
  1. Defaults
  2. .env file in the working directory (optional)
  3. Process environment
  4. Command-line flags

KEYS:
  PORT                       HTTP port (8080)
  DB_DRIVER                  sqlite | postgres | memory (sqlite)
  DB_PATH                    SQLite file, ":memory:" allowed (hr.db)
  DATABASE_URL               PostgreSQL URL
  HTTP_READ_TIMEOUT          15s
  HTTP_WRITE_TIMEOUT         15s
  HTTP_IDLE_TIMEOUT          60s
  SHUTDOWN_TIMEOUT           30s
  CORS_ALLOWED_ORIGINS       comma-separated (*)
  LOG_LEVEL                  debug | info | warn | error (info)
  LOG_FORMAT                 json | text (json)
  RECALC_INTERVAL            attendance recalculation period, 0 disables (1h)
  RECALC_WORKERS             parallel record recalculation (4)
  LEAVE_DEFAULT_ENTITLEMENT  days granted to a new yearly quota (12)
  PAYROLL_DEFAULT_CURRENCY   currency of new cycles (VND)
  SEED_ON_START              seed leave types, components and schedule (true)
*/
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Log         LogConfig
	Attendance  AttendanceConfig
	Leave       LeaveConfig
	Payroll     PayrollConfig
	SeedOnStart bool
}

type ServerConfig struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

type DatabaseConfig struct {
	Driver string
	Path   string
	URL    string
}

// DSN is the path for sqlite and the URL for postgres.
func (d DatabaseConfig) DSN() string {
	if d.Driver == "postgres" {
		return d.URL
	}
	return d.Path
}

type LogConfig struct {
	Level  string
	Format string
}

type AttendanceConfig struct {
	RecalcInterval time.Duration
	RecalcWorkers  int
}

type LeaveConfig struct {
	DefaultEntitlement decimal.Decimal
}

type PayrollConfig struct {
	DefaultCurrency string
}

// Load reads .env, the environment and then args (usually os.Args[1:]).
func Load(args []string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg, err := fromEnv()
	if err != nil {
		return nil, err
	}

	fsFlags := flag.NewFlagSet("server", flag.ContinueOnError)
	fsFlags.IntVar(&cfg.Server.Port, "port", cfg.Server.Port, "HTTP server port")
	fsFlags.StringVar(&cfg.Database.Driver, "db-driver", cfg.Database.Driver, "database driver: sqlite, postgres or memory")
	fsFlags.StringVar(&cfg.Database.Path, "db", cfg.Database.Path, "SQLite database path (\":memory:\" for in-memory)")
	fsFlags.StringVar(&cfg.Database.URL, "database-url", cfg.Database.URL, "PostgreSQL connection URL")
	fsFlags.StringVar(&cfg.Log.Level, "log-level", cfg.Log.Level, "log level: debug, info, warn or error")
	fsFlags.BoolVar(&cfg.SeedOnStart, "seed", cfg.SeedOnStart, "seed reference data on start")
	if err := fsFlags.Parse(args); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func fromEnv() (*Config, error) {
	cfg := &Config{}
	var err error

	if cfg.Server.Port, err = getEnvInt("PORT", 8080); err != nil {
		return nil, err
	}
	if cfg.Server.ReadTimeout, err = getEnvDuration("HTTP_READ_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.Server.WriteTimeout, err = getEnvDuration("HTTP_WRITE_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.Server.IdleTimeout, err = getEnvDuration("HTTP_IDLE_TIMEOUT", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.Server.ShutdownTimeout, err = getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	cfg.Server.AllowedOrigins = getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"})

	cfg.Database = DatabaseConfig{
		Driver: getEnv("DB_DRIVER", "sqlite"),
		Path:   getEnv("DB_PATH", "hr.db"),
		URL:    getEnv("DATABASE_URL", ""),
	}

	cfg.Log = LogConfig{
		Level:  getEnv("LOG_LEVEL", "info"),
		Format: getEnv("LOG_FORMAT", "json"),
	}

	if cfg.Attendance.RecalcInterval, err = getEnvDuration("RECALC_INTERVAL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.Attendance.RecalcWorkers, err = getEnvInt("RECALC_WORKERS", 4); err != nil {
		return nil, err
	}

	entitlement := getEnv("LEAVE_DEFAULT_ENTITLEMENT", "12")
	if cfg.Leave.DefaultEntitlement, err = decimal.NewFromString(entitlement); err != nil {
		return nil, fmt.Errorf("invalid LEAVE_DEFAULT_ENTITLEMENT %q: %w", entitlement, err)
	}
	cfg.Payroll.DefaultCurrency = getEnv("PAYROLL_DEFAULT_CURRENCY", "VND")

	if cfg.SeedOnStart, err = getEnvBool("SEED_ON_START", true); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "memory":
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.Database.Driver)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Server.Port)
	}
	if c.Attendance.RecalcInterval < 0 {
		return fmt.Errorf("RECALC_INTERVAL must not be negative")
	}
	if c.Attendance.RecalcWorkers < 1 {
		return fmt.Errorf("RECALC_WORKERS must be at least 1")
	}
	if c.Leave.DefaultEntitlement.IsNegative() {
		return fmt.Errorf("LEAVE_DEFAULT_ENTITLEMENT must not be negative")
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getEnvList(key string, defaultValue []string) []string {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
