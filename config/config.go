/*
Package config loads the server settings.

SOURCES (later wins):
  1. built-in defaults
  2. an optional YAML file (-config flag)
  3. a .env file in the working directory, if present
  4. TIMETRACK_* environment variables (DATABASE_URL for Postgres)
  5. command-line flags, applied by cmd/server

EXAMPLE:
  server:
    addr: ":8080"
    cors_origins: ["http://localhost:5173"]
    scenarios: true
  store:
    driver: sqlite
    sqlite_path: ./data/timetrack.db
  log:
    level: info
    format: json
  policy:
    timezone: Europe/Berlin
    max_failed_logins: 5
    default_vacation_days: 30
*/
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config is the complete server configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Store    StoreConfig    `yaml:"store"`
	Postgres PostgresConfig `yaml:"postgres"`
	Log      LogConfig      `yaml:"log"`
	Policy   PolicyConfig   `yaml:"policy"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr               string        `yaml:"addr"`
	CORSOrigins        []string      `yaml:"cors_origins"`
	Scenarios          bool          `yaml:"scenarios"`
	ShutdownTimeout    time.Duration `yaml:"-"`
	ShutdownTimeoutRaw string        `yaml:"shutdown_timeout"`
}

// StoreConfig selects the record store.
type StoreConfig struct {
	Driver     string `yaml:"driver"`
	SQLitePath string `yaml:"sqlite_path"`
}

// PostgresConfig configures the pgx pool. URL, when set, takes precedence
// over the individual connection fields.
type PostgresConfig struct {
	URL                string        `yaml:"url"`
	Host               string        `yaml:"host"`
	Port               int           `yaml:"port"`
	User               string        `yaml:"user"`
	Password           string        `yaml:"password"`
	Name               string        `yaml:"name"`
	SSLMode            string        `yaml:"ssl_mode"`
	MaxConns           int           `yaml:"max_conns"`
	MinConns           int           `yaml:"min_conns"`
	ConnMaxLifetime    time.Duration `yaml:"-"`
	ConnMaxIdleTime    time.Duration `yaml:"-"`
	ConnMaxLifetimeRaw string        `yaml:"conn_max_lifetime"`
	ConnMaxIdleTimeRaw string        `yaml:"conn_max_idle_time"`
}

// LogConfig configures the root logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// PolicyConfig holds the business settings.
type PolicyConfig struct {
	Timezone            string         `yaml:"timezone"`
	Location            *time.Location `yaml:"-"`
	MaxFailedLogins     int            `yaml:"max_failed_logins"`
	DefaultVacationDays int            `yaml:"default_vacation_days"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:               ":8080",
			CORSOrigins:        []string{"*"},
			ShutdownTimeoutRaw: "10s",
		},
		Store: StoreConfig{
			Driver:     DriverSQLite,
			SQLitePath: "./data/timetrack.db",
		},
		Postgres: PostgresConfig{
			Port:    5432,
			SSLMode: "disable",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Policy: PolicyConfig{
			Timezone:            "UTC",
			MaxFailedLogins:     5,
			DefaultVacationDays: 30,
		},
	}
}

// Load reads the configuration. An empty path skips the YAML file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("config: parse yaml: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}
	cfg.applyEnv()

	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Addr = getEnv("TIMETRACK_ADDR", c.Server.Addr)
	if origins := getEnv("TIMETRACK_CORS_ORIGINS", ""); origins != "" {
		c.Server.CORSOrigins = splitList(origins)
	}
	c.Server.Scenarios = getEnvBool("TIMETRACK_SCENARIOS", c.Server.Scenarios)
	c.Server.ShutdownTimeoutRaw = getEnv("TIMETRACK_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeoutRaw)

	c.Store.Driver = getEnv("TIMETRACK_STORE", c.Store.Driver)
	c.Store.SQLitePath = getEnv("TIMETRACK_SQLITE_PATH", c.Store.SQLitePath)

	c.Postgres.URL = getEnv("DATABASE_URL", c.Postgres.URL)
	c.Postgres.MaxConns = getEnvInt("TIMETRACK_PG_MAX_CONNS", c.Postgres.MaxConns)

	c.Log.Level = getEnv("TIMETRACK_LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("TIMETRACK_LOG_FORMAT", c.Log.Format)

	c.Policy.Timezone = getEnv("TIMETRACK_TIMEZONE", c.Policy.Timezone)
	c.Policy.MaxFailedLogins = getEnvInt("TIMETRACK_MAX_FAILED_LOGINS", c.Policy.MaxFailedLogins)
	c.Policy.DefaultVacationDays = getEnvInt("TIMETRACK_DEFAULT_VACATION_DAYS", c.Policy.DefaultVacationDays)
}

// Normalize validates the settings and fills the derived fields. cmd/server
// calls it again after applying flags.
func (c *Config) Normalize() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("config: server.addr must be set")
	}
	timeout, err := parseDurationAllowEmpty(c.Server.ShutdownTimeoutRaw)
	if err != nil {
		return fmt.Errorf("config: server.shutdown_timeout: %w", err)
	}
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	c.Server.ShutdownTimeout = timeout

	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	switch c.Store.Driver {
	case DriverSQLite:
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("config: store.sqlite_path must be set for the sqlite driver")
		}
	case DriverPostgres:
		if err := c.Postgres.validateAndNormalize(); err != nil {
			return err
		}
	case DriverMemory:
	default:
		return fmt.Errorf("config: unknown store.driver %q (use sqlite, postgres or memory)", c.Store.Driver)
	}

	switch strings.ToLower(c.Log.Format) {
	case "", "text":
		c.Log.Format = "text"
	case "json":
		c.Log.Format = "json"
	default:
		return fmt.Errorf("config: unknown log.format %q (use text or json)", c.Log.Format)
	}

	loc, err := time.LoadLocation(c.Policy.Timezone)
	if err != nil {
		return fmt.Errorf("config: policy.timezone: %w", err)
	}
	c.Policy.Location = loc
	if c.Policy.MaxFailedLogins < 1 {
		return fmt.Errorf("config: policy.max_failed_logins must be at least 1")
	}
	if c.Policy.DefaultVacationDays < 0 || c.Policy.DefaultVacationDays > 365 {
		return fmt.Errorf("config: policy.default_vacation_days must be between 0 and 365")
	}
	return nil
}

func (p *PostgresConfig) validateAndNormalize() error {
	if p.URL == "" {
		if p.Host == "" {
			return fmt.Errorf("config: postgres.host or postgres.url must be set")
		}
		if p.Name == "" {
			return fmt.Errorf("config: postgres.name must be set")
		}
		if p.Port == 0 {
			p.Port = 5432
		}
	}
	if p.SSLMode == "" {
		p.SSLMode = "disable"
	}

	lifetime, err := parseDurationAllowEmpty(p.ConnMaxLifetimeRaw)
	if err != nil {
		return fmt.Errorf("config: postgres.conn_max_lifetime: %w", err)
	}
	p.ConnMaxLifetime = lifetime

	idle, err := parseDurationAllowEmpty(p.ConnMaxIdleTimeRaw)
	if err != nil {
		return fmt.Errorf("config: postgres.conn_max_idle_time: %w", err)
	}
	p.ConnMaxIdleTime = idle
	return nil
}

// DSN returns the pgx connection string.
func (p PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(p.User, p.Password),
		Host:     fmt.Sprintf("%s:%d", p.Host, p.Port),
		Path:     "/" + p.Name,
		RawQuery: url.Values{"sslmode": {p.SSLMode}}.Encode(),
	}
	return u.String()
}

// =============================================================================
// ENVIRONMENT HELPERS
// =============================================================================

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return v
	}
	return fallback
}

func parseDurationAllowEmpty(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	return time.ParseDuration(raw)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
