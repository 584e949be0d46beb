// Package config loads simulator configuration from the environment,
// optionally seeded from a .env file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Auth      AuthConfig
	Trace     TraceConfig
	Ledger    LedgerConfig
	Audit     AuditConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	MySQL     MySQLConfig
}

type ServerConfig struct {
	Host              string        `envconfig:"HOST" default:"0.0.0.0"`
	Port              string        `envconfig:"PORT" default:"8000"`
	ReadHeaderTimeout time.Duration `envconfig:"READ_HEADER_TIMEOUT" default:"5s"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string { return s.Host + ":" + s.Port }

type AuthConfig struct {
	// Backend selects the user directory: memory or mysql.
	Backend   string        `envconfig:"AUTH_BACKEND" default:"memory"`
	Username  string        `envconfig:"AUTH_USERNAME" default:"testuser"`
	Password  string        `envconfig:"AUTH_PASSWORD" default:"password"`
	JWTSecret string        `envconfig:"JWT_SECRET" default:"change-me-secret"`
	TokenTTL  time.Duration `envconfig:"TOKEN_TTL" default:"24h"`
	// LoginDelay simulates the credential check round trip.
	LoginDelay time.Duration `envconfig:"LOGIN_DELAY" default:"300ms"`
}

type TraceConfig struct {
	FailureRate     float64       `envconfig:"TRACE_FAILURE_RATE" default:"0.05"`
	RouteDelay      time.Duration `envconfig:"TRACE_ROUTE_DELAY" default:"800ms"`
	RouteJitter     time.Duration `envconfig:"TRACE_ROUTE_JITTER" default:"500ms"`
	MACDelay        time.Duration `envconfig:"TRACE_MAC_DELAY" default:"400ms"`
	MACJitter       time.Duration `envconfig:"TRACE_MAC_JITTER" default:"200ms"`
	GatewayDelay    time.Duration `envconfig:"GATEWAY_DELAY" default:"200ms"`
	GatewayJitter   time.Duration `envconfig:"GATEWAY_JITTER" default:"100ms"`
	StreamHopPacing time.Duration `envconfig:"TRACE_STREAM_PACING" default:"150ms"`
}

type LedgerConfig struct {
	Capacity int `envconfig:"LEDGER_CAPACITY" default:"50"`
}

type AuditConfig struct {
	// SQLitePath enables the sqlite-backed audit journal when set.
	SQLitePath string `envconfig:"AUDIT_SQLITE_PATH"`
	Capacity   int    `envconfig:"AUDIT_CAPACITY" default:"500"`
}

type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"50"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"100"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

type CORSConfig struct {
	AllowOrigins []string `envconfig:"CORS_ORIGINS" default:"http://localhost:3000,http://127.0.0.1:3000"`
}

// MySQLConfig is only consulted when Auth.Backend is mysql.
type MySQLConfig struct {
	DSN  string `envconfig:"MYSQL_DSN"`
	Host string `envconfig:"MYSQL_HOST" default:"127.0.0.1"`
	Port string `envconfig:"MYSQL_PORT" default:"3306"`
	User string `envconfig:"MYSQL_USER" default:"root"`
	Pass string `envconfig:"MYSQL_PASS"`
	DB   string `envconfig:"MYSQL_DB" default:"tracesim"`
}

// Load reads .env (if present) and then the process environment.
func Load() (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration Load produces with an empty environment.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: "8000", ReadHeaderTimeout: 5 * time.Second},
		Auth: AuthConfig{
			Backend:    "memory",
			Username:   "testuser",
			Password:   "password",
			JWTSecret:  "change-me-secret",
			TokenTTL:   24 * time.Hour,
			LoginDelay: 300 * time.Millisecond,
		},
		Trace: TraceConfig{
			FailureRate:     0.05,
			RouteDelay:      800 * time.Millisecond,
			RouteJitter:     500 * time.Millisecond,
			MACDelay:        400 * time.Millisecond,
			MACJitter:       200 * time.Millisecond,
			GatewayDelay:    200 * time.Millisecond,
			GatewayJitter:   100 * time.Millisecond,
			StreamHopPacing: 150 * time.Millisecond,
		},
		Ledger:    LedgerConfig{Capacity: 50},
		Audit:     AuditConfig{Capacity: 500},
		Logging:   LogConfig{Level: "info"},
		RateLimit: RateLimitConfig{RequestsPerSecond: 50, Burst: 100, Enabled: true},
		CORS:      CORSConfig{AllowOrigins: []string{"http://localhost:3000", "http://127.0.0.1:3000"}},
		MySQL:     MySQLConfig{Host: "127.0.0.1", Port: "3306", User: "root", DB: "tracesim"},
	}
}

// Validate rejects values the services cannot run with.
func (c *Config) Validate() error {
	if c.Trace.FailureRate < 0 || c.Trace.FailureRate > 1 {
		return fmt.Errorf("TRACE_FAILURE_RATE must be within [0,1], got %v", c.Trace.FailureRate)
	}
	if c.Ledger.Capacity < 1 {
		return fmt.Errorf("LEDGER_CAPACITY must be positive, got %d", c.Ledger.Capacity)
	}
	switch c.Auth.Backend {
	case "memory", "mysql":
	default:
		return fmt.Errorf("unsupported AUTH_BACKEND %q", c.Auth.Backend)
	}
	return nil
}

// loadDotEnv never overrides variables already set in the environment.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	return godotenv.Load(path)
}
