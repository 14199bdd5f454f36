// Package config loads the server configuration.
//
// Sources are applied in order, later ones win: built-in defaults, an
// optional YAML file (with ${VAR} substitution), TMMERGE_* environment
// variables (optionally read from a .env file) and command-line flags.
package config

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "TMMERGE_"

var (
	// ErrHelp is returned when -h was requested.
	ErrHelp = flag.ErrHelp
	// ErrVersion is returned when -version was requested.
	ErrVersion = errors.New("version requested")
)

// Config represents the server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
	Merge     MergeConfig     `yaml:"merge"`
	Events    EventsConfig    `yaml:"events"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds sqlite settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds token settings.
type AuthConfig struct {
	JWTSecret       string        `yaml:"jwt_secret"`
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// MergeConfig tunes the TM merge.
type MergeConfig struct {
	// Concurrency is the number of text flows looked up in parallel.
	Concurrency int `yaml:"concurrency"`
	// CandidateLimit caps the candidates loaded per lookup and source.
	CandidateLimit int `yaml:"candidate_limit"`
}

// EventsConfig holds live notification settings.
type EventsConfig struct {
	// Buffer is the per-subscriber queue length; events beyond it are dropped.
	Buffer int `yaml:"buffer"`
}

// RateLimitConfig limits requests per client IP.
type RateLimitConfig struct {
	Requests     int           `yaml:"requests"`
	Window       time.Duration `yaml:"window"`
	AuthRequests int           `yaml:"auth_requests"`
}

// envVarPattern matches ${VAR_NAME} patterns.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address:         ":8080",
			ReadTimeout:     15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Path: "tmmerge.db",
		},
		Auth: AuthConfig{
			AccessTokenTTL:  15 * time.Minute,
			RefreshTokenTTL: 30 * 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Merge: MergeConfig{
			Concurrency:    4,
			CandidateLimit: 500,
		},
		Events: EventsConfig{
			Buffer: 64,
		},
		RateLimit: RateLimitConfig{
			Requests:     300,
			Window:       time.Minute,
			AuthRequests: 10,
		},
	}
}

// Load builds the configuration from args (without the program name).
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("tmmerge-server", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to YAML config file")
	envFile := fs.String("env-file", "", "Path to .env file")
	address := fs.String("addr", "", "HTTP listen address")
	dbPath := fs.String("db", "", "Path to sqlite database")
	logLevel := fs.String("log-level", "", "Log level: debug, info, warn, error")
	logFormat := fs.String("log-format", "", "Log format: text, json")
	showVersion := fs.Bool("version", false, "Show version information")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if *showVersion {
		return nil, ErrVersion
	}

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			return nil, fmt.Errorf("loading env file: %w", err)
		}
	} else if _, err := os.Stat(".env"); err == nil {
		// .env рядом с бинарником не обязателен
		_ = godotenv.Load(".env")
	}

	if *configPath == "" {
		*configPath = os.Getenv(EnvPrefix + "CONFIG")
	}

	cfg := DefaultConfig()
	if *configPath != "" {
		if err := cfg.loadFile(*configPath); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	// флаги важнее всего остального
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Server.Address = *address
		case "db":
			cfg.Database.Path = *dbPath
		case "log-level":
			cfg.Logging.Level = *logLevel
		case "log-format":
			cfg.Logging.Format = *logFormat
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	// Substitute environment variables
	data = envVarPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		varName := envVarPattern.FindSubmatch(match)[1]
		return []byte(os.Getenv(string(varName)))
	})

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"ADDRESS":    &c.Server.Address,
		"DB_PATH":    &c.Database.Path,
		"JWT_SECRET": &c.Auth.JWTSecret,
		"LOG_LEVEL":  &c.Logging.Level,
		"LOG_FORMAT": &c.Logging.Format,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"READ_TIMEOUT":      &c.Server.ReadTimeout,
		"SHUTDOWN_TIMEOUT":  &c.Server.ShutdownTimeout,
		"ACCESS_TOKEN_TTL":  &c.Auth.AccessTokenTTL,
		"REFRESH_TOKEN_TTL": &c.Auth.RefreshTokenTTL,
		"RATE_LIMIT_WINDOW": &c.RateLimit.Window,
	}
	for key, dst := range durations {
		v, ok := os.LookupEnv(EnvPrefix + key)
		if !ok {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s%s: %w", EnvPrefix, key, err)
		}
		*dst = d
	}

	ints := map[string]*int{
		"MERGE_CONCURRENCY":        &c.Merge.Concurrency,
		"CANDIDATE_LIMIT":          &c.Merge.CandidateLimit,
		"EVENT_BUFFER":             &c.Events.Buffer,
		"RATE_LIMIT_REQUESTS":      &c.RateLimit.Requests,
		"RATE_LIMIT_AUTH_REQUESTS": &c.RateLimit.AuthRequests,
	}
	for key, dst := range ints {
		v, ok := os.LookupEnv(EnvPrefix + key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s%s: %w", EnvPrefix, key, err)
		}
		*dst = n
	}
	return nil
}

// Validate checks the configuration values.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Address == "" {
		errs = append(errs, errors.New("server address is required"))
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database path is required"))
	}
	if len(c.Auth.JWTSecret) < 32 {
		errs = append(errs, fmt.Errorf("jwt secret must be at least 32 bytes (set %sJWT_SECRET)", EnvPrefix))
	}
	if c.Auth.AccessTokenTTL <= 0 || c.Auth.RefreshTokenTTL <= 0 {
		errs = append(errs, errors.New("token TTLs must be positive"))
	}
	if _, err := c.Logging.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Logging.Format))
	}
	if c.Merge.Concurrency < 1 {
		errs = append(errs, errors.New("merge concurrency must be at least 1"))
	}
	if c.Merge.CandidateLimit < 1 {
		errs = append(errs, errors.New("candidate limit must be at least 1"))
	}
	if c.Events.Buffer < 1 {
		errs = append(errs, errors.New("event buffer must be at least 1"))
	}
	if c.RateLimit.Requests < 1 || c.RateLimit.AuthRequests < 1 || c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("rate limit values must be positive"))
	}
	return errors.Join(errs...)
}

// SlogLevel parses the configured level.
func (l LoggingConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(l.Level))); err != nil {
		return 0, fmt.Errorf("unknown log level %q", l.Level)
	}
	return level, nil
}

// NewLogger creates the process logger.
func (l LoggingConfig) NewLogger() *slog.Logger {
	level, err := l.SlogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
