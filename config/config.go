package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/adeilh/carefeed/httpx"
	"github.com/adeilh/carefeed/logging"
	"github.com/adeilh/carefeed/source"
)

//go:embed sample_config.toml
var sampleConfig string

// Sources locates the remote spreadsheets.
type Sources struct {
	BaseURL string `toml:"base_url" validate:"required,url"`
	FAQURL  string `toml:"faq_url" validate:"required,url"`
	// Actions overrides the ?action= value per source name.
	Actions        map[string]string `toml:"actions"`
	RequestTimeout int               `toml:"request_timeout" validate:"min=1,max=300"`
	UserAgent      string            `toml:"user_agent"`
	// Retries re-issues a request after a transport failure or a 5xx answer.
	Retries      int `toml:"retries" validate:"min=0,max=5"`
	MaxRedirects int `toml:"max_redirects" validate:"min=0,max=10"`
}

// Cache selects and configures the persisted key-value store.
type Cache struct {
	Backend       string `toml:"backend" validate:"oneof=memory sqlite file redis postgres"`
	Prefix        string `toml:"prefix" validate:"required"`
	SQLitePath    string `toml:"sqlite_path" validate:"required_if=Backend sqlite"`
	FileDir       string `toml:"file_dir" validate:"required_if=Backend file"`
	RedisAddr     string `toml:"redis_addr" validate:"required_if=Backend redis"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db" validate:"min=0,max=15"`
	PostgresDSN   string `toml:"postgres_dsn" validate:"required_if=Backend postgres"`
	PostgresTable string `toml:"postgres_table"`
	// Pool settings. Zero open conns or lifetime keeps the backend default.
	PostgresMaxOpenConns    int `toml:"postgres_max_open_conns" validate:"min=0"`
	PostgresMaxIdleConns    int `toml:"postgres_max_idle_conns" validate:"min=0"`
	PostgresConnMaxLifetime int `toml:"postgres_conn_max_lifetime" validate:"min=0"` // seconds
}

// Server configures `carefeed serve`.
type Server struct {
	Bind         string `toml:"bind" validate:"required,hostname_port"`
	ReadTimeout  int    `toml:"read_timeout" validate:"min=1,max=600"`
	WriteTimeout int    `toml:"write_timeout" validate:"min=1,max=600"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format" validate:"oneof=console json"`
	Level  string `toml:"level" validate:"oneof=debug info warn error"`
}

// Breaker tunes the per-source circuit breaker.
type Breaker struct {
	Enabled         bool    `toml:"enabled"`
	MaxRequests     uint32  `toml:"max_requests" validate:"min=1"`
	IntervalSeconds int     `toml:"interval_seconds" validate:"min=0"`
	TimeoutSeconds  int     `toml:"timeout_seconds" validate:"min=1"`
	FailureRatio    float64 `toml:"failure_ratio" validate:"gt=0,lte=1"`
	MinRequests     uint32  `toml:"min_requests" validate:"min=1"`
}

// Config encapsulates all configuration values for carefeed.
type Config struct {
	Sources Sources `toml:"sources"`
	Cache   Cache   `toml:"cache"`
	Server  Server  `toml:"server"`
	Logging Logging `toml:"logging"`
	Breaker Breaker `toml:"breaker"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. A missing file
// is not an error: defaults apply and exists is false.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file).DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs(projectConfigName)
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// Encode renders the configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}

// Endpoints returns the remote locations for source.NewCatalog.
func (c *Config) Endpoints() source.Endpoints {
	actions := make(map[string]string, len(c.Sources.Actions))
	for k, v := range c.Sources.Actions {
		actions[k] = v
	}
	return source.Endpoints{
		FAQURL:  c.Sources.FAQURL,
		BaseURL: c.Sources.BaseURL,
		Actions: actions,
	}
}

// RequestTimeout is the per-request HTTP timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Sources.RequestTimeout) * time.Second
}

// ClientOptions converts the [sources] transport settings.
func (c *Config) ClientOptions() []httpx.ClientOption {
	return []httpx.ClientOption{
		httpx.WithClientTimeout(c.RequestTimeout()),
		httpx.WithUserAgent(c.Sources.UserAgent),
		httpx.WithRetry(c.Sources.Retries, 0),
		httpx.WithMaxRedirects(c.Sources.MaxRedirects),
	}
}

// ServerOptions converts the [server] section.
func (c *Config) ServerOptions() []httpx.ServerOption {
	return []httpx.ServerOption{
		httpx.WithAddress(c.Server.Bind),
		httpx.WithTimeouts(
			time.Duration(c.Server.ReadTimeout)*time.Second,
			time.Duration(c.Server.WriteTimeout)*time.Second,
		),
	}
}

// PostgresConnMaxLifetime converts cache.postgres_conn_max_lifetime.
func (c *Config) PostgresConnMaxLifetime() time.Duration {
	return time.Duration(c.Cache.PostgresConnMaxLifetime) * time.Second
}

// BreakerSettings converts the [breaker] section.
func (c *Config) BreakerSettings() source.BreakerSettings {
	return source.BreakerSettings{
		Disabled:     !c.Breaker.Enabled,
		MaxRequests:  c.Breaker.MaxRequests,
		Interval:     time.Duration(c.Breaker.IntervalSeconds) * time.Second,
		Timeout:      time.Duration(c.Breaker.TimeoutSeconds) * time.Second,
		FailureRatio: c.Breaker.FailureRatio,
		MinRequests:  c.Breaker.MinRequests,
	}
}

// LoggingOptions converts the [logging] section.
func (c *Config) LoggingOptions() logging.Options {
	return logging.Options{Level: c.Logging.Level, Format: c.Logging.Format}
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" || pathValue == ":memory:" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
