package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	c.normalizeSources()
	if err := c.normalizeCache(); err != nil {
		return err
	}
	c.Server.Bind = strings.TrimSpace(c.Server.Bind)
	if c.Server.Bind == "" {
		c.Server.Bind = defaultBind
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizeSources() {
	if value, ok := os.LookupEnv("CAREFEED_BASE_URL"); ok && strings.TrimSpace(value) != "" {
		c.Sources.BaseURL = value
	}
	if value, ok := os.LookupEnv("CAREFEED_FAQ_URL"); ok && strings.TrimSpace(value) != "" {
		c.Sources.FAQURL = value
	}
	c.Sources.BaseURL = strings.TrimSpace(c.Sources.BaseURL)
	c.Sources.FAQURL = strings.TrimSpace(c.Sources.FAQURL)
	c.Sources.UserAgent = strings.TrimSpace(c.Sources.UserAgent)
	if c.Sources.UserAgent == "" {
		c.Sources.UserAgent = defaultUserAgent
	}
	if c.Sources.RequestTimeout == 0 {
		c.Sources.RequestTimeout = defaultRequestTimeout
	}
	actions := make(map[string]string, len(c.Sources.Actions))
	for k, v := range c.Sources.Actions {
		actions[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	c.Sources.Actions = actions
}

func (c *Config) normalizeCache() error {
	c.Cache.Backend = strings.ToLower(strings.TrimSpace(c.Cache.Backend))
	if c.Cache.Backend == "" {
		c.Cache.Backend = defaultBackend
	}
	if c.Cache.Prefix == "" {
		c.Cache.Prefix = defaultPrefix
	}
	if c.Cache.PostgresDSN == "" {
		if value, ok := os.LookupEnv("CAREFEED_POSTGRES_DSN"); ok {
			c.Cache.PostgresDSN = strings.TrimSpace(value)
		}
	}
	if c.Cache.RedisPassword == "" {
		if value, ok := os.LookupEnv("CAREFEED_REDIS_PASSWORD"); ok {
			c.Cache.RedisPassword = value
		}
	}
	if strings.TrimSpace(c.Cache.PostgresTable) == "" {
		c.Cache.PostgresTable = defaultPostgresTable
	}

	var err error
	if c.Cache.SQLitePath, err = expandPath(strings.TrimSpace(c.Cache.SQLitePath)); err != nil {
		return fmt.Errorf("cache.sqlite_path: %w", err)
	}
	if c.Cache.FileDir, err = expandPath(strings.TrimSpace(c.Cache.FileDir)); err != nil {
		return fmt.Errorf("cache.file_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	switch c.Logging.Level {
	case "":
		c.Logging.Level = defaultLogLevel
	case "warning":
		c.Logging.Level = "warn"
	}
}
