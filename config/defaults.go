package config

const (
	defaultBaseURL        = "https://script.google.com/macros/s/REPLACE_WITH_DEPLOYMENT_ID/exec"
	defaultFAQURL         = "https://docs.google.com/spreadsheets/d/REPLACE_WITH_SHEET_ID/export?format=csv"
	defaultRequestTimeout = 15
	defaultUserAgent      = "carefeed/dev"
	defaultRetries        = 1
	defaultMaxRedirects   = 5
	defaultBackend        = BackendSQLite
	defaultPrefix         = "@carefeed_cache_"
	defaultSQLitePath     = "~/.local/share/carefeed/cache.db"
	defaultFileDir        = "~/.cache/carefeed/entries"
	defaultRedisAddr      = "127.0.0.1:6379"
	defaultPostgresTable  = "carefeed_kv"
	defaultPostgresPool   = 4
	defaultPostgresIdle   = 2
	defaultPostgresLife   = 1800
	defaultBind           = "127.0.0.1:7878"
	defaultReadTimeout    = 15
	defaultWriteTimeout   = 60
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
	defaultConfigPath     = "~/.config/carefeed/config.toml"
	projectConfigName     = "carefeed.toml"
)

// Cache backends.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Sources: Sources{
			BaseURL:        defaultBaseURL,
			FAQURL:         defaultFAQURL,
			Actions:        map[string]string{},
			RequestTimeout: defaultRequestTimeout,
			UserAgent:      defaultUserAgent,
			Retries:        defaultRetries,
			MaxRedirects:   defaultMaxRedirects,
		},
		Cache: Cache{
			Backend:       defaultBackend,
			Prefix:        defaultPrefix,
			SQLitePath:    defaultSQLitePath,
			FileDir:       defaultFileDir,
			RedisAddr:     defaultRedisAddr,
			PostgresTable: defaultPostgresTable,

			PostgresMaxOpenConns:    defaultPostgresPool,
			PostgresMaxIdleConns:    defaultPostgresIdle,
			PostgresConnMaxLifetime: defaultPostgresLife,
		},
		Server: Server{
			Bind:         defaultBind,
			ReadTimeout:  defaultReadTimeout,
			WriteTimeout: defaultWriteTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Breaker: Breaker{
			Enabled:         true,
			MaxRequests:     1,
			IntervalSeconds: 300,
			TimeoutSeconds:  60,
			FailureRatio:    0.8,
			MinRequests:     5,
		},
	}
}
