package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/adeilh/carefeed/cache"
	"github.com/adeilh/carefeed/config"
	"github.com/adeilh/carefeed/httpx"
	"github.com/adeilh/carefeed/logging"
	"github.com/adeilh/carefeed/metrics"
	"github.com/adeilh/carefeed/source"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error

	logger  *zap.Logger
	metrics *metrics.Collector
	catalog *source.Catalog
	closers []func() error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
			cfg.Logging.Level = strings.ToLower(strings.TrimSpace(*c.logLevelFlag))
		}
		logger, err := logging.New(cfg.LoggingOptions())
		if err != nil {
			c.configErr = fmt.Errorf("build logger: %w", err)
			return
		}
		c.config = cfg
		c.configPath = resolved
		c.logger = logger
	})
	return c.config, c.configErr
}

// runtime opens the cache backend and builds the source catalog once per
// invocation.
func (c *commandContext) runtime(ctx context.Context) (*source.Catalog, error) {
	if c.catalog != nil {
		return c.catalog, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}

	backend, closeBackend, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	c.closers = append(c.closers, closeBackend)

	c.metrics = metrics.NewCollector("carefeed")
	store := cache.NewStore(backend,
		cache.WithPrefix(cfg.Cache.Prefix),
		cache.WithLogger(c.logger),
		cache.WithObserver(c.metrics),
	)
	client := httpx.NewClient(cfg.ClientOptions()...)
	catalog, err := source.NewCatalog(store, client, cfg.Endpoints(),
		source.WithLogger(c.logger),
		source.WithMetrics(c.metrics),
		source.WithBreaker(cfg.BreakerSettings()),
	)
	if err != nil {
		return nil, err
	}
	c.catalog = catalog
	return catalog, nil
}

func (c *commandContext) close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		errs = append(errs, c.closers[i]())
	}
	c.closers = nil
	if c.logger != nil {
		_ = c.logger.Sync()
	}
	return errors.Join(errs...)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
