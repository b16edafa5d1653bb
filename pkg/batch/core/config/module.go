package config

import (
	"context"
	"time"

	"go.uber.org/fx"

	"github.com/bryant1410/jsr352/pkg/batch/core/pool"
)

// NewLoggingConfigProvider extracts and provides *LoggingConfig from *Config.
// This allows other Fx components to depend only on the logging configuration.
func NewLoggingConfigProvider(cfg *Config) *LoggingConfig {
	return &cfg.System.Logging
}

// NewRepositoryConfigProvider extracts and provides *RepositoryConfig from *Config.
func NewRepositoryConfigProvider(cfg *Config) *RepositoryConfig {
	return &cfg.Repository
}

// NewWorkerPool creates the pool partitions and split flows run on, sized by batch.pool_size.
// It is shut down when the application stops.
func NewWorkerPool(lc fx.Lifecycle, cfg *Config) *pool.Pool {
	p := pool.New(pool.WithSize(cfg.Batch.PoolSize), pool.WithName("batch"))
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			timeout := time.Duration(cfg.Batch.ShutdownTimeoutSeconds) * time.Second
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			return p.Shutdown(ctx)
		},
	})
	return p
}

// Module provides configuration-related components to Fx.
// The application supplies the EmbeddedConfig and, optionally, the named "envFilePath" string.
var Module = fx.Options(
	fx.Provide(func() EnvironmentExpander {
		return NewOsEnvironmentExpander()
	}),
	fx.Provide(NewConfigProvider),
	fx.Provide(NewLoggingConfigProvider),
	fx.Provide(NewRepositoryConfigProvider),
	fx.Provide(NewWorkerPool),
)
