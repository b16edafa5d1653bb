// Package gorm opens the GORM connections used by the SQL job repository and provides the
// transaction manager chunk steps commit through. Dialects register themselves from the
// sqlite, mysql and postgres subpackages.
package gorm

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/avast/retry-go"
	"gorm.io/gorm"

	config "github.com/bryant1410/jsr352/pkg/batch/core/config"
	"github.com/bryant1410/jsr352/pkg/batch/support/util/exception"
	"github.com/bryant1410/jsr352/pkg/batch/support/util/logger"
)

const module = "GormDBProvider"

// DialectorFactory generates a gorm.Dialector from a config.DatabaseConfig.
type DialectorFactory func(cfg config.DatabaseConfig) (gorm.Dialector, error)

var (
	dialectorRegistry = make(map[string]DialectorFactory)
	dialectorMutex    sync.RWMutex
)

// RegisterDialector registers a DialectorFactory for the given database type.
func RegisterDialector(dbType string, factory DialectorFactory) {
	dialectorMutex.Lock()
	defer dialectorMutex.Unlock()
	if _, exists := dialectorRegistry[dbType]; exists {
		logger.Warnf("Dialector for type '%s' already registered. Overwriting.", dbType)
	}
	dialectorRegistry[dbType] = factory
}

// GetDialectorFactory retrieves the DialectorFactory corresponding to the specified DB type.
func GetDialectorFactory(dbType string) (DialectorFactory, error) {
	dialectorMutex.RLock()
	defer dialectorMutex.RUnlock()
	factory, ok := dialectorRegistry[dbType]
	if !ok {
		return nil, fmt.Errorf("no dialector registered for database type: %s", dbType)
	}
	return factory, nil
}

// RegisteredDialectors lists the registered database types in name order.
func RegisteredDialectors() []string {
	dialectorMutex.RLock()
	defer dialectorMutex.RUnlock()
	types := make([]string, 0, len(dialectorRegistry))
	for t := range dialectorRegistry {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// DBProvider owns the repository database connection. It connects on first use and retries
// the initial connection with backoff.
type DBProvider struct {
	cfg   config.DatabaseConfig
	retry config.RetryConfig
	level string

	mu sync.Mutex
	db *gorm.DB
}

// NewDBProvider creates a DBProvider for the repository configuration.
func NewDBProvider(cfg *config.RepositoryConfig, logging *config.LoggingConfig) *DBProvider {
	level := string(config.LogLevelSilent)
	if logging != nil && config.LogLevel(logging.Level) == config.LogLevelDebug {
		level = string(config.LogLevelInfo)
	}
	return &DBProvider{cfg: cfg.Database, retry: cfg.Retry, level: level}
}

// Type returns the database type.
func (p *DBProvider) Type() string {
	return p.cfg.Type
}

// DB returns the open connection, establishing it if needed.
func (p *DBProvider) DB(ctx context.Context) (*gorm.DB, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db != nil {
		return p.db, nil
	}
	db, err := p.connectWithRetry(ctx)
	if err != nil {
		return nil, err
	}
	p.db = db
	logger.Infof("Established DB connection (%s).", p.cfg.Type)
	return db, nil
}

// ForceReconnect closes the current connection, if any, and opens a new one.
func (p *DBProvider) ForceReconnect(ctx context.Context) (*gorm.DB, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db != nil {
		if err := closeDB(p.db); err != nil {
			logger.Warnf("Failed to close existing connection before reconnect: %v", err)
		}
		p.db = nil
	}
	db, err := p.connectWithRetry(ctx)
	if err != nil {
		return nil, err
	}
	p.db = db
	logger.Infof("Re-established DB connection (%s).", p.cfg.Type)
	return db, nil
}

// Close closes the connection. It is safe to call when nothing was opened.
func (p *DBProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db == nil {
		return nil
	}
	err := closeDB(p.db)
	p.db = nil
	return err
}

func (p *DBProvider) connectWithRetry(ctx context.Context) (*gorm.DB, error) {
	var db *gorm.DB
	err := retry.Do(
		func() error {
			var err error
			db, err = Open(p.cfg, p.level)
			return err
		},
		RetryOptions(ctx, p.retry, func(n uint, err error) {
			logger.Warnf("Connecting to %s database failed (attempt %d): %v", p.cfg.Type, n+1, err)
		})...,
	)
	if err != nil {
		return nil, exception.NewRepositoryError(module, fmt.Sprintf("failed to connect to %s database", p.cfg.Type), err, true)
	}
	return db, nil
}

// RetryOptions translates a RetryConfig into retry-go options.
func RetryOptions(ctx context.Context, rc config.RetryConfig, onRetry func(n uint, err error)) []retry.Option {
	attempts := rc.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	opts := []retry.Option{
		retry.Context(ctx),
		retry.Attempts(uint(attempts)),
		retry.Delay(time.Duration(rc.InitialInterval) * time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	}
	if rc.MaxInterval > 0 {
		opts = append(opts, retry.MaxDelay(time.Duration(rc.MaxInterval)*time.Millisecond))
	}
	if onRetry != nil {
		opts = append(opts, retry.OnRetry(onRetry))
	}
	return opts
}

// Open establishes a GORM connection based on DatabaseConfig and applies its pool settings.
func Open(dbConfig config.DatabaseConfig, logLevel string) (*gorm.DB, error) {
	dialectorFactory, err := GetDialectorFactory(dbConfig.Type)
	if err != nil {
		return nil, fmt.Errorf("failed to get dialector factory for %s: %w", dbConfig.Type, err)
	}
	dialector, err := dialectorFactory(dbConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create dialector for %s: %w", dbConfig.Type, err)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 NewGormLogger(logLevel),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open GORM connection: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if dbConfig.Pool.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(dbConfig.Pool.MaxOpenConns)
	}
	if dbConfig.Pool.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(dbConfig.Pool.MaxIdleConns)
	}
	if dbConfig.Pool.ConnMaxLifetimeMinutes > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(dbConfig.Pool.ConnMaxLifetimeMinutes) * time.Minute)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", dbConfig.Type, err)
	}
	return db, nil
}

func closeDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
