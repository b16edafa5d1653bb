package config

// Package config provides structures and utilities for managing application configuration.

// EmbeddedConfig holds the content of the configuration file, typically passed from main.go.
type EmbeddedConfig []byte

// LogLevel defines the logging level for the application.
type LogLevel string

const (
	LogLevelTrace  LogLevel = "TRACE"
	LogLevelDebug  LogLevel = "DEBUG"
	LogLevelInfo   LogLevel = "INFO"
	LogLevelWarn   LogLevel = "WARN"
	LogLevelError  LogLevel = "ERROR"
	LogLevelFatal  LogLevel = "FATAL"
	LogLevelSilent LogLevel = "SILENT"
)

// Repository types.
const (
	RepositoryTypeInMemory = "inmemory"
	RepositoryTypeSQL      = "sql"
)

// EnvPrefix prefixes every environment variable that overrides a configuration value,
// e.g. JSR352_BATCH_CHUNK_SIZE or JSR352_REPOSITORY_DATABASE_HOST.
const EnvPrefix = "JSR352_"

// RetryConfig holds configuration for retrying transient failures.
type RetryConfig struct {
	MaxAttempts     int     `yaml:"max_attempts"`     // MaxAttempts is the maximum number of attempts, the first included.
	InitialInterval int     `yaml:"initial_interval"` // InitialInterval is the initial backoff interval in milliseconds.
	MaxInterval     int     `yaml:"max_interval"`     // MaxInterval is the maximum backoff interval in milliseconds.
	Factor          float64 `yaml:"factor"`           // Factor is the factor by which the interval increases.
}

// PoolConfig holds database connection pool settings.
type PoolConfig struct {
	MaxOpenConns           int `yaml:"max_open_conns"`
	MaxIdleConns           int `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int `yaml:"conn_max_lifetime_minutes"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Type     string     `yaml:"type"`     // Database type: "sqlite", "mysql" or "postgres".
	Host     string     `yaml:"host"`     // Database host address.
	Port     int        `yaml:"port"`     // Database port number.
	Database string     `yaml:"database"` // Database name, or the file path for SQLite.
	User     string     `yaml:"user"`     // Database user.
	Password string     `yaml:"password"` // Database password.
	Sslmode  string     `yaml:"sslmode"`  // SSL mode for PostgreSQL.
	Pool     PoolConfig `yaml:"pool"`     // Connection pool settings.
}

// BatchConfig holds configuration specific to the batch processing engine.
type BatchConfig struct {
	// ChunkSize is the item-count of chunk steps that do not set one.
	ChunkSize int `yaml:"chunk_size"`
	// PoolSize bounds the number of concurrently running partitions and flows.
	PoolSize int `yaml:"pool_size"`
	// ShutdownTimeoutSeconds is how long running executions get to stop on shutdown.
	ShutdownTimeoutSeconds int `yaml:"shutdown_timeout_seconds"`
}

// RepositoryConfig selects and configures the JobRepository.
type RepositoryConfig struct {
	// Type is RepositoryTypeInMemory or RepositoryTypeSQL.
	Type string `yaml:"type"`
	// Database is the connection used by the SQL repository.
	Database DatabaseConfig `yaml:"database"`
	// Migrate applies the embedded schema migrations on start.
	Migrate bool `yaml:"migrate"`
	// DefinitionCacheSize is the number of job definitions kept decoded in memory.
	DefinitionCacheSize int `yaml:"definition_cache_size"`
	// Retry governs retries of transient database errors.
	Retry RetryConfig `yaml:"retry"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the logging level (e.g., "INFO", "DEBUG", "TRACE").
	Level string `yaml:"level"`
}

// SystemConfig holds system-wide settings.
type SystemConfig struct {
	// Timezone is the application timezone (e.g., "UTC", "Asia/Tokyo").
	Timezone string `yaml:"timezone"`
	// Logging is the logging configuration.
	Logging LoggingConfig `yaml:"logging"`
}

// MetricsConfig configures the Prometheus recorder.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// TracingConfig configures the OpenTelemetry tracer.
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
	// Endpoint is the OTLP/HTTP collector address (host:port). When empty the exporter reads
	// the standard OTEL_EXPORTER_OTLP_* environment variables.
	Endpoint string `yaml:"endpoint"`
	Insecure bool   `yaml:"insecure"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// MaskedParameterKeys is a list of keys in JobParameters whose values should be masked in logs.
	MaskedParameterKeys []string `yaml:"masked_parameter_keys"`
}

// Config is the root of the application configuration.
type Config struct {
	Batch      BatchConfig      `yaml:"batch"`
	Repository RepositoryConfig `yaml:"repository"`
	System     SystemConfig     `yaml:"system"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Tracing    TracingConfig    `yaml:"tracing"`
	Security   SecurityConfig   `yaml:"security"`
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Batch: BatchConfig{
			ChunkSize:              10,
			PoolSize:               10,
			ShutdownTimeoutSeconds: 30,
		},
		Repository: RepositoryConfig{
			Type: RepositoryTypeInMemory,
			Database: DatabaseConfig{
				Type:     "sqlite",
				Database: "file::memory:?cache=shared",
				Pool: PoolConfig{
					MaxOpenConns: 10,
					MaxIdleConns: 5,
				},
			},
			Migrate:             true,
			DefinitionCacheSize: 128,
			Retry: RetryConfig{
				MaxAttempts:     3,
				InitialInterval: 100,
				MaxInterval:     2000,
				Factor:          2.0,
			},
		},
		System: SystemConfig{
			Timezone: "UTC",
			Logging:  LoggingConfig{Level: string(LogLevelInfo)},
		},
		Metrics: MetricsConfig{
			Namespace: "jsr352",
		},
		Tracing: TracingConfig{
			ServiceName: "jsr352",
		},
		Security: SecurityConfig{
			MaskedParameterKeys: []string{"password", "api_key", "secret"},
		},
	}
}
