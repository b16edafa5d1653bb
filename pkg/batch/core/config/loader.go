package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/bryant1410/jsr352/pkg/batch/core/domain/model"
	"github.com/bryant1410/jsr352/pkg/batch/support/util/exception"
	"github.com/bryant1410/jsr352/pkg/batch/support/util/logger"

	"go.uber.org/fx"
)

const moduleName = "config"

// ConfigParams defines the dependencies for NewConfigProvider.
type ConfigParams struct {
	fx.In
	EmbeddedConfig EmbeddedConfig      `optional:"true"`                   // EmbeddedConfig contains the raw bytes of the configuration file.
	EnvFilePath    string              `name:"envFilePath" optional:"true"` // EnvFilePath is the path to the .env file, if any.
	Expander       EnvironmentExpander `optional:"true"`
}

// loadConfig loads configuration from a file and environment variables.
//
// The order is: defaults from NewConfig, then the YAML document with ${VAR} placeholders
// expanded, then JSR352_* environment variables. Values from a .env file are visible to
// both of the last two steps.
func loadConfig(envFilePath string, embeddedConfig EmbeddedConfig, expander EnvironmentExpander) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			logger.Warnf(".env file (%s) not found or could not be loaded: %v", envFilePath, err)
		}
	} else {
		if err := godotenv.Load(); err != nil {
			logger.Debugf(".env file not found or could not be loaded: %v", err)
		}
	}
	if expander == nil {
		expander = NewOsEnvironmentExpander()
	}

	cfg := NewConfig()

	if len(embeddedConfig) > 0 {
		expanded, err := expander.Expand(embeddedConfig)
		if err != nil {
			return nil, exception.NewValidationError(moduleName, "failed to expand environment variables in config", err)
		}
		// Fields absent from the document keep their defaults.
		if err := yaml.Unmarshal(expanded, cfg); err != nil {
			return nil, exception.NewValidationError(moduleName, "failed to unmarshal embedded config", err)
		}
	}

	if err := loadStructFromEnv(reflect.ValueOf(cfg).Elem(), EnvPrefix); err != nil {
		return nil, exception.NewValidationError(moduleName, "failed to load config from environment variables", err)
	}
	return cfg, nil
}

// NewConfigProvider is an Fx provider that loads, validates and provides *Config.
// It also applies the logging level and the masked parameter keys globally.
func NewConfigProvider(params ConfigParams) (*Config, error) {
	cfg, err := loadConfig(params.EnvFilePath, params.EmbeddedConfig, params.Expander)
	if err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}

	logger.SetLogLevel(cfg.System.Logging.Level)
	logger.Infof("Log level set to: %s", cfg.System.Logging.Level)
	model.SetMaskedParameterKeys(cfg.Security.MaskedParameterKeys)

	return cfg, nil
}

// LoadConfig loads configuration from an optional .env file, YAML bytes and environment variables.
func LoadConfig(envFilePath string, embeddedConfig EmbeddedConfig) (*Config, error) {
	cfg, err := loadConfig(envFilePath, embeddedConfig, nil)
	if err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values the engine cannot run without.
func Validate(cfg *Config) error {
	if cfg.Batch.ChunkSize <= 0 {
		return exception.NewValidationError(moduleName, fmt.Sprintf("batch.chunk_size must be positive, got %d", cfg.Batch.ChunkSize), nil)
	}
	if cfg.Batch.PoolSize <= 0 {
		return exception.NewValidationError(moduleName, fmt.Sprintf("batch.pool_size must be positive, got %d", cfg.Batch.PoolSize), nil)
	}
	switch cfg.Repository.Type {
	case RepositoryTypeInMemory:
	case RepositoryTypeSQL:
		if cfg.Repository.Database.Type == "" {
			return exception.NewValidationError(moduleName, "repository.database.type is required for the sql repository", nil)
		}
	default:
		return exception.NewValidationError(moduleName, fmt.Sprintf("unknown repository.type '%s'", cfg.Repository.Type), nil)
	}
	if cfg.Repository.Retry.MaxAttempts < 1 {
		return exception.NewValidationError(moduleName, "repository.retry.max_attempts must be at least 1", nil)
	}
	return nil
}

// loadStructFromEnv recursively loads configuration values into a struct from environment variables.
// It uses the "yaml" tag to determine the environment variable name.
//
// Parameters:
//   val: The reflect.Value of the struct to populate.
//   prefix: The prefix for environment variable names (e.g., "JSR352_BATCH_").
func loadStructFromEnv(val reflect.Value, prefix string) error {
	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)
		yamlTag := strings.Split(fieldType.Tag.Get("yaml"), ",")[0]
		if yamlTag == "" || yamlTag == "-" {
			continue
		}
		envVarName := strings.ToUpper(prefix + yamlTag)

		if field.Kind() == reflect.Struct {
			if err := loadStructFromEnv(field, envVarName+"_"); err != nil {
				return err
			}
			continue
		}

		envValue, exists := os.LookupEnv(envVarName)
		if !exists {
			continue
		}
		if err := setField(field, envValue); err != nil {
			return fmt.Errorf("failed to set field '%s' from env var '%s': %w", fieldType.Name, envVarName, err)
		}
	}
	return nil
}

// setField sets the value of a reflect.Value field based on its kind.
// It handles string, int, float, bool and comma-separated string slices.
func setField(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(intValue)
	case reflect.Float64, reflect.Float32:
		floatValue, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(floatValue)
	case reflect.Bool:
		boolValue, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(boolValue)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type %s", field.Type())
		}
		items := []string{}
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		field.Set(reflect.ValueOf(items))
	}
	return nil
}
