package config

import (
	"os"
	"strings"
)

// EnvironmentExpander expands environment variable placeholders in configuration data.
type EnvironmentExpander interface {
	// Expand returns input with ${VAR} and $VAR placeholders replaced.
	Expand(input []byte) ([]byte, error)
}

// OsEnvironmentExpander expands placeholders from the process environment with os.Expand.
// Unset variables become empty strings; ${VAR:-default} falls back to default.
type OsEnvironmentExpander struct{}

// NewOsEnvironmentExpander creates and returns a new instance of OsEnvironmentExpander.
func NewOsEnvironmentExpander() *OsEnvironmentExpander {
	return &OsEnvironmentExpander{}
}

func (e *OsEnvironmentExpander) Expand(input []byte) ([]byte, error) {
	expanded := os.Expand(string(input), func(key string) string {
		name, fallback, hasDefault := strings.Cut(key, ":-")
		if v, ok := os.LookupEnv(name); ok && v != "" {
			return v
		}
		if hasDefault {
			return fallback
		}
		return ""
	})
	return []byte(expanded), nil
}
