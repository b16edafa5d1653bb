// Package sqlite registers the SQLite dialector with the GORM adapter.
package sqlite

import (
	"errors"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	gormadapter "github.com/bryant1410/jsr352/pkg/batch/adapter/database/gorm"
	config "github.com/bryant1410/jsr352/pkg/batch/core/config"
)

// Type is the database type this package registers.
const Type = "sqlite"

func init() {
	gormadapter.RegisterDialector(Type, func(cfg config.DatabaseConfig) (gorm.Dialector, error) {
		if cfg.Database == "" {
			return nil, errors.New("SQLite database path cannot be empty")
		}
		return sqlite.Open(ConnectionString(cfg)), nil
	})
}

// ConnectionString returns the SQLite DSN, which is the file path or a memory URI.
func ConnectionString(c config.DatabaseConfig) string {
	return c.Database
}
