// Package postgres registers the PostgreSQL dialector with the GORM adapter.
package postgres

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	gormadapter "github.com/bryant1410/jsr352/pkg/batch/adapter/database/gorm"
	config "github.com/bryant1410/jsr352/pkg/batch/core/config"
)

// Type is the database type this package registers.
const Type = "postgres"

func init() {
	gormadapter.RegisterDialector(Type, func(cfg config.DatabaseConfig) (gorm.Dialector, error) {
		if cfg.Host == "" {
			return nil, errors.New("PostgreSQL host cannot be empty")
		}
		return postgres.Open(ConnectionString(cfg)), nil
	})
}

// ConnectionString generates the key/value DSN expected by gorm.io/driver/postgres.
// Empty settings are left out so the driver defaults apply.
func ConnectionString(c config.DatabaseConfig) string {
	parts := []string{"host=" + c.Host}
	if c.Port != 0 {
		parts = append(parts, fmt.Sprintf("port=%d", c.Port))
	}
	if c.User != "" {
		parts = append(parts, "user="+c.User)
	}
	if c.Password != "" {
		parts = append(parts, "password="+c.Password)
	}
	if c.Database != "" {
		parts = append(parts, "dbname="+c.Database)
	}
	sslmode := c.Sslmode
	if sslmode == "" {
		sslmode = "disable"
	}
	parts = append(parts, "sslmode="+sslmode, "TimeZone=UTC")
	return strings.Join(parts, " ")
}
