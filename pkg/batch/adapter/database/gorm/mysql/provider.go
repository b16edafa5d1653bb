// Package mysql registers the MySQL dialector with the GORM adapter.
package mysql

import (
	"errors"
	"net"
	"strconv"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"

	gormadapter "github.com/bryant1410/jsr352/pkg/batch/adapter/database/gorm"
	config "github.com/bryant1410/jsr352/pkg/batch/core/config"
)

// Type is the database type this package registers.
const Type = "mysql"

func init() {
	gormadapter.RegisterDialector(Type, func(cfg config.DatabaseConfig) (gorm.Dialector, error) {
		if cfg.Host == "" {
			return nil, errors.New("MySQL host cannot be empty")
		}
		return gormmysql.Open(ConnectionString(cfg)), nil
	})
}

// ConnectionString generates the DSN for MySQL connections. Multi-statement execution is
// enabled for schema migrations and times are read as UTC.
func ConnectionString(c config.DatabaseConfig) string {
	dsn := mysqldriver.NewConfig()
	dsn.User = c.User
	dsn.Passwd = c.Password
	dsn.Net = "tcp"
	port := c.Port
	if port == 0 {
		port = 3306
	}
	dsn.Addr = net.JoinHostPort(c.Host, strconv.Itoa(port))
	dsn.DBName = c.Database
	dsn.ParseTime = true
	dsn.Loc = time.UTC
	dsn.MultiStatements = true
	dsn.Params = map[string]string{"charset": "utf8mb4"}
	return dsn.FormatDSN()
}
