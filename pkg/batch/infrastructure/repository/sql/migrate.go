package sql

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	migratepostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/gorm"

	"github.com/bryant1410/jsr352/pkg/batch/adapter/database/gorm/mysql"
	"github.com/bryant1410/jsr352/pkg/batch/adapter/database/gorm/postgres"
	"github.com/bryant1410/jsr352/pkg/batch/adapter/database/gorm/sqlite"
	"github.com/bryant1410/jsr352/pkg/batch/support/util/exception"
	"github.com/bryant1410/jsr352/pkg/batch/support/util/logger"
)

// MigrationsTable records the applied schema version.
const MigrationsTable = "batch_schema_migrations"

//go:embed migrations
var migrationsFS embed.FS

// Migrate brings the repository schema of db up to date. dbType selects the migration set
// and is one of the registered dialect types.
func Migrate(ctx context.Context, db *gorm.DB, dbType string) error {
	src, err := iofs.New(migrationsFS, "migrations/"+dbType)
	if err != nil {
		return exception.NewValidationError(module, fmt.Sprintf("no migrations for database type %q", dbType), err)
	}

	driver, closeAll, err := migrationDriver(ctx, db, dbType, src)
	if err != nil {
		src.Close()
		return exception.NewRepositoryError(module, "failed to prepare schema migration", err, false)
	}
	defer closeAll()

	m, err := migrate.NewWithInstance("iofs", src, dbType, driver)
	if err != nil {
		return exception.NewRepositoryError(module, "failed to prepare schema migration", err, false)
	}
	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Debugf("%s: schema is up to date.", module)
			return nil
		}
		return exception.NewRepositoryError(module, "schema migration failed", err, false)
	}
	version, _, _ := m.Version()
	logger.Infof("%s: schema migrated to version %d (%s).", module, version, dbType)
	return nil
}

// migrationDriver returns the migrate driver for dbType and a function that releases it.
// The sqlite driver closes the whole *sql.DB on Close, so only the source is released there.
func migrationDriver(ctx context.Context, db *gorm.DB, dbType string, src source.Driver) (database.Driver, func(), error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, err
	}
	switch dbType {
	case sqlite.Type:
		driver, err := migratesqlite.WithInstance(sqlDB, &migratesqlite.Config{MigrationsTable: MigrationsTable})
		if err != nil {
			return nil, nil, err
		}
		return driver, func() { src.Close() }, nil
	case mysql.Type, postgres.Type:
		conn, err := sqlDB.Conn(ctx)
		if err != nil {
			return nil, nil, err
		}
		var driver database.Driver
		if dbType == mysql.Type {
			driver, err = migratemysql.WithConnection(ctx, conn, &migratemysql.Config{MigrationsTable: MigrationsTable})
		} else {
			driver, err = migratepostgres.WithConnection(ctx, conn, &migratepostgres.Config{MigrationsTable: MigrationsTable})
		}
		if err != nil {
			conn.Close()
			return nil, nil, err
		}
		return driver, func() {
			src.Close()
			driver.Close()
		}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported database type %q", dbType)
	}
}
