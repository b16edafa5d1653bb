package gorm_test

import (
	"context"
	"errors"
	"testing"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	gormadapter "github.com/bryant1410/jsr352/pkg/batch/adapter/database/gorm"
	"github.com/bryant1410/jsr352/pkg/batch/adapter/database/gorm/mysql"
	"github.com/bryant1410/jsr352/pkg/batch/adapter/database/gorm/postgres"
	"github.com/bryant1410/jsr352/pkg/batch/adapter/database/gorm/sqlite"
	config "github.com/bryant1410/jsr352/pkg/batch/core/config"
	tx "github.com/bryant1410/jsr352/pkg/batch/core/tx"
	"github.com/bryant1410/jsr352/pkg/batch/support/util/exception"
)

type item struct {
	ID   int
	Name string
}

func openMemory(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gormadapter.Open(config.DatabaseConfig{
		Type:     sqlite.Type,
		Database: ":memory:",
		Pool:     config.PoolConfig{MaxOpenConns: 1, MaxIdleConns: 1},
	}, "SILENT")
	require.NoError(t, err)
	require.NoError(t, db.Exec("CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT)").Error)
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})
	return db
}

func count(t *testing.T, db *gorm.DB) int64 {
	var n int64
	require.NoError(t, db.Table("items").Count(&n).Error)
	return n
}

func TestRegisteredDialectors(t *testing.T) {
	assert.Equal(t, []string{"mysql", "postgres", "sqlite"}, gormadapter.RegisteredDialectors())

	_, err := gormadapter.GetDialectorFactory("oracle")
	assert.Error(t, err)
}

func TestGormTransactionManager_CommitAndRollback(t *testing.T) {
	ctx := context.Background()
	db := openMemory(t)
	m := gormadapter.NewGormTransactionManager(db, nil)

	committed, err := m.Begin(ctx)
	require.NoError(t, err)
	session, ok := gormadapter.TxDB(committed)
	require.True(t, ok)
	require.NoError(t, session.Table("items").Create(&item{ID: 1, Name: "kept"}).Error)
	require.NoError(t, m.Commit(ctx, committed))
	assert.Equal(t, int64(1), count(t, db))

	rolledBack, err := m.Begin(ctx)
	require.NoError(t, err)
	session, _ = gormadapter.TxDB(rolledBack)
	require.NoError(t, session.Table("items").Create(&item{ID: 2, Name: "discarded"}).Error)
	require.NoError(t, m.Rollback(ctx, rolledBack))
	assert.Equal(t, int64(1), count(t, db))

	assert.ErrorIs(t, m.Commit(ctx, committed), tx.ErrTransactionClosed)
}

func TestGormTransactionManager_RollbackOnly(t *testing.T) {
	ctx := context.Background()
	db := openMemory(t)
	m := gormadapter.NewGormTransactionManager(db, nil)

	t1, err := m.Begin(ctx)
	require.NoError(t, err)
	session, _ := gormadapter.TxDB(t1)
	require.NoError(t, session.Table("items").Create(&item{ID: 1, Name: "x"}).Error)
	t1.SetRollbackOnly()

	assert.ErrorIs(t, m.Commit(ctx, t1), tx.ErrRollbackOnly)
	assert.Equal(t, int64(0), count(t, db))
}

func TestGormTransactionManager_RejectsForeignTransaction(t *testing.T) {
	ctx := context.Background()
	m := gormadapter.NewGormTransactionManager(openMemory(t), nil)

	foreign, err := tx.NewNoopTransactionManager().Begin(ctx)
	require.NoError(t, err)
	err = m.Commit(ctx, foreign)
	assert.True(t, errors.Is(err, exception.ErrTransaction))
	_, ok := gormadapter.TxDB(foreign)
	assert.False(t, ok)
}

func TestDBProvider_ConnectFailureIsRepositoryError(t *testing.T) {
	repoCfg := config.NewConfig().Repository
	repoCfg.Database = config.DatabaseConfig{Type: "oracle"}
	repoCfg.Retry = config.RetryConfig{MaxAttempts: 2, InitialInterval: 1}
	p := gormadapter.NewDBProvider(&repoCfg, nil)

	_, err := p.DB(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrRepository))
	assert.NoError(t, p.Close())
}

func TestDBProvider_ReusesConnection(t *testing.T) {
	repoCfg := config.NewConfig().Repository
	repoCfg.Database = config.DatabaseConfig{Type: sqlite.Type, Database: ":memory:", Pool: config.PoolConfig{MaxOpenConns: 1}}
	p := gormadapter.NewDBProvider(&repoCfg, &config.LoggingConfig{Level: "INFO"})

	first, err := p.DB(context.Background())
	require.NoError(t, err)
	second, err := p.DB(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, second)

	third, err := p.ForceReconnect(context.Background())
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.NoError(t, p.Close())
}

func TestConnectionStrings(t *testing.T) {
	pg := postgres.ConnectionString(config.DatabaseConfig{
		Host: "pg_host", Port: 5432, Database: "pg_db", User: "pg_user", Password: "pg_password", Sslmode: "require",
	})
	assert.Equal(t, "host=pg_host port=5432 user=pg_user password=pg_password dbname=pg_db sslmode=require TimeZone=UTC", pg)
	assert.Equal(t, "host=h sslmode=disable TimeZone=UTC", postgres.ConnectionString(config.DatabaseConfig{Host: "h"}))

	dsn, err := mysqldriver.ParseDSN(mysql.ConnectionString(config.DatabaseConfig{
		Host: "mysql_host", Database: "mysql_db", User: "mysql_user", Password: "mysql_password",
	}))
	require.NoError(t, err)
	assert.Equal(t, "mysql_host:3306", dsn.Addr)
	assert.Equal(t, "mysql_user", dsn.User)
	assert.Equal(t, "mysql_password", dsn.Passwd)
	assert.Equal(t, "mysql_db", dsn.DBName)
	assert.True(t, dsn.ParseTime)
	assert.True(t, dsn.MultiStatements)

	assert.Equal(t, "/tmp/batch.db", sqlite.ConnectionString(config.DatabaseConfig{Database: "/tmp/batch.db"}))
}
