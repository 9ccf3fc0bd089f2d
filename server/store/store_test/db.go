package store_test

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/buildbeaver/autopin/common/logger"
	"github.com/buildbeaver/autopin/server/store"
	"github.com/buildbeaver/autopin/server/store/migrations"
)

const (
	testDBDriverEnvVar         = "AUTOPIN_TEST_DB_DRIVER"
	testConnectionStringEnvVar = "AUTOPIN_TEST_CONNECTION_STRING"

	inMemorySqliteConnectionString = store.DatabaseConnectionString("file::memory:?cache=shared&_foreign_keys=1&parseTime=true")
)

// Connect opens a migrated test database. Defaults to in-memory sqlite; set AUTOPIN_TEST_DB_DRIVER and
// AUTOPIN_TEST_CONNECTION_STRING to test against another database.
func Connect(logFactory logger.LogFactory) (*store.DB, func(), error) {
	return ConnectAndOptionallyMigrate(true, logFactory)
}

// ConnectAndOptionallyMigrate is like Connect but only runs the autopin migrations if runMigrations is true.
func ConnectAndOptionallyMigrate(runMigrations bool, logFactory logger.LogFactory) (*store.DB, func(), error) {
	var (
		log              = logFactory("TestDB")
		driver           = store.Sqlite
		connectionString = inMemorySqliteConnectionString
		cleanupFns       []func()
	)
	driverStr, haveDriver := os.LookupEnv(testDBDriverEnvVar)
	connStr, haveConnStr := os.LookupEnv(testConnectionStringEnvVar)
	switch {
	case haveDriver:
		driver = store.DBDriver(driverStr)
		if connStr != "" {
			connectionString = store.DatabaseConnectionString(connStr)
		} else if driver != store.Sqlite {
			return nil, nil, fmt.Errorf("error %s must be set alongside %s when not using sqlite",
				testConnectionStringEnvVar, testDBDriverEnvVar)
		}
	case haveConnStr:
		return nil, nil, fmt.Errorf("error %s must be set when using %s", testDBDriverEnvVar, testConnectionStringEnvVar)
	}

	if driver == store.Postgres {
		str, cleanup, err := createTestDatabase(log, driver, connectionString)
		if err != nil {
			return nil, nil, fmt.Errorf("error initializing test database: %w", err)
		}
		connectionString = str
		cleanupFns = append(cleanupFns, cleanup)
	}

	var migrationRunner store.MigrationRunner
	if runMigrations {
		migrationRunner = migrations.NewAutopinMigrateRunner(logFactory)
	}
	db, cleanup, err := store.NewDatabase(context.Background(), store.DatabaseConfig{
		ConnectionString:   connectionString,
		Driver:             driver,
		MaxIdleConnections: store.DefaultDatabaseMaxIdleConnections,
		MaxOpenConnections: store.DefaultDatabaseMaxOpenConnections,
	}, migrationRunner)
	if err != nil {
		for _, fn := range cleanupFns {
			fn()
		}
		return nil, nil, fmt.Errorf("error creating database: %w", err)
	}
	cleanupFns = append(cleanupFns, cleanup)

	return db, func() {
		for i := len(cleanupFns) - 1; i >= 0; i-- {
			cleanupFns[i]()
		}
	}, nil
}

// createTestDatabase creates a uniquely named database on the server in connectionString and returns
// a connection string for it, along with a function that drops it again.
// If the connection string already names a database it is used as is.
func createTestDatabase(log logger.Log, driver store.DBDriver, connectionString store.DatabaseConnectionString) (store.DatabaseConnectionString, func(), error) {
	parsed, err := url.Parse(connectionString.String())
	if err != nil {
		return "", nil, fmt.Errorf("error parsing connection string: %w", err)
	}
	if parsed.Path != "" && parsed.Path != "/" {
		return connectionString, func() {}, nil
	}
	rawDB, err := sql.Open(driver.String(), parsed.String())
	if err != nil {
		return "", nil, fmt.Errorf("error connecting to database: %w", err)
	}
	dbName := "autopin_test_" + strings.ReplaceAll(uuid.New().String(), "-", "")
	log.Infof("Creating test database %s", dbName)
	_, err = rawDB.Exec("CREATE DATABASE " + dbName)
	if err != nil {
		rawDB.Close()
		return "", nil, fmt.Errorf("error creating database: %w", err)
	}
	cleanup := func() {
		log.Infof("Dropping test database %s", dbName)
		_, err := rawDB.Exec("DROP DATABASE " + dbName)
		if err != nil {
			log.Errorf("Error dropping test database %s: %v", dbName, err)
		}
		rawDB.Close()
	}
	parsed.Path = dbName
	return store.DatabaseConnectionString(parsed.String()), cleanup, nil
}
