package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

const (
	Sqlite   DBDriver = "sqlite3"
	Postgres DBDriver = "postgres"

	DefaultDatabaseMaxIdleConnections = 2
	DefaultDatabaseMaxOpenConnections = 4
)

type DBDriver string

func (d DBDriver) String() string {
	return string(d)
}

type DatabaseConnectionString string

func (d DatabaseConnectionString) String() string {
	return string(d)
}

type DatabaseConfig struct {
	ConnectionString   DatabaseConnectionString
	Driver             DBDriver
	MaxIdleConnections int
	MaxOpenConnections int
}

// DB is a pool of connections to the pin record database.
type DB struct {
	*sqlx.DB
	Driver           DBDriver
	ConnectionString DatabaseConnectionString
	// sqliteLock serializes writers when using SQLite, which allows only one writer at a time.
	sqliteLock sync.RWMutex
}

// Tx is a database transaction, passed to store methods as txOrNil to make them part of the transaction.
type Tx struct {
	tx *sqlx.Tx
}

// NewDatabase connects to the database described by config, returning the DB and a function to close it.
// If migrationRunner is not nil the database is first migrated up to the latest version.
func NewDatabase(ctx context.Context, config DatabaseConfig, migrationRunner MigrationRunner) (*DB, func(), error) {
	switch config.Driver {
	case Sqlite:
		err := ensureSQLiteFile(config.ConnectionString)
		if err != nil {
			return nil, nil, err
		}
	case Postgres:
	default:
		return nil, nil, fmt.Errorf("error unknown database driver %q", config.Driver)
	}

	// Connect before migrating; an in-memory SQLite database only lives while a connection is open.
	sqlxDB, err := sqlx.ConnectContext(ctx, config.Driver.String(), config.ConnectionString.String())
	if err != nil {
		return nil, nil, fmt.Errorf("error connecting to %s database: %w", config.Driver, err)
	}
	sqlxDB.SetMaxIdleConns(config.MaxIdleConnections)
	sqlxDB.SetMaxOpenConns(config.MaxOpenConnections)

	if migrationRunner != nil {
		err := migrationRunner.Up(ctx, config.Driver, config.ConnectionString)
		if err != nil {
			sqlxDB.Close()
			return nil, nil, fmt.Errorf("error migrating database: %w", err)
		}
	}

	db := &DB{
		DB:               sqlxDB,
		Driver:           config.Driver,
		ConnectionString: config.ConnectionString,
	}
	return db, func() { db.Close() }, nil
}

// ensureSQLiteFile creates the database file named by a "file:" connection string, and its directory, so
// that SQLite can open it. In-memory databases and other connection strings are left alone.
func ensureSQLiteFile(connectionString DatabaseConnectionString) error {
	str := connectionString.String()
	if !strings.HasPrefix(str, "file:") || strings.Contains(str, ":memory:") || strings.Contains(str, "mode=memory") {
		return nil
	}
	path := strings.TrimPrefix(str, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return nil
	}
	err := os.MkdirAll(filepath.Dir(path), 0755)
	if err != nil {
		return fmt.Errorf("error creating database directory for %q: %w", path, err)
	}
	file, err := os.OpenFile(path, os.O_RDONLY|os.O_CREATE, 0660)
	if err != nil {
		return fmt.Errorf("error creating database file %q: %w", path, err)
	}
	return file.Close()
}

// WithTx calls fn with a new transaction, committing it if fn returns nil and rolling it back otherwise.
// If txOrNil is supplied fn joins that transaction instead, and the caller decides whether to commit.
func (d *DB) WithTx(ctx context.Context, txOrNil *Tx, fn func(tx *Tx) error) (err error) {
	if txOrNil != nil {
		return fn(txOrNil)
	}
	if d.Driver == Sqlite {
		d.sqliteLock.Lock()
		defer d.sqliteLock.Unlock()
	}

	tx, err := d.DB.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "error beginning database transaction")
	}
	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				err = errors.Wrapf(err, "error rolling back database transaction (%v)", rollbackErr)
			}
		}
	}()

	err = fn(&Tx{tx: tx})
	if err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "error committing database transaction")
}

// Write calls fn with a goqu database to write with, bound to the transaction if one is supplied.
func (d *DB) Write(txOrNil *Tx, fn func(Writer) error) error {
	if txOrNil != nil {
		return fn(goqu.NewTx(d.DriverName(), txOrNil.tx))
	}
	if d.Driver == Sqlite {
		d.sqliteLock.Lock()
		defer d.sqliteLock.Unlock()
	}
	return fn(goqu.New(d.DriverName(), d.DB))
}

// Read calls fn with a goqu database to read with, bound to the transaction if one is supplied.
func (d *DB) Read(txOrNil *Tx, fn func(Reader) error) error {
	if txOrNil != nil {
		return fn(goqu.NewTx(d.DriverName(), txOrNil.tx))
	}
	if d.Driver == Sqlite {
		d.sqliteLock.RLock()
		defer d.sqliteLock.RUnlock()
	}
	return fn(goqu.New(d.DriverName(), d.DB))
}

// Writer is the part of goqu's Database and TxDatabase used by stores to write.
type Writer interface {
	Reader
	Insert(table interface{}) *goqu.InsertDataset
}

// Reader is the part of goqu's Database and TxDatabase used by stores to read.
type Reader interface {
	From(from ...interface{}) *goqu.SelectDataset
	ScanStructsContext(ctx context.Context, i interface{}, query string, args ...interface{}) error
	ScanStructContext(ctx context.Context, i interface{}, query string, args ...interface{}) (bool, error)
}
