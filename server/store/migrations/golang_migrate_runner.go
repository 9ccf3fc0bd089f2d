package migrations

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migrate_database "github.com/golang-migrate/migrate/v4/database"
	migrate_postgres "github.com/golang-migrate/migrate/v4/database/postgres"
	migrate_sqlite3 "github.com/golang-migrate/migrate/v4/database/sqlite3"
	migrate_iofs "github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/psanford/memfs"

	"github.com/buildbeaver/autopin/common/logger"
	"github.com/buildbeaver/autopin/server/store"
)

const (
	migrationsDir = "migrations"
	// postgresStatementTimeout bounds each migration statement; pin_records is small enough for this to be generous.
	postgresStatementTimeout = 30 * time.Second
)

// GolangMigrateRunner applies a MigrationSet to a database with golang-migrate, rendering the migrations
// for the database's SQL dialect first.
type GolangMigrateRunner struct {
	migrations MigrationSet
	logger.Log
}

func NewGolangMigrateRunner(migrations MigrationSet, logFactory logger.LogFactory) *GolangMigrateRunner {
	return &GolangMigrateRunner{
		migrations: migrations,
		Log:        logFactory("GolangMigrateRunner"),
	}
}

// NewAutopinMigrateRunner creates a migration runner that applies the autopin audit database migrations.
func NewAutopinMigrateRunner(logFactory logger.LogFactory) *GolangMigrateRunner {
	return NewGolangMigrateRunner(AutopinServerMigrations, logFactory)
}

func (r *GolangMigrateRunner) Up(ctx context.Context, driver store.DBDriver, connectionString store.DatabaseConnectionString) error {
	return r.run(driver, connectionString, "up to the latest version", func(m *migrate.Migrate) error {
		return m.Up()
	})
}

func (r *GolangMigrateRunner) Down(ctx context.Context, driver store.DBDriver, connectionString store.DatabaseConnectionString) error {
	return r.run(driver, connectionString, "down to an empty database", func(m *migrate.Migrate) error {
		return m.Down()
	})
}

func (r *GolangMigrateRunner) Goto(ctx context.Context, driver store.DBDriver, connectionString store.DatabaseConnectionString, version uint) error {
	return r.run(driver, connectionString, fmt.Sprintf("to version %d", version), func(m *migrate.Migrate) error {
		return m.Migrate(version)
	})
}

func (r *GolangMigrateRunner) Force(ctx context.Context, driver store.DBDriver, connectionString store.DatabaseConnectionString, version uint) error {
	return r.run(driver, connectionString, fmt.Sprintf("by forcing version %d", version), func(m *migrate.Migrate) error {
		return m.Force(int(version))
	})
}

// run opens a migrator on the database and calls fn with it. golang-migrate has no context support,
// so the migration can't be cancelled once started.
func (r *GolangMigrateRunner) run(
	driver store.DBDriver,
	connectionString store.DatabaseConnectionString,
	description string,
	fn func(*migrate.Migrate) error,
) error {
	migrator, err := r.newMigrator(driver, connectionString)
	if err != nil {
		return err
	}
	defer migrator.Close()

	r.Infof("Migrating %s database %s...", driver, description)
	err = fn(migrator)
	if errors.Is(err, migrate.ErrNoChange) {
		r.Infof("Database is already up to date")
		return nil
	}
	if err != nil {
		return fmt.Errorf("error migrating %s database %s: %w", driver, description, err)
	}
	version, dirty, err := migrator.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		r.Infof("Migration complete; database is empty")
	case err != nil:
		return fmt.Errorf("error reading database version after migration: %w", err)
	default:
		r.Infof("Migration complete; database is at version %d (dirty: %t)", version, dirty)
	}
	return nil
}

// newMigrator creates a golang-migrate instance reading the rendered migrations from memory. The
// migrator has its own connection to the database, which is closed along with the migrator.
func (r *GolangMigrateRunner) newMigrator(driver store.DBDriver, connectionString store.DatabaseConnectionString) (*migrate.Migrate, error) {
	dialect, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	files, err := r.RenderMigrations(dialect)
	if err != nil {
		return nil, err
	}
	source, err := migrate_iofs.New(files, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("error reading rendered migrations: %w", err)
	}

	db, err := sql.Open(driver.String(), connectionString.String())
	if err != nil {
		return nil, fmt.Errorf("error opening %s database for migration: %w", driver, err)
	}
	target, err := databaseDriverFor(driver, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	migrator, err := migrate.NewWithInstance("iofs", source, driver.String(), target)
	if err != nil {
		target.Close()
		return nil, fmt.Errorf("error creating migrator: %w", err)
	}
	migrator.Log = &migrateLogger{log: r.Log}
	return migrator, nil
}

func databaseDriverFor(driver store.DBDriver, db *sql.DB) (migrate_database.Driver, error) {
	var (
		target migrate_database.Driver
		err    error
	)
	switch driver {
	case store.Sqlite:
		target, err = migrate_sqlite3.WithInstance(db, &migrate_sqlite3.Config{})
	case store.Postgres:
		target, err = migrate_postgres.WithInstance(db, &migrate_postgres.Config{
			StatementTimeout:      postgresStatementTimeout,
			MultiStatementEnabled: true,
			MultiStatementMaxSize: migrate_postgres.DefaultMultiStatementMaxSize,
		})
	default:
		return nil, fmt.Errorf("error database driver %q does not support migrations", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("error creating %s migration driver: %w", driver, err)
	}
	return target, nil
}

// RenderMigrations renders every migration for the SQL dialect into an in-memory filesystem, as files named
// migrations/{version}_{name}.{up|down}.sql in the layout golang-migrate expects.
func (r *GolangMigrateRunner) RenderMigrations(dialect *DialectTemplate) (*memfs.FS, error) {
	files := memfs.New()
	err := files.MkdirAll(migrationsDir, 0755)
	if err != nil {
		return nil, err
	}
	for _, m := range r.migrations {
		for direction, sqlTemplate := range map[string]string{"up": m.UpSQL, "down": m.DownSQL} {
			path := fmt.Sprintf("%s/%06d_%s.%s.sql", migrationsDir, m.SequenceNumber, m.Name, direction)
			rendered, err := renderSQL(path, sqlTemplate, dialect)
			if err != nil {
				return nil, err
			}
			err = files.WriteFile(path, rendered, 0644)
			if err != nil {
				return nil, fmt.Errorf("error writing migration %s: %w", path, err)
			}
			r.Tracef("Rendered migration %s", path)
		}
	}
	return files, nil
}

func renderSQL(name string, sqlTemplate string, dialect *DialectTemplate) ([]byte, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(sqlTemplate)
	if err != nil {
		return nil, fmt.Errorf("error parsing migration %s: %w", name, err)
	}
	var buf bytes.Buffer
	err = tmpl.Execute(&buf, dialect)
	if err != nil {
		return nil, fmt.Errorf("error rendering migration %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

// migrateLogger sends golang-migrate's log output to the debug log.
type migrateLogger struct {
	log logger.Log
}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	l.log.Debugf(strings.TrimSuffix(format, "\n"), v...)
}

func (l *migrateLogger) Verbose() bool {
	return false
}
