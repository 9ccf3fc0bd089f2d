package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/buildbeaver/autopin/server/store"
)

const defaultSQLiteConnectionString = "file:/var/lib/autopin/db/sqlite.db?cache=shared"

// DatabaseFlags holds the values of the database flags shared by commands that use the pin record database.
type DatabaseFlags struct {
	driver           string
	connectionString string
}

func NewDatabaseFlags(driver store.DBDriver, connectionString store.DatabaseConnectionString) DatabaseFlags {
	return DatabaseFlags{driver: driver.String(), connectionString: connectionString.String()}
}

func (f DatabaseFlags) Driver() store.DBDriver {
	return store.DBDriver(f.driver)
}

func (f DatabaseFlags) ConnectionString() store.DatabaseConnectionString {
	return store.DatabaseConnectionString(f.connectionString)
}

// Open connects to the database without running migrations.
func (f DatabaseFlags) Open(ctx context.Context) (*store.DB, func(), error) {
	return store.NewDatabase(ctx, store.DatabaseConfig{
		ConnectionString:   f.ConnectionString(),
		Driver:             f.Driver(),
		MaxIdleConnections: store.DefaultDatabaseMaxIdleConnections,
		MaxOpenConnections: store.DefaultDatabaseMaxOpenConnections,
	}, nil)
}

// AddDatabaseFlags registers --driver and --connection on cmd and all of its subcommands.
func AddDatabaseFlags(cmd *cobra.Command, flags *DatabaseFlags) {
	cmd.PersistentFlags().StringVar(
		&flags.driver,
		"driver",
		string(store.Sqlite),
		"The database driver to use (i.e sqlite3|postgres)")
	cmd.PersistentFlags().StringVar(
		&flags.connectionString,
		"connection",
		defaultSQLiteConnectionString,
		"The connection string for the pin record database")
}
