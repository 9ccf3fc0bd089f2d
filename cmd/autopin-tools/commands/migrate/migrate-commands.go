package migrate

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/buildbeaver/autopin/cmd/autopin-tools/cli"
	"github.com/buildbeaver/autopin/cmd/autopin-tools/commands"
	"github.com/buildbeaver/autopin/server/store"
	"github.com/buildbeaver/autopin/server/store/migrations"
)

var migrateFlags struct {
	database         commands.DatabaseFlags
	skipConfirmation bool
}

var migrateRootCmd = &cobra.Command{
	Use:   "migrate up|down|goto|force",
	Short: "Manages the schema version of the pin record database",
}

// migration is one migrate subcommand. A non-empty warning must be confirmed before run is called.
type migration struct {
	name    string
	short   string
	version bool
	warning string
	run     func(ctx context.Context, runner store.MigrationRunner, db commands.DatabaseFlags, version uint) error
}

var migrationCommands = []migration{
	{
		name:  "up",
		short: "Migrates the database up to the latest version",
		run: func(ctx context.Context, runner store.MigrationRunner, db commands.DatabaseFlags, _ uint) error {
			return runner.Up(ctx, db.Driver(), db.ConnectionString())
		},
	},
	{
		name:    "down",
		short:   "Migrates the database down to being empty",
		warning: "A down migration deletes ALL pin records in this database. Continue?",
		run: func(ctx context.Context, runner store.MigrationRunner, db commands.DatabaseFlags, _ uint) error {
			return runner.Down(ctx, db.Driver(), db.ConnectionString())
		},
	},
	{
		name:    "goto",
		short:   "Migrates the database up or down to version V",
		version: true,
		warning: "Migrating down to an earlier version can delete pin records. Continue?",
		run: func(ctx context.Context, runner store.MigrationRunner, db commands.DatabaseFlags, version uint) error {
			return runner.Goto(ctx, db.Driver(), db.ConnectionString(), version)
		},
	},
	{
		name:    "force",
		short:   "Records the database as clean at version V without running any migrations",
		version: true,
		warning: "Only force a version after checking the schema by hand. Continue?",
		run: func(ctx context.Context, runner store.MigrationRunner, db commands.DatabaseFlags, version uint) error {
			return runner.Force(ctx, db.Driver(), db.ConnectionString(), version)
		},
	},
}

func init() {
	commands.AddDatabaseFlags(migrateRootCmd, &migrateFlags.database)
	migrateRootCmd.PersistentFlags().BoolVar(&migrateFlags.skipConfirmation, "skip-confirmation", false,
		"Answer yes to every confirmation question")
	for _, m := range migrationCommands {
		migrateRootCmd.AddCommand(m.command())
	}
	commands.RootCmd.AddCommand(migrateRootCmd)
}

func (m migration) command() *cobra.Command {
	use, args := m.name, cobra.NoArgs
	if m.version {
		use, args = m.name+" V", cobra.ExactArgs(1)
	}
	return &cobra.Command{
		Use:           use,
		Short:         m.short,
		Args:          args,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var version uint
			if m.version {
				v, err := parseVersion(args[0])
				if err != nil {
					return err
				}
				version = v
			}
			if m.warning != "" && !cli.AskForConfirmation(m.warning, migrateFlags.skipConfirmation) {
				cli.Stdout.Printf("Migration %q cancelled", m.name)
				return nil
			}
			logFactory, err := commands.MakeLogFactory()
			if err != nil {
				return err
			}
			runner := migrations.NewAutopinMigrateRunner(logFactory)
			err = m.run(context.Background(), runner, migrateFlags.database, version)
			if err != nil {
				return fmt.Errorf("error running %q migration: %w", m.name, err)
			}
			return nil
		},
	}
}

func parseVersion(arg string) (uint, error) {
	version, err := strconv.ParseUint(arg, 10, 0)
	if err != nil || version == 0 {
		return 0, fmt.Errorf("error version must be a positive number (got %q)", arg)
	}
	return uint(version), nil
}
