package pins

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/buildbeaver/autopin/cmd/autopin-tools/cli"
	"github.com/buildbeaver/autopin/cmd/autopin-tools/commands"
	"github.com/buildbeaver/autopin/common/models"
	"github.com/buildbeaver/autopin/server/store/pin_records"
)

func init() {
	commands.AddDatabaseFlags(pinsRootCmd, &pinsCmdConfig.database)
	pinsListCmd.Flags().BoolVar(
		&pinsCmdConfig.root,
		"root",
		false,
		"List every pin made because of the build finishing, including its dependencies, instead of the pins of the build itself")
	pinsListCmd.Flags().BoolVar(
		&pinsCmdConfig.json,
		"json",
		false,
		"Print the pin records as JSON")

	commands.RootCmd.AddCommand(pinsRootCmd)
	pinsRootCmd.AddCommand(pinsListCmd)
}

var pinsCmdConfig = struct {
	database commands.DatabaseFlags
	root     bool
	json     bool
}{}

var pinsRootCmd = &cobra.Command{
	Use:   "pins list",
	Short: "Inspects the audit records of pins made by autopin",
}

var pinsListCmd = &cobra.Command{
	Use:           "list BUILD_ID",
	Short:         "Lists the pin records for a build",
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		buildID, err := models.ParseBuildID(args[0])
		if err != nil {
			return err
		}
		records, err := listPinRecords(context.Background(), pinsCmdConfig.database, buildID, pinsCmdConfig.root)
		if err != nil {
			return err
		}
		if pinsCmdConfig.json {
			return cli.PrintJSON(records)
		}
		if len(records) == 0 {
			cli.Stdout.Printf("No pin records found for build %d", buildID)
		}
		for _, record := range records {
			line := fmt.Sprintf("%s build=%d root=%d source=%s", record.CreatedAt, record.BuildID, record.RootBuildID, record.Source)
			if record.RuleID != "" {
				line += " rule=" + record.RuleID
			}
			if record.Dependency {
				line += " (dependency)"
			}
			line += fmt.Sprintf(" comment=%q", record.Comment)
			if record.Error != "" {
				line += " error=" + record.Error
			}
			cli.Stdout.Print(line)
		}
		return nil
	},
}

func listPinRecords(ctx context.Context, database commands.DatabaseFlags, buildID models.BuildID, root bool) ([]*models.PinRecord, error) {
	logFactory, err := commands.MakeLogFactory()
	if err != nil {
		return nil, err
	}
	db, cleanup, err := database.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer cleanup()
	pinRecordStore := pin_records.NewStore(db, logFactory)
	if root {
		return pinRecordStore.ListByRootBuild(ctx, nil, buildID)
	}
	return pinRecordStore.ListByBuild(ctx, nil, buildID)
}
