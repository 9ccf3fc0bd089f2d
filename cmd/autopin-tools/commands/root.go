package commands

import (
	"github.com/spf13/cobra"

	"github.com/buildbeaver/autopin/cmd/autopin-tools/cli"
	"github.com/buildbeaver/autopin/common/logger"
	"github.com/buildbeaver/autopin/common/version"
)

type GlobalConfig struct {
	Debug bool
}

var Global = &GlobalConfig{}

func init() {
	RootCmd.PersistentFlags().BoolVarP(
		&Global.Debug,
		"debug",
		"d",
		false,
		"Enable debug-level log output.")
}

// Execute runs the root command. Called once by main.main().
func Execute() {
	cli.Exit(RootCmd.Execute())
}

// MakeLogFactory returns a plain stdout log factory for commands, at debug level if --debug was given.
func MakeLogFactory() (logger.LogFactory, error) {
	levels := logger.LogLevelConfig("")
	if Global.Debug {
		levels = "*=debug"
	}
	logRegistry, err := logger.NewLogRegistry(levels)
	if err != nil {
		return nil, err
	}
	return logger.MakeLogrusLogFactoryStdOutPlain(logRegistry), nil
}

var RootCmd = &cobra.Command{
	Use:     "autopin-tools command",
	Short:   "Autopin tools",
	Long:    `Tools for managing the autopin database and checking pin rules against TeamCity builds`,
	Version: version.VersionToString(),
}
