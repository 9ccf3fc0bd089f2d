package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/buildbeaver/autopin/common/util"
	"github.com/buildbeaver/autopin/common/version"
	"github.com/buildbeaver/autopin/server/app"
)

const shutdownTimeout = 5 * time.Minute

var v = viper.New()

var rootCmd = &cobra.Command{
	Use:           "autopin-server",
	Short:         "Pins finished TeamCity builds and their dependencies",
	Version:       version.VersionToString(),
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		err := app.ReadConfigFile(v)
		if err != nil {
			return err
		}
		config, err := app.ConfigFromViper(v)
		if err != nil {
			return fmt.Errorf("error parsing config: %w", err)
		}
		return run(config)
	},
}

func init() {
	err := app.BindFlags(rootCmd.Flags(), v)
	if err != nil {
		log.Fatalf("Error registering flags: %s", err)
	}
}

func run(config *app.ServerConfig) error {
	server, cleanup, err := app.New(context.Background(), config)
	if err != nil {
		return fmt.Errorf("error creating app: %w", err)
	}
	defer cleanup()

	err = server.Start()
	if err != nil {
		return fmt.Errorf("error starting server: %w", err)
	}

	// Wait for SIGINT or SIGTERM before shutting down server
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-done

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err = server.Stop(ctx)
	if err != nil {
		return err
	}
	log.Print("Server shutdown complete")
	return nil
}

func main() {
	fmt.Printf("Autopin Server v%s\n", version.VersionToString())
	fmt.Printf("Starting with args: %v\n", util.FilterOSArgs(os.Args, app.LogSafeFlags))

	err := rootCmd.Execute()
	if err != nil {
		log.Fatal(err.Error())
	}
}
