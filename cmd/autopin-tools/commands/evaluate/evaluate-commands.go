package evaluate

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/buildbeaver/autopin/cmd/autopin-tools/cli"
	"github.com/buildbeaver/autopin/cmd/autopin-tools/commands"
	"github.com/buildbeaver/autopin/common/models"
	"github.com/buildbeaver/autopin/server/api/rest/documents"
	"github.com/buildbeaver/autopin/server/app"
	"github.com/buildbeaver/autopin/server/services/autopin"
	"github.com/buildbeaver/autopin/server/services/teamcity"
)

func init() {
	err := app.BindFlags(evaluateCmd.Flags(), evaluateCmdConfig.viper)
	if err != nil {
		panic(err)
	}
	evaluateCmd.Flags().BoolVar(
		&evaluateCmdConfig.json,
		"json",
		false,
		"Print the result as JSON")
	evaluateCmd.Flags().BoolVar(
		&evaluateCmdConfig.resolveDependencies,
		"resolve-dependencies",
		true,
		"Read the dependencies that cascading decisions would pin from TeamCity")

	commands.RootCmd.AddCommand(evaluateCmd)
}

var evaluateCmdConfig = struct {
	viper               *viper.Viper
	json                bool
	resolveDependencies bool
}{
	viper: viper.New(),
}

type evaluateResult struct {
	Build     *models.Build         `json:"build"`
	Rules     []*models.PinRule     `json:"rules"`
	Decisions []*models.PinDecision `json:"decisions"`
	// Dependencies are the builds a cascading decision would also pin.
	Dependencies []models.BuildID `json:"dependencies"`
	Errors       []string         `json:"errors"`
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate BUILD_ID",
	Short: "Shows which pins autopin would make for a finished TeamCity build, without pinning anything",
	Long: `Reads the build and its pin rules from TeamCity (plus the rules file, if configured) and prints the
pin decisions autopin would make. Accepts the same flags, config file and AUTOPIN_ environment
variables as autopin-server.`,
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		buildID, err := models.ParseBuildID(args[0])
		if err != nil {
			return err
		}
		err = app.ReadConfigFile(evaluateCmdConfig.viper)
		if err != nil {
			return err
		}
		config, err := app.ConfigFromViper(evaluateCmdConfig.viper)
		if err != nil {
			return fmt.Errorf("error parsing config: %w", err)
		}
		result, err := evaluate(context.Background(), config, buildID, evaluateCmdConfig.resolveDependencies)
		if err != nil {
			return err
		}
		if evaluateCmdConfig.json {
			return cli.PrintJSON(result)
		}
		printResult(result)
		return nil
	},
}

func evaluate(ctx context.Context, config *app.ServerConfig, buildID models.BuildID, resolveDependencies bool) (*evaluateResult, error) {
	logFactory, err := commands.MakeLogFactory()
	if err != nil {
		return nil, err
	}
	authenticator, err := teamcity.NewAuthenticator(config.TeamCityConfig, logFactory)
	if err != nil {
		return nil, err
	}
	client, err := teamcity.NewClient(config.TeamCityConfig, authenticator, logFactory)
	if err != nil {
		return nil, err
	}
	ruleProvider, err := app.MakeRuleProvider(config.RulesConfig, client, logFactory)
	if err != nil {
		return nil, err
	}

	build, err := client.FindEntry(ctx, buildID)
	if err != nil {
		return nil, err
	}
	var errs error
	rules, err := ruleProvider.RulesForBuild(ctx, build)
	if err != nil {
		errs = multierror.Append(errs, err)
	}
	decisions, err := autopin.Evaluate(build, rules)
	if err != nil {
		errs = multierror.Append(errs, err)
	}

	result := &evaluateResult{
		Build:        build,
		Rules:        rules,
		Decisions:    decisions,
		Dependencies: []models.BuildID{},
	}
	if resolveDependencies && cascades(decisions) {
		dependencies, err := client.GetAllDependencies(ctx, build.ID)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("error finding dependencies of build %d: %w", build.ID, err))
		}
		for _, id := range dependencies {
			if id != build.ID {
				result.Dependencies = append(result.Dependencies, id)
			}
		}
	}
	result.Errors = documents.ErrorMessages(errs)
	return result, nil
}

func cascades(decisions []*models.PinDecision) bool {
	for _, decision := range decisions {
		if decision.Pin && decision.Cascade {
			return true
		}
	}
	return false
}

func printResult(result *evaluateResult) {
	build := result.Build
	cli.Stdout.Printf("Build %d (%s #%s) status=%s branch=%q pinned=%t tags=%v",
		build.ID, build.BuildTypeID, build.Number, build.Status, build.Branch, build.Pinned, build.Tags)
	cli.Stdout.Printf("%d rule(s):", len(result.Rules))
	for _, rule := range result.Rules {
		cli.Stdout.Printf("  %s", rule)
	}
	if len(result.Decisions) == 0 {
		cli.Stdout.Printf("No pins would be made.")
	}
	for _, decision := range result.Decisions {
		var extra []string
		if decision.Cascade {
			extra = append(extra, "with dependencies")
		}
		if len(decision.RemoveTags) > 0 {
			extra = append(extra, fmt.Sprintf("removing tags %v", decision.RemoveTags))
		}
		source := string(decision.Source)
		if decision.RuleID != "" {
			source += " " + decision.RuleID
		}
		cli.Stdout.Printf("Would pin (%s) %s: %q", source, strings.Join(extra, ", "), decision.Comment)
	}
	if len(result.Dependencies) > 0 {
		cli.Stdout.Printf("Dependencies that would also be pinned: %v", result.Dependencies)
	}
	for _, msg := range result.Errors {
		cli.Stderr.Printf("Error: %s", msg)
	}
}
