//go:build wireinject
// +build wireinject

package app

import (
	"context"

	"github.com/benbjohnson/clock"
	"github.com/google/wire"

	"github.com/buildbeaver/autopin/common/logger"
	"github.com/buildbeaver/autopin/server/api/rest/server"
	"github.com/buildbeaver/autopin/server/services"
	"github.com/buildbeaver/autopin/server/services/autopin"
	"github.com/buildbeaver/autopin/server/services/rules"
	"github.com/buildbeaver/autopin/server/services/teamcity"
	"github.com/buildbeaver/autopin/server/store"
	"github.com/buildbeaver/autopin/server/store/migrations"
	"github.com/buildbeaver/autopin/server/store/pin_records"
)

func New(ctx context.Context, config *ServerConfig) (*Server, func(), error) {
	panic(wire.Build(
		NewServer,
		wire.FieldsOf(new(*ServerConfig), "LogLevels", "LogFormat", "DatabaseConfig", "TeamCityConfig", "RulesConfig", "APIConfig"),
		logger.NewLogRegistry,
		MakeLogFactory,
		clock.New,

		// Stores
		store.NewDatabase,
		migrations.NewAutopinMigrateRunner,
		wire.Bind(new(store.MigrationRunner), new(*migrations.GolangMigrateRunner)),
		pin_records.NewStore,
		wire.Bind(new(store.PinRecordStore), new(*pin_records.PinRecordStore)),

		// TeamCity
		teamcity.NewAuthenticator,
		teamcity.NewClient,
		wire.Bind(new(services.BuildHistory), new(*teamcity.Client)),
		MakeRuleProvider,
		wire.Bind(new(services.RuleProvider), new(*rules.CompositeRuleProvider)),

		// Services
		autopin.NewAutopinService,
		wire.Bind(new(services.AutopinService), new(*autopin.AutopinService)),

		// APIs
		server.NewWebhookAPI,
		server.NewEvaluateAPI,
		server.NewPinAPI,
		server.NewRootAPI,
		server.NewAppAPIRouter,
		server.NewAppAPIServer,
	))
}
