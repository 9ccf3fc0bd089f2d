package app

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/buildbeaver/autopin/common/logger"
	"github.com/buildbeaver/autopin/server/api/rest/middleware"
	"github.com/buildbeaver/autopin/server/api/rest/server"
	"github.com/buildbeaver/autopin/server/services"
	"github.com/buildbeaver/autopin/server/services/rules"
	"github.com/buildbeaver/autopin/server/services/teamcity"
	"github.com/buildbeaver/autopin/server/store"
)

const (
	// ConfigFileName is the name (without extension) of the optional config file, e.g. autopin.yml.
	ConfigFileName = "autopin"
	// EnvPrefix prefixes the environment variable for each flag, e.g. AUTOPIN_TEAMCITY_URL.
	EnvPrefix = "AUTOPIN"

	DefaultAPIServerAddress = ":8080"
)

// LogSafeFlags is a list of flags by name whose values are safe to log.
var LogSafeFlags = []string{
	"config",
	"log_levels",
	"log_format",
	"database_driver",
	"database_max_idle_connections",
	"database_max_open_connections",
	"teamcity_url",
	"teamcity_username",
	"teamcity_insecure_skip_verify",
	"teamcity_retry_max",
	"teamcity_timeout",
	"rules_file",
	"disable_feature_rules",
	"api_server_address",
	"api_server_certificate_file",
	"api_server_private_key_file",
	"api_request_timeout",
}

type RulesConfig struct {
	// RulesFile is an optional YAML file of pin rules applied in addition to the build features.
	RulesFile rules.RulesFilePath
	// DisableFeatureRules stops rules being read from the autopin build features in TeamCity.
	DisableFeatureRules bool
}

type ServerConfig struct {
	LogLevels      logger.LogLevelConfig
	LogFormat      logger.LogFormat
	DatabaseConfig store.DatabaseConfig
	TeamCityConfig teamcity.ClientConfig
	RulesConfig    RulesConfig
	APIConfig      server.AppAPIServerConfig
}

// BindFlags registers every server flag on flags and binds it into v, so that each value can also come
// from the config file or from an AUTOPIN_ environment variable. Flags set on the command line win.
func BindFlags(flags *pflag.FlagSet, v *viper.Viper) error {
	flags.String("config", "", fmt.Sprintf("Path to the config file (default %s.yml in the working directory or %s)", ConfigFileName, defaultConfigDir))
	flags.String("log_levels", "", "Log levels, as a comma-separated list of subsystem=level (use * for all subsystems)")
	flags.String("log_format", string(logger.LogFormatAuto), "Log format (auto|text|json)")

	flags.String("database_driver", string(store.Sqlite), "Database driver to use for the pin audit records (sqlite3|postgres)")
	flags.String("database_connection_string", defaultSQLiteConnectionString, "Connection string for the pin audit database")
	flags.Int("database_max_idle_connections", store.DefaultDatabaseMaxIdleConnections, "Maximum number of idle database connections")
	flags.Int("database_max_open_connections", store.DefaultDatabaseMaxOpenConnections, "Maximum number of open database connections")

	flags.String("teamcity_url", "", "Base URL of the TeamCity server, e.g. https://teamcity.example.com")
	flags.String("teamcity_token", "", "TeamCity access token used to pin builds and remove tags")
	flags.String("teamcity_username", "", "TeamCity username, used when no access token is set")
	flags.String("teamcity_password", "", "TeamCity password, used when no access token is set")
	flags.Bool("teamcity_insecure_skip_verify", false, "Skip verification of the TeamCity server's TLS certificate")
	flags.Int("teamcity_retry_max", teamcity.DefaultRetryMax, "Maximum number of retries for a failed TeamCity request")
	flags.Duration("teamcity_timeout", teamcity.DefaultTimeout, "Timeout for each TeamCity request")

	flags.String("rules_file", "", "YAML file of pin rules to apply in addition to the autopin build features")
	flags.Bool("disable_feature_rules", false, "Don't read pin rules from autopin build features in TeamCity")

	flags.String("api_server_address", DefaultAPIServerAddress, "Address the API server listens on")
	flags.String("api_server_certificate_file", "", "TLS certificate file for the API server; serves plain HTTP if empty")
	flags.String("api_server_private_key_file", "", "TLS private key file for the API server")
	flags.String("api_shared_secret", "", "Shared secret webhook callers must send in the "+middleware.SharedSecretHeader+" header")
	flags.Duration("api_request_timeout", server.DefaultRequestTimeout, "Maximum time spent handling one API request")

	err := v.BindPFlags(flags)
	if err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	return nil
}

// ReadConfigFile reads the config file named by the config flag, or autopin.yml from the working
// directory or the default config directory if present. A missing default config file is not an error.
func ReadConfigFile(v *viper.Viper) error {
	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(ConfigFileName)
		v.AddConfigPath(".")
		v.AddConfigPath(defaultConfigDir)
	}
	err := v.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

// ConfigFromViper builds and validates a ServerConfig from flags previously registered with BindFlags.
func ConfigFromViper(v *viper.Viper) (*ServerConfig, error) {
	config := &ServerConfig{
		LogLevels: logger.LogLevelConfig(v.GetString("log_levels")),
		LogFormat: logger.LogFormat(strings.ToLower(v.GetString("log_format"))),
		DatabaseConfig: store.DatabaseConfig{
			Driver:             store.DBDriver(v.GetString("database_driver")),
			ConnectionString:   store.DatabaseConnectionString(v.GetString("database_connection_string")),
			MaxIdleConnections: v.GetInt("database_max_idle_connections"),
			MaxOpenConnections: v.GetInt("database_max_open_connections"),
		},
		TeamCityConfig: teamcity.ClientConfig{
			URL:                teamcity.ServerURL(strings.TrimSuffix(v.GetString("teamcity_url"), "/")),
			Token:              teamcity.AccessToken(v.GetString("teamcity_token")),
			Username:           teamcity.Username(v.GetString("teamcity_username")),
			Password:           teamcity.Password(v.GetString("teamcity_password")),
			InsecureSkipVerify: v.GetBool("teamcity_insecure_skip_verify"),
			RetryMax:           v.GetInt("teamcity_retry_max"),
			Timeout:            v.GetDuration("teamcity_timeout"),
		},
		RulesConfig: RulesConfig{
			RulesFile:           rules.RulesFilePath(v.GetString("rules_file")),
			DisableFeatureRules: v.GetBool("disable_feature_rules"),
		},
		APIConfig: server.AppAPIServerConfig{
			HTTPServerConfig: server.HTTPServerConfig{
				Address: v.GetString("api_server_address"),
			},
			SharedSecret:   middleware.SharedSecret(v.GetString("api_shared_secret")),
			RequestTimeout: v.GetDuration("api_request_timeout"),
		},
	}

	switch config.LogFormat {
	case logger.LogFormatAuto, logger.LogFormatText, logger.LogFormatJSON:
	default:
		return nil, fmt.Errorf("--log_format must be one of auto, text or json (got %q)", config.LogFormat)
	}

	// Database
	switch config.DatabaseConfig.Driver {
	case store.Sqlite, store.Postgres:
	default:
		return nil, fmt.Errorf("--database_driver must be %s or %s (got %q)", store.Sqlite, store.Postgres, config.DatabaseConfig.Driver)
	}
	if config.DatabaseConfig.ConnectionString == "" {
		return nil, errors.New("--database_connection_string must be set")
	}

	// TeamCity
	if config.TeamCityConfig.URL == "" {
		return nil, errors.New("--teamcity_url must be set")
	}
	if config.TeamCityConfig.Token == "" && config.TeamCityConfig.Username == "" {
		return nil, errors.New("one of --teamcity_token or --teamcity_username must be set")
	}
	if config.TeamCityConfig.RetryMax < 0 {
		return nil, errors.New("--teamcity_retry_max must not be negative")
	}
	if config.TeamCityConfig.Timeout <= 0 {
		return nil, errors.New("--teamcity_timeout must be positive")
	}

	// API server
	certFile := v.GetString("api_server_certificate_file")
	keyFile := v.GetString("api_server_private_key_file")
	if (certFile == "") != (keyFile == "") {
		return nil, errors.New("--api_server_certificate_file and --api_server_private_key_file must be set together")
	}
	if certFile != "" {
		config.APIConfig.TLSConfig = &server.TLSConfig{CertificateFile: certFile, PrivateKeyFile: keyFile}
	}
	if config.APIConfig.RequestTimeout <= 0 {
		config.APIConfig.RequestTimeout = server.DefaultRequestTimeout
	}

	return config, nil
}

// MakeLogFactory creates the log factory for the server, writing to stdout in the configured format.
func MakeLogFactory(logRegistry *logger.LogRegistry, format logger.LogFormat) logger.LogFactory {
	return logger.MakeLogrusLogFactory(logRegistry, os.Stdout, format)
}

// MakeRuleProvider combines the enabled rule sources into a single provider.
func MakeRuleProvider(config RulesConfig, client *teamcity.Client, logFactory logger.LogFactory) (*rules.CompositeRuleProvider, error) {
	log := logFactory("RuleProvider")
	var providers []services.RuleProvider
	if !config.DisableFeatureRules {
		providers = append(providers, teamcity.NewFeatureRuleProvider(client, logFactory))
	} else {
		log.Infof("Reading pin rules from build features is disabled")
	}
	static, err := rules.NewStaticRuleProvider(config.RulesFile, logFactory)
	if err != nil {
		return nil, err
	}
	providers = append(providers, static)
	return rules.NewCompositeRuleProvider(providers...), nil
}
