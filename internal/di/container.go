package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/enrondata/maildir-etl/internal/config"
	"github.com/enrondata/maildir-etl/internal/core"
	"github.com/enrondata/maildir-etl/internal/factory"
	"github.com/enrondata/maildir-etl/internal/identity"
	"github.com/enrondata/maildir-etl/internal/logging"
	"github.com/enrondata/maildir-etl/internal/pipeline"
	"github.com/enrondata/maildir-etl/internal/thread"
)

// CLIFlags contains all command line flags for the ETL application
type CLIFlags struct {
	InputDir   string
	OutputDir  string
	Exclude    []string
	Workers    int
	StoreType  string
	SQLitePath string
	MySQLDSN   string
	MaxDepth   int
	Verbose    bool
	JSONLog    bool
	ConfigFile string
}

// BuildContainer creates and configures a dependency injection container
func BuildContainer(flags *CLIFlags) (*dig.Container, error) {
	container := dig.New()

	// Register flags
	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(func(flags *CLIFlags) (*config.Config, error) {
		if flags.ConfigFile != "" {
			return config.New()
		}
		return createConfigFromFlags(flags), nil
	}); err != nil {
		return nil, err
	}

	// Register logger. A file-driven run obeys the logging.* config keys;
	// a flag-driven run uses the console flags directly.
	if err := container.Provide(func(flags *CLIFlags, cfg *config.Config) (*zap.Logger, error) {
		if flags.ConfigFile != "" {
			logger, err := logging.InitLogger(cfg)
			if err != nil {
				return nil, err
			}
			logger.Info("Loaded configuration from file",
				zap.String("file", cfg.GetViper().ConfigFileUsed()))
			return logger, nil
		}
		return logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
	}); err != nil {
		return nil, err
	}

	// Register store factory
	if err := container.Provide(factory.NewStoreFactory); err != nil {
		return nil, err
	}

	// Register dataset store
	if err := container.Provide(func(f *factory.StoreFactory) (core.DatasetStore, error) {
		return f.CreateDatasetStore()
	}); err != nil {
		return nil, err
	}

	// Register thread splitter
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) *thread.Splitter {
		threadCfg := cfg.GetThread()
		return thread.New(thread.Options{
			Markers:  threadCfg.Markers,
			MaxDepth: threadCfg.MaxDepth,
		}, logger)
	}); err != nil {
		return nil, err
	}

	// Register identity resolver
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) (*identity.Resolver, error) {
		idCfg, err := cfg.GetIdentity()
		if err != nil {
			return nil, err
		}
		return identity.NewResolver(identity.Options{
			ManualTable:     idCfg.ManualAliases,
			InternalDomains: idCfg.InternalDomains,
		}, logger), nil
	}); err != nil {
		return nil, err
	}

	// Register pipeline
	if err := container.Provide(pipeline.New); err != nil {
		return nil, err
	}

	return container, nil
}

// createConfigFromFlags creates a configuration from command line flags
func createConfigFromFlags(flags *CLIFlags) *config.Config {
	v := config.NewEmptyViper()

	v.Set("input.dir", flags.InputDir)
	if len(flags.Exclude) > 0 {
		v.Set("input.exclude", flags.Exclude)
	}
	v.Set("output.dir", flags.OutputDir)
	v.Set("pipeline.workers", flags.Workers)
	v.Set("thread.max_depth", flags.MaxDepth)
	v.Set("store.type", flags.StoreType)
	if flags.SQLitePath != "" {
		v.Set("store.sqlite_path", flags.SQLitePath)
	}
	if flags.MySQLDSN != "" {
		v.Set("store.mysql_dsn", flags.MySQLDSN)
	}

	return config.NewFromViper(v)
}
