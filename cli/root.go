package cli

import (
	"github.com/fieldops/dispatch/pkg/config"
	"github.com/fieldops/dispatch/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// RootCmd builds the dispatch command tree.
func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "dispatch",
		Short:         "FieldOps dispatch service",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(
		ServeCmd(),
		MigrateCmd(),
	)
	return root
}

// setup loads the environment, the configuration and the logger shared
// by every command. A local .env file is optional.
func setup() (*config.Config, logger.Logger, error) {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logCfg := logger.DefaultConfig()
	logCfg.Level = logger.LogLevel(cfg.Runtime.LogLevel)
	logCfg.JSON = cfg.Runtime.LogJSON
	logger.Init(logCfg)
	return cfg, logger.NewLogger(logCfg), nil
}
