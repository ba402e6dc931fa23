package cli

import (
	"github.com/fieldops/dispatch/engine/infra/postgres"
	"github.com/fieldops/dispatch/pkg/logger"
	"github.com/fieldops/dispatch/server"
	"github.com/spf13/cobra"
)

// MigrateCmd applies the embedded database migrations and exits.
func MigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			ctx := logger.ContextWithLogger(cmd.Context(), log)
			if err := postgres.ApplyMigrations(ctx, server.StoreConfig(&cfg.Database)); err != nil {
				return err
			}
			log.Info("Migrations applied")
			return nil
		},
	}
}
