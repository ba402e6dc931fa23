package cli

import (
	"github.com/fieldops/dispatch/server"
	"github.com/spf13/cobra"
)

// ServeCmd runs the HTTP API until interrupted.
func ServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the dispatch HTTP API",
		RunE: func(*cobra.Command, []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			return server.NewServer(cfg, log).Run()
		},
	}
}
