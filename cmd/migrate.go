package cmd

import (
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := bootstrap()
		if err != nil {
			return err
		}
		defer log.Sync() //nolint:errcheck

		_, cleanup, err := buildRepository(cmd.Context(), cfg)
		if err != nil {
			log.Errorw("migrate", "storage", cfg.Storage.Type, "error", err)
			return err
		}
		cleanup()

		log.Infow("schema is up to date", "storage", cfg.Storage.Type)
		return nil
	},
}
