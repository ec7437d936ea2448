package cmd

import (
	"bugsage/internal/seed"

	"github.com/spf13/cobra"
)

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load teams, users and bugs from a YAML file",
	Long: `Load fixtures into the configured store. Teams are matched by name,
users by email and bugs by reporter and title, so the command can be run
repeatedly.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := bootstrap()
		if err != nil {
			return err
		}
		defer log.Sync() //nolint:errcheck

		fx, err := seed.LoadFile(seedFile)
		if err != nil {
			return err
		}

		repo, cleanup, err := buildRepository(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		_, err = seed.NewSeeder(repo, log).Apply(cmd.Context(), fx)
		return err
	},
}

func init() {
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "seed.yaml", "YAML fixtures to load")
}
