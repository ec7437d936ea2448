package cmd

import (
	"context"
	"fmt"
	"os"

	"bugsage/internal/config"
	"bugsage/internal/logger"
	"bugsage/internal/storage"
	"bugsage/internal/storage/postgres"
	"bugsage/internal/storage/sqlite"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var envFile string

// rootCmd runs the HTTP server when called without a subcommand.
var rootCmd = &cobra.Command{
	Use:           "bugsage",
	Short:         "Bug tracker API server",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

// Execute is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "bugsage:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", config.DefaultEnvFile,
		"dotenv file with defaults; real environment variables take precedence")

	rootCmd.AddCommand(serveCmd, migrateCmd, seedCmd)
}

// bootstrap loads configuration and builds the logger every command uses.
func bootstrap() (config.Config, *zap.SugaredLogger, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(cfg.Logging.Level)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, log, nil
}

// buildRepository opens the configured store. Both backends bring their
// schema up to date on open.
func buildRepository(ctx context.Context, cfg config.Config) (storage.Repository, func(), error) {
	switch cfg.Storage.Type {
	case config.StoragePostgres:
		store, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case config.StorageSQLite:
		store, err := sqlite.New(cfg.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}
}
