package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"lifehub/internal/cli"
	"lifehub/internal/config"
	"lifehub/internal/storage"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cli.LoadEnvFile()
			cfg, err := cli.LoadAndValidateConfig()
			if err != nil {
				return err
			}

			var (
				dialect storage.Dialect
				dsn     string
			)
			switch cfg.DataBackend {
			case config.BackendSQLite:
				dialect, dsn = storage.SQLite, storage.SQLiteDSN(cfg.SQLiteDBPath)
			case config.BackendPostgres:
				dialect, dsn = storage.Postgres, cfg.PostgresURL
			default:
				fmt.Fprintf(cmd.OutOrStdout(), "backend %q has no schema, nothing to migrate\n", cfg.DataBackend)
				return nil
			}

			if err := storage.RunMigrations(dialect, dsn); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s schema is up to date\n", dialect)
			return nil
		},
	}
}
