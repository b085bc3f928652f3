package cmd

import (
	"fmt"

	"github.com/josephgoksu/dayplan/internal/config"
	"github.com/josephgoksu/dayplan/internal/storage"
	"github.com/josephgoksu/dayplan/internal/ui"
	"github.com/spf13/cobra"
)

var migratePrintSQL bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Add task ordering support to the database",
	Long: `Bring the task table up to date.

For the sqlite backend the missing columns are added in place and existing
tasks get positions matching their current time order.

The hosted row API can't change its own schema, so for the hosted backend the
SQL to run on the database is printed instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		log, err := newLogger(cfg)
		if err != nil {
			return err
		}

		if cfg.Storage.Backend == config.BackendHosted || migratePrintSQL {
			fmt.Fprint(cmd.OutOrStdout(), storage.HostedMigrationSQL(cfg.Storage.Hosted.Table, cfg.Storage.Hosted.ReorderFunction))
			return nil
		}

		store, err := storage.NewSQLiteStore(cmd.Context(), storage.SQLiteOptions{
			Path:   cfg.Storage.SQLite.Path,
			Logger: log,
		})
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		applied, err := store.Migrate(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(applied) == 0 {
			fmt.Fprintln(out, ui.StyleSubtle.Render("Schema is up to date: "+cfg.Storage.SQLite.Path))
			return nil
		}
		for _, col := range applied {
			fmt.Fprintln(out, ui.StyleSuccess.Render("✓ added column "+col))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().BoolVar(&migratePrintSQL, "print-sql", false, "print the hosted database SQL instead of migrating")
}
