package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ledgersmith/coinsort/internal/cli"
	"github.com/ledgersmith/coinsort/internal/config"
	"github.com/ledgersmith/coinsort/internal/storage"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, err := config.LoadEngine()
			if err != nil {
				return err
			}

			dbPath := viper.GetString("database.path")
			if dbPath == "" {
				dbPath = "$HOME/.local/share/coinsort/coinsort.db"
			}
			store, err := storage.NewSQLiteStorage(config.ExpandPath(dbPath), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.Migrate(ctx); err != nil {
				return err
			}

			version, err := store.SchemaVersion(ctx)
			if err != nil {
				return err
			}
			cmd.Println(cli.SuccessStyle.Render(fmt.Sprintf("Database schema at version %d", version)))
			return nil
		},
	}

	return cmd
}
