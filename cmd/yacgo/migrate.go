package main

import (
	"context"
	"fmt"
	"os"

	"github.com/goodtune/yacgo/internal/cache"
	"github.com/goodtune/yacgo/internal/config"
	"github.com/spf13/cobra"
)

// newMigrateCmd manages the optional spec-hash cache database. The entity
// data itself always lives in the git repository (§3); this command only
// prepares the narrow side cache described in SPEC_FULL.md §2.
func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run spec-cache database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfigFromCmd(cmd)
			if err != nil {
				return err
			}

			store, err := cache.Open(cfg.Cache.Driver, cfg.Cache.DSN)
			if err != nil {
				return fmt.Errorf("opening cache database: %w", err)
			}
			defer store.Close()

			migrator := cache.NewMigrator(store, cfg.Cache.Driver)
			ctx := context.Background()

			if err := store.EnsureMigrationsTable(ctx); err != nil {
				return fmt.Errorf("ensuring migrations table: %w", err)
			}

			if err := migrator.Migrate(ctx); err != nil {
				return fmt.Errorf("running migrations: %w", err)
			}

			fmt.Println("Migrations complete.")
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Check spec-cache migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfigFromCmd(cmd)
			if err != nil {
				return err
			}

			store, err := cache.Open(cfg.Cache.Driver, cfg.Cache.DSN)
			if err != nil {
				return fmt.Errorf("opening cache database: %w", err)
			}
			defer store.Close()

			migrator := cache.NewMigrator(store, cfg.Cache.Driver)
			ctx := context.Background()
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("checking migration status: %w", err)
			}

			for _, s := range statuses {
				status := "pending"
				if s.Applied {
					status = "applied"
				}
				fmt.Printf("%-40s %s\n", s.Name, status)
			}

			if len(statuses) == 0 {
				fmt.Println("No migrations found.")
			}

			return nil
		},
	})

	return cmd
}

func loadConfigFromCmd(cmd *cobra.Command) (*config.Config, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	if cfgPath == "" {
		cfgPath = os.Getenv("YACGO_CONFIG")
	}
	return config.Load(cfgPath)
}
