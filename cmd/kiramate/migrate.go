package main

import (
	"fmt"

	"kiramate-backend/internal/config"
	"kiramate-backend/internal/database"

	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.AddCommand(migrateUpCmd(), migrateDownCmd(), migrateVersionCmd())
	return cmd
}

func migrateUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations and seed default settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadDatabase()
			db, err := database.Open(cfg)
			if err != nil {
				return err
			}

			if cfg.DBDriver == "postgres" {
				err = database.RunSQLMigrations(cfg.MigrationsPath, cfg.DatabaseDSN)
			} else {
				err = database.Migrate(cfg, db)
			}
			if err != nil {
				return err
			}
			if err := database.SeedSettings(db); err != nil {
				return fmt.Errorf("seed settings: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied.")
			return nil
		},
	}
}

func migrateDownCmd() *cobra.Command {
	var steps int
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Revert the last SQL migrations (postgres only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadDatabase()
			if cfg.DBDriver != "postgres" {
				return fmt.Errorf("migrate down needs DB_DRIVER=postgres")
			}
			if steps < 1 {
				return fmt.Errorf("--steps must be at least 1")
			}
			if err := database.RollbackSQLMigrations(cfg.MigrationsPath, cfg.DatabaseDSN, steps); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reverted %d migration(s).\n", steps)
			return nil
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to revert")
	return cmd
}

func migrateVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the applied SQL migration version",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadDatabase()
			if cfg.DBDriver != "postgres" {
				return fmt.Errorf("migrate version needs DB_DRIVER=postgres")
			}
			v, dirty, err := database.SQLMigrationVersion(cfg.MigrationsPath, cfg.DatabaseDSN)
			if err != nil {
				return err
			}
			if dirty {
				fmt.Fprintf(cmd.OutOrStdout(), "%d (dirty)\n", v)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		},
	}
}
