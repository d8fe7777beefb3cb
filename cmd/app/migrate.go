package main

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/wichananm65/pet-shop-storefront/internal/config"
	"github.com/wichananm65/pet-shop-storefront/internal/database"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the postgres schema",
		Long: `Apply or roll back the SQL migrations embedded in the binary.

Examples:
  storefront migrate up
  storefront migrate down --steps 1
  storefront migrate version`,
	}
	cmd.AddCommand(migrateUpCmd(), migrateDownCmd(), migrateVersionCmd())
	return cmd
}

func migrateUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openMigrationDB(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := database.MigrateUp(db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func migrateDownCmd() *cobra.Command {
	var steps int
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if steps <= 0 {
				return fmt.Errorf("--steps must be positive")
			}
			db, err := openMigrationDB(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := database.MigrateDown(db, steps); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rolled back %d migration(s)\n", steps)
			return nil
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	return cmd
}

func migrateVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openMigrationDB(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			v, dirty, err := database.MigrationVersion(db)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty=%t)\n", v, dirty)
			return nil
		},
	}
}

func openMigrationDB(cmd *cobra.Command) (*sql.DB, error) {
	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}
	return database.OpenPostgres(cmd.Context(), cfg.DatabaseURL)
}
