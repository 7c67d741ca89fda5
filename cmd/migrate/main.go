package main

import (
	"fmt"
	"os"

	"achievements/internal/config"
	"achievements/internal/db"
	"achievements/internal/logger"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
)

var migrationsDir string

var rootCmd = &cobra.Command{
	Use:           "migrate",
	Short:         "Apply and inspect achievements schema migrations",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply every pending migration in filename order",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDatabase(func(database *sqlx.DB) error {
			applied, err := migrateUp(database, migrationsDir)
			for _, name := range applied {
				fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", name)
			}
			return err
		})
	},
}

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Revert the most recently applied migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDatabase(func(database *sqlx.DB) error {
			name, err := migrateDown(database, migrationsDir)
			if err != nil {
				return err
			}
			if name == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing to revert")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reverted %s\n", name)
			return nil
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "List migrations and whether they are applied",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDatabase(func(database *sqlx.DB) error {
			rows, err := migrationStatus(database, migrationsDir)
			if err != nil {
				return err
			}
			for _, row := range rows {
				state := "pending"
				if row.Applied {
					state = "applied"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-8s %s\n", state, row.Name)
			}
			return nil
		})
	},
}

func withDatabase(fn func(*sqlx.DB) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	if migrationsDir == "" {
		migrationsDir = cfg.MigrationsDir
	}
	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer database.Close()
	if err := ensureMigrationsTable(database); err != nil {
		return err
	}
	return fn(database)
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&migrationsDir, "dir", "d", "", "migrations directory (defaults to MIGRATIONS_DIR)")
	rootCmd.AddCommand(upCmd, downCmd, statusCmd)
	if err := rootCmd.Execute(); err != nil {
		logger.Error("migrate: ", err)
		os.Exit(1)
	}
}
