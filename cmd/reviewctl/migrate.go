package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pwannenmacher/review-flow/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the current schema version",
	Args:  cobra.NoArgs,
	RunE:  runMigrateStatus,
}

func init() {
	migrateCmd.AddCommand(migrateStatusCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.db.RunMigrations(); err != nil {
		return err
	}
	version, err := database.MigrationVersion(e.db.DB, e.db.Driver)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{"version": version})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Schema is at version %d\n", version)
	return nil
}

func runMigrateStatus(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer e.Close()

	version, err := database.MigrationVersion(e.db.DB, e.db.Driver)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{"version": version})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Schema is at version %d\n", version)
	return nil
}
