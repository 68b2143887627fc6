package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pwannenmacher/review-flow/internal/config"
	"github.com/pwannenmacher/review-flow/internal/database"
	"github.com/pwannenmacher/review-flow/internal/logger"
	"github.com/pwannenmacher/review-flow/internal/sealing"
)

var jsonOutput bool

var rootCmd = &cobra.Command{
	Use:           "reviewctl",
	Short:         "Operate a review-flow installation",
	Long:          "Run migrations, inspect assignments and issue tokens without going through the API.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Setup(logger.Config{Level: os.Getenv("LOG_LEVEL"), Output: cmd.ErrOrStderr()})
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(employeeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// env bundles what the commands share
type env struct {
	cfg    *config.Config
	db     *database.Database
	sealer sealing.Sealer
}

// openEnv loads the configuration and connects to the database. The sealer
// is only connected when withSealer is set, so commands that never touch
// sealed data work without Vault.
func openEnv(ctx context.Context, withSealer bool) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	db, err := database.New(&cfg.Database)
	if err != nil {
		return nil, err
	}

	e := &env{cfg: cfg, db: db, sealer: sealing.Plain{}}
	if withSealer && cfg.Vault.Enabled {
		initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		s, err := sealing.NewVaultSealer(initCtx, sealing.Config{
			Address:      cfg.Vault.Address,
			Token:        cfg.Vault.Token,
			TransitMount: cfg.Vault.TransitMount,
			KeyName:      cfg.Vault.KeyName,
		})
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("connect vault: %w", err)
		}
		e.sealer = s
	}
	return e, nil
}

func (e *env) Close() {
	_ = e.db.Close()
}

// printJSON marshals v to JSON and writes to the given writer.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}
