package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pwannenmacher/review-flow/internal/auth"
	"github.com/pwannenmacher/review-flow/internal/config"
	"github.com/pwannenmacher/review-flow/internal/identity"
)

var tokenRole string

var tokenCmd = &cobra.Command{
	Use:   "token <employee-id>",
	Short: "Issue an access token for an employee",
	Long:  "Issue an access token signed with JWT_SECRET. Without a configured key the token is only valid for this invocation.",
	Args:  cobra.ExactArgs(1),
	RunE:  runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenRole, "role", "Employee", "Role of the caller (Employee, TeamLead, HR, HRLead, Admin)")
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	role, ok := identity.ParseRole(tokenRole)
	if !ok {
		return fmt.Errorf("unknown role %q", tokenRole)
	}

	token, err := auth.NewService(&cfg.JWT).GenerateToken(identity.Caller{EmployeeID: args[0], Role: role})
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"access_token": token,
			"expires_in":   int(cfg.JWT.Expiration.Seconds()),
		})
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
