package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pwannenmacher/review-flow/internal/models"
	"github.com/pwannenmacher/review-flow/internal/repository"
)

var (
	employeeName    string
	employeeEmail   string
	employeeManager string
)

var employeeCmd = &cobra.Command{
	Use:   "employee",
	Short: "Manage the employee directory",
}

var employeeUpsertCmd = &cobra.Command{
	Use:   "upsert <employee-id>",
	Short: "Create or update an employee and their manager",
	Args:  cobra.ExactArgs(1),
	RunE:  runEmployeeUpsert,
}

var employeeShowCmd = &cobra.Command{
	Use:   "show <employee-id>",
	Short: "Show an employee and their assignments",
	Args:  cobra.ExactArgs(1),
	RunE:  runEmployeeShow,
}

func init() {
	employeeUpsertCmd.Flags().StringVar(&employeeName, "name", "", "Display name")
	employeeUpsertCmd.Flags().StringVar(&employeeEmail, "email", "", "Email address")
	employeeUpsertCmd.Flags().StringVar(&employeeManager, "manager", "", "Employee id of the direct manager")
	_ = employeeUpsertCmd.MarkFlagRequired("name")

	employeeCmd.AddCommand(employeeUpsertCmd)
	employeeCmd.AddCommand(employeeShowCmd)
}

func runEmployeeUpsert(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	e, err := openEnv(ctx, false)
	if err != nil {
		return err
	}
	defer e.Close()

	emp := &models.Employee{ID: args[0], Name: employeeName, Email: employeeEmail}
	if employeeManager != "" {
		if employeeManager == emp.ID {
			return fmt.Errorf("an employee cannot manage themselves")
		}
		emp.ManagerID = &employeeManager
	}
	if err := repository.NewEmployeeRepository(e.db.DB).Upsert(ctx, emp); err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), emp)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Employee %s saved.\n", emp.ID)
	return nil
}

func runEmployeeShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	e, err := openEnv(ctx, false)
	if err != nil {
		return err
	}
	defer e.Close()

	emp, err := repository.NewEmployeeRepository(e.db.DB).GetByID(ctx, args[0])
	if err != nil {
		return err
	}
	ids, err := repository.NewAssignmentRepository(e.db.DB, e.sealer).ListByEmployee(ctx, args[0])
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{"employee": emp, "assignment_ids": ids})
	}
	manager := "-"
	if emp.ManagerID != nil {
		manager = *emp.ManagerID
	}
	w := newTabWriter(cmd.OutOrStdout())
	fmt.Fprintln(w, "ID\tNAME\tEMAIL\tMANAGER\tASSIGNMENTS")
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n", emp.ID, emp.Name, emp.Email, manager, len(ids))
	w.Flush()
	return nil
}
