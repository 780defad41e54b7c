package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/turtacn/mfagate/internal/application/service"
)

type adminRunner func(fn func(ctx context.Context, admin service.AdminService, args []string) error) func(*cobra.Command, []string) error

func newStatusCommand(with adminRunner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <username>",
		Short: "Show the stored secret, confirmation and transaction state of a user",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = with(func(ctx context.Context, admin service.AdminService, args []string) error {
		status, err := admin.Status(ctx, args[0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(status)
	})
	return cmd
}

func newResetCommand(with adminRunner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset <username>",
		Short: "Delete the secret of a user so the next login enrolls again",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = with(func(ctx context.Context, admin service.AdminService, args []string) error {
		if err := admin.ResetEnrollment(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Enrollment of %s reset\n", args[0])
		return nil
	})
	return cmd
}

func newClearTransactionCommand(with adminRunner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear-transaction <username>",
		Short: "Drop a stuck push transaction of a user",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = with(func(ctx context.Context, admin service.AdminService, args []string) error {
		cleared, err := admin.ClearTransaction(ctx, args[0])
		if err != nil {
			return err
		}
		if !cleared {
			fmt.Fprintf(cmd.OutOrStdout(), "No transaction stored for %s\n", args[0])
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Transaction of %s cleared\n", args[0])
		return nil
	})
	return cmd
}

//Personal.AI order the ending
