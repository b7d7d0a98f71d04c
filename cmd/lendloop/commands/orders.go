package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"lendloop/internal/wizard"
)

func buyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "buy <id>",
		Short: "Buy a listing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := appCtx.Mutations.Buy(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "bought", args[0])
			if out.Redirect == nil {
				return nil
			}
			return land(cmd, *out.Redirect)
		},
	}
}

func rentCmd() *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "rent <id>",
		Short: "Rent a listing for a period",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			form := appCtx.RentalForm(args[0])
			if err := form.SetField(wizard.FieldFrom, from); err != nil {
				return fmt.Errorf("--from: %w", err)
			}
			if err := form.SetField(wizard.FieldTo, to); err != nil {
				return fmt.Errorf("--to: %w", err)
			}
			intent, err := form.Submit(cmd.Context())
			if err != nil {
				return rejected(cmd, "rent", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "rented", args[0])
			return land(cmd, intent)
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "first day, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "last day, YYYY-MM-DD")
	return cmd
}
