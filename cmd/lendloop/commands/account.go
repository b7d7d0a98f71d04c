package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"lendloop/internal/membership"
)

func loginCmd() *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "login <email>",
		Short: "Sign in and keep the token in the session slot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := appCtx.Session.Login(cmd.Context(), membership.Credentials{Email: args[0], Password: password})
			if err != nil {
				return explain(cmd, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "signed in as", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func registerCmd() *cobra.Command {
	var reg membership.Registration
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a marketplace account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := appCtx.Session.Register(cmd.Context(), reg)
			if err != nil {
				return explain(cmd, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered %s (%s); run `lendloop login` to sign in\n", u.Email, u.ID)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&reg.Email, "email", "", "email address")
	f.StringVar(&reg.Password, "password", "", "password (6+ characters)")
	f.StringVar(&reg.ConfirmPassword, "confirm-password", "", "the password again")
	f.StringVar(&reg.FirstName, "first-name", "", "first name")
	f.StringVar(&reg.LastName, "last-name", "", "last name")
	f.StringVar(&reg.Address, "address", "", "postal address")
	f.StringVar(&reg.PhoneNumber, "phone", "", "phone number (11 digits)")
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := appCtx.Session.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "signed out")
			return nil
		},
	}
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := appCtx.Session.CurrentUser(cmd.Context())
			if err != nil {
				return err
			}
			w := table(cmd)
			fmt.Fprintf(w, "id\t%s\n", u.ID)
			fmt.Fprintf(w, "email\t%s\n", u.Email)
			fmt.Fprintf(w, "name\t%s %s\n", u.FirstName, u.LastName)
			fmt.Fprintf(w, "type\t%s\n", u.UserType)
			if u.PhoneNumber != "" {
				fmt.Fprintf(w, "phone\t%s\n", u.PhoneNumber)
			}
			if u.Address != "" {
				fmt.Fprintf(w, "address\t%s\n", u.Address)
			}
			return w.Flush()
		},
	}
}

// explain prints per-field validation messages before returning err.
func explain(cmd *cobra.Command, err error) error {
	var ve *membership.ValidationError
	if errors.As(err, &ve) {
		for field, msg := range ve.Fields {
			fmt.Fprintf(cmd.ErrOrStderr(), "  %s: %s\n", field, msg)
		}
		return errors.New("please fix the fields above")
	}
	return err
}
