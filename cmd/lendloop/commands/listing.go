package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"lendloop/internal/catalog"
	"lendloop/internal/wizard"
)

type listingFlags struct {
	title       string
	categories  []string
	description string
	price       string
	rentPrice   string
	rentUnit    string
}

func (lf *listingFlags) bind(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&lf.title, "title", "", "listing title")
	f.StringSliceVar(&lf.categories, "category", nil, "category, repeatable (ELECTRONICS, FURNITURE, HOME_APPLIANCES, SPORTING_GOODS, OUTDOOR, TOYS)")
	f.StringVar(&lf.description, "description", "", "description")
	f.StringVar(&lf.price, "price", "", "sale price")
	f.StringVar(&lf.rentPrice, "rent-price", "", "rent price per unit")
	f.StringVar(&lf.rentUnit, "rent-unit", "", "DAY, WEEK or MONTH")
}

func (lf *listingFlags) values() map[wizard.Field]string {
	return map[wizard.Field]string{
		wizard.FieldTitle:       lf.title,
		wizard.FieldCategories:  strings.Join(lf.categories, ","),
		wizard.FieldDescription: lf.description,
		wizard.FieldPrice:       lf.price,
		wizard.FieldRentPrice:   lf.rentPrice,
		wizard.FieldRentUnit:    lf.rentUnit,
	}
}

var flagOf = map[wizard.Field]string{
	wizard.FieldTitle:       "title",
	wizard.FieldCategories:  "category",
	wizard.FieldDescription: "description",
	wizard.FieldPrice:       "price",
	wizard.FieldRentPrice:   "rent-price",
	wizard.FieldRentUnit:    "rent-unit",
}

func createCmd() *cobra.Command {
	var lf listingFlags
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Publish a listing, step by step",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := appCtx.NewWizard()
			values := lf.values()
			for w.Step() != wizard.StepSummary {
				for _, field := range w.Step().Fields() {
					if err := fill(w.SetField, field, values[field]); err != nil {
						return err
					}
				}
				if err := w.Next(); err != nil {
					return rejected(cmd, fmt.Sprintf("step %s", w.Step()), err)
				}
			}

			intent, err := w.Submit(cmd.Context())
			if err != nil {
				return rejected(cmd, "summary", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "listing published")
			return land(cmd, intent)
		},
	}
	lf.bind(cmd)
	return cmd
}

func editCmd() *cobra.Command {
	var lf listingFlags
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change a listing you own; only the given flags change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			form, err := appCtx.EditForm(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			values := lf.values()
			for _, field := range wizard.ListingFields {
				if !cmd.Flags().Changed(flagOf[field]) {
					continue
				}
				if err := fill(form.SetField, field, values[field]); err != nil {
					return err
				}
			}

			l, err := form.Submit(cmd.Context())
			if err != nil {
				return rejected(cmd, "edit", err)
			}
			return printListings(cmd, []catalog.Listing{l})
		},
	}
	lf.bind(cmd)
	return cmd
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove a listing you own",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := appCtx.Mutations.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "deleted", args[0])
			return nil
		},
	}
}

// fill writes one flag value into a form. Categories arrive comma joined and replace
// the whole selection.
func fill(set func(wizard.Field, string) error, field wizard.Field, value string) error {
	if value == "" {
		return nil
	}
	if err := set(field, value); err != nil {
		return fmt.Errorf("--%s: %w", flagOf[field], err)
	}
	return nil
}

func rejected(cmd *cobra.Command, where string, err error) error {
	var ve *wizard.ValidationError
	if !errors.As(err, &ve) {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%s:\n", where)
	printFieldErrors(cmd, ve.Fields)
	return errors.New("please fix the fields above")
}
