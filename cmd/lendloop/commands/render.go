package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"lendloop/internal/catalog"
	"lendloop/internal/circulation"
	"lendloop/internal/wizard"
)

func table(cmd *cobra.Command) *tabwriter.Writer {
	return tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
}

func printListings(cmd *cobra.Command, ls []catalog.Listing) error {
	if len(ls) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no listings")
		return nil
	}
	w := table(cmd)
	fmt.Fprintln(w, "ID\tTITLE\tCATEGORIES\tPRICE\tRENT\tOWNER")
	for _, l := range ls {
		cats := make([]string, 0, len(l.Categories))
		for _, c := range l.Categories {
			cats = append(cats, string(c))
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s/%s\t%s\n",
			l.ID, l.Title, strings.Join(cats, ","), l.Price.StringFixed(2),
			l.RentPrice.StringFixed(2), strings.ToLower(string(l.RentUnit)), l.OwnerEmail)
	}
	return w.Flush()
}

func printOrders(cmd *cobra.Command, orders []circulation.Order) error {
	if len(orders) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no orders")
		return nil
	}
	w := table(cmd)
	fmt.Fprintln(w, "ID\tTYPE\tPRODUCT\tBUYER\tFROM\tTO")
	for _, o := range orders {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			o.ID, o.Type, o.ListingTitle, o.BuyerEmail, day(o.RentStart), day(o.RentEnd))
	}
	return w.Flush()
}

func printFieldErrors(cmd *cobra.Command, errs map[wizard.Field]string) {
	for _, f := range wizard.ListingFields {
		if msg, ok := errs[f]; ok {
			fmt.Fprintf(cmd.ErrOrStderr(), "  %s: %s\n", f, msg)
		}
	}
	for _, f := range []wizard.Field{wizard.FieldFrom, wizard.FieldTo} {
		if msg, ok := errs[f]; ok {
			fmt.Fprintf(cmd.ErrOrStderr(), "  %s: %s\n", f, msg)
		}
	}
}

func day(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.DateOnly)
}
