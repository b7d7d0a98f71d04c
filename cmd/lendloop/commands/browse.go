package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"lendloop/internal/navigation"
	"lendloop/internal/query"
)

func listingsCmd() *cobra.Command {
	var mine bool
	cmd := &cobra.Command{
		Use:   "listings",
		Short: "List everything on offer, or only your listings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			view, name := navigation.ViewAllListings, query.AllListings
			if mine {
				view, name = navigation.ViewMyListings, query.MyListings
			}
			return showListings(cmd, navigation.LandOn(view, ""), name)
		},
	}
	cmd.Flags().BoolVar(&mine, "mine", false, "only listings you own")
	return cmd
}

func historyCmd() *cobra.Command {
	var tab string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show your bought, sold, borrowed or lent orders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t := navigation.Tab(strings.ToUpper(tab))
			if !t.Valid() {
				return fmt.Errorf("%w: %q", navigation.ErrUnknownTab, tab)
			}
			return showHistory(cmd, navigation.LandOn(navigation.ViewHistory, t))
		},
	}
	cmd.Flags().StringVar(&tab, "tab", string(navigation.DefaultTab), "bought, sold, borrowed or lent")
	return cmd
}

func showListings(cmd *cobra.Command, in navigation.Intent, name query.Name) error {
	if _, err := appCtx.Navigate(cmd.Context(), in); err != nil {
		return err
	}
	ls, err := appCtx.Queries.Listings(name)
	if err != nil {
		return err
	}
	return printListings(cmd, ls)
}

// showHistory lands on the history tab of in and prints the query behind it.
func showHistory(cmd *cobra.Command, in navigation.Intent) error {
	if _, err := appCtx.Navigate(cmd.Context(), in); err != nil {
		return err
	}
	names := navigation.DefaultRoutes[navigation.ScopeFor(navigation.ViewHistory, appCtx.Nav.Tab())]
	if len(names) == 0 {
		return fmt.Errorf("%w: %q", navigation.ErrUnknownTab, appCtx.Nav.Tab())
	}
	orders, err := appCtx.Queries.Orders(names[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\n", strings.ToLower(string(appCtx.Nav.Tab())))
	return printOrders(cmd, orders)
}

// land follows in to whichever screen it names.
func land(cmd *cobra.Command, in navigation.Intent) error {
	switch in.View {
	case navigation.ViewHistory:
		return showHistory(cmd, in)
	case navigation.ViewMyListings:
		return showListings(cmd, in, query.MyListings)
	default:
		return showListings(cmd, in, query.AllListings)
	}
}
