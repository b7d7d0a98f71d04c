package navigation

import "lendloop/internal/query"

// ScopeFor names the query scope a view needs. The history view has one scope per tab.
func ScopeFor(v View, tab Tab) query.Scope {
	if v == ViewHistory {
		if tab == "" {
			tab = DefaultTab
		}
		return query.Scope(string(ViewHistory) + "/" + string(tab))
	}
	return query.Scope(v)
}

// DefaultRoutes maps every view scope to the queries it shows.
var DefaultRoutes = map[query.Scope][]query.Name{
	ScopeFor(ViewAllListings, ""):      {query.AllListings},
	ScopeFor(ViewMyListings, ""):       {query.MyListings},
	ScopeFor(ViewHistory, TabBought):   {query.BoughtOrders},
	ScopeFor(ViewHistory, TabSold):     {query.SoldOrders},
	ScopeFor(ViewHistory, TabBorrowed): {query.BorrowedOrders},
	ScopeFor(ViewHistory, TabLent):     {query.LentOrders},
}

// Definer binds scopes to queries.
type Definer interface {
	Define(scope query.Scope, names ...query.Name)
}

// DefineRoutes declares DefaultRoutes on d.
func DefineRoutes(d Definer) {
	for scope, names := range DefaultRoutes {
		d.Define(scope, names...)
	}
}

// LandOn builds the intent for v. tab is only kept for the history view.
func LandOn(v View, tab Tab) Intent {
	if v != ViewHistory {
		tab = ""
	}
	return Intent{View: v, Tab: tab}
}
