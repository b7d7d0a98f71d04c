// Package store holds the locally known state of remote marketplace entities.
//
// Repository is the single write path for cached state: entities are upserted
// field by field, removed by id, and referenced from named query results by id.
// No method performs I/O.
package store

import (
	"slices"
	"sync"

	"lendloop/internal/catalog"
	"lendloop/internal/circulation"
)

// Repository caches listings and orders by id, plus the ordered id lists of cached queries.
type Repository struct {
	mu       sync.RWMutex
	listings map[string]catalog.Listing
	orders   map[string]circulation.Order
	queries  map[string][]string
}

// NewRepository creates an empty repository.
func NewRepository() *Repository {
	return &Repository{
		listings: make(map[string]catalog.Listing),
		orders:   make(map[string]circulation.Order),
		queries:  make(map[string][]string),
	}
}

// Listing returns the cached listing with the given id.
func (r *Repository) Listing(id string) (catalog.Listing, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.listings[id]
	return cloneListing(l), ok
}

// Order returns the cached order with the given id.
func (r *Repository) Order(id string) (circulation.Order, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.orders[id]
	return cloneOrder(o), ok
}

// PutListing upserts p. Only slots present in p overwrite the cached copy.
// A patch without an id is ignored.
func (r *Repository) PutListing(p catalog.ListingPatch) catalog.Listing {
	if p.ID == "" {
		return catalog.Listing{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneListing(r.putListing(p))
}

// PutOrder upserts p. Only slots present in p overwrite the cached copy.
// A patch without an id is ignored.
func (r *Repository) PutOrder(p circulation.OrderPatch) circulation.Order {
	if p.ID == "" {
		return circulation.Order{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneOrder(r.putOrder(p))
}

// RemoveListing deletes the cached listing id and reports whether it was cached.
// Query results that reference the id are left alone; see RemoveFromQuery.
func (r *Repository) RemoveListing(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.listings[id]
	delete(r.listings, id)
	return ok
}

// RemoveOrder deletes the cached order id. Listings and orders have separate id spaces.
func (r *Repository) RemoveOrder(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.orders[id]
	delete(r.orders, id)
	return ok
}

// RemoveFromQuery strips id from the cached result of queryID, keeping the order of
// the remaining ids. Other queries are not touched.
func (r *Repository) RemoveFromQuery(queryID, id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids, ok := r.queries[queryID]
	if !ok {
		return false
	}
	i := slices.Index(ids, id)
	if i < 0 {
		return false
	}
	r.queries[queryID] = slices.Delete(slices.Clone(ids), i, i+1)
	return true
}

// LoadListings upserts every patch and replaces the result of queryID with their ids.
func (r *Repository) LoadListings(queryID string, patches []catalog.ListingPatch) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(patches))
	for _, p := range patches {
		if p.ID == "" {
			continue
		}
		r.putListing(p)
		ids = append(ids, p.ID)
	}
	r.queries[queryID] = ids
	return slices.Clone(ids)
}

// LoadOrders upserts every patch and replaces the result of queryID with their ids.
func (r *Repository) LoadOrders(queryID string, patches []circulation.OrderPatch) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(patches))
	for _, p := range patches {
		if p.ID == "" {
			continue
		}
		r.putOrder(p)
		ids = append(ids, p.ID)
	}
	r.queries[queryID] = ids
	return slices.Clone(ids)
}

// QueryIDs returns a copy of the cached id list of queryID.
func (r *Repository) QueryIDs(queryID string) ([]string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids, ok := r.queries[queryID]
	return slices.Clone(ids), ok
}

// Listings resolves the cached result of queryID to listings, skipping ids no longer cached.
func (r *Repository) Listings(queryID string) []catalog.Listing {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]catalog.Listing, 0, len(r.queries[queryID]))
	for _, id := range r.queries[queryID] {
		if l, ok := r.listings[id]; ok {
			out = append(out, cloneListing(l))
		}
	}
	return out
}

// Orders resolves the cached result of queryID to orders, skipping ids no longer cached.
func (r *Repository) Orders(queryID string) []circulation.Order {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]circulation.Order, 0, len(r.queries[queryID]))
	for _, id := range r.queries[queryID] {
		if o, ok := r.orders[id]; ok {
			out = append(out, cloneOrder(o))
		}
	}
	return out
}

func (r *Repository) putListing(p catalog.ListingPatch) catalog.Listing {
	l := r.listings[p.ID].Apply(p)
	r.listings[p.ID] = l
	return l
}

func (r *Repository) putOrder(p circulation.OrderPatch) circulation.Order {
	o := r.orders[p.ID].Apply(p)
	r.orders[p.ID] = o
	return o
}

func cloneListing(l catalog.Listing) catalog.Listing {
	if l.Categories != nil {
		l.Categories = slices.Clone(l.Categories)
	}
	return l
}

func cloneOrder(o circulation.Order) circulation.Order {
	if o.RentStart != nil {
		t := *o.RentStart
		o.RentStart = &t
	}
	if o.RentEnd != nil {
		t := *o.RentEnd
		o.RentEnd = &t
	}
	return o
}
