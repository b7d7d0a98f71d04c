package mockapi

import (
	"encoding/json"
	"time"

	"lendloop/internal/catalog"
	"lendloop/internal/circulation"
)

type ref struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Title string `json:"title,omitempty"`
}

type listingView struct {
	ID          string             `json:"id"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Categories  []catalog.Category `json:"categories"`
	Price       json.Number        `json:"price"`
	RentPrice   json.Number        `json:"rentPrice"`
	RentUnit    catalog.RentUnit   `json:"rentUnit"`
	Owner       ref                `json:"owner"`
}

func viewListing(l *catalog.Listing) listingView {
	cats := l.Categories
	if cats == nil {
		cats = []catalog.Category{}
	}
	return listingView{
		ID:          l.ID,
		Title:       l.Title,
		Description: l.Description,
		Categories:  cats,
		Price:       json.Number(l.Price.String()),
		RentPrice:   json.Number(l.RentPrice.String()),
		RentUnit:    l.RentUnit,
		Owner:       ref{ID: l.OwnerID, Email: l.OwnerEmail},
	}
}

func viewListings(ls []*catalog.Listing) []listingView {
	out := make([]listingView, 0, len(ls))
	for _, l := range ls {
		out = append(out, viewListing(l))
	}
	return out
}

type orderView struct {
	ID        string                `json:"id"`
	Type      circulation.OrderType `json:"type"`
	RentStart *string               `json:"rentStart"`
	RentEnd   *string               `json:"rentEnd"`
	Product   ref                   `json:"product"`
	Buyer     ref                   `json:"buyer"`
}

func viewOrder(o *circulation.Order) orderView {
	return orderView{
		ID:        o.ID,
		Type:      o.Type,
		RentStart: instant(o.RentStart),
		RentEnd:   instant(o.RentEnd),
		Product:   ref{ID: o.ListingID, Title: o.ListingTitle},
		Buyer:     ref{ID: o.BuyerID, Email: o.BuyerEmail},
	}
}

func viewOrders(orders []*circulation.Order) []orderView {
	out := make([]orderView, 0, len(orders))
	for _, o := range orders {
		out = append(out, viewOrder(o))
	}
	return out
}

func instant(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
