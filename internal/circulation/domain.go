// internal/circulation/domain.go
package circulation

import (
	"errors"
	"time"
)

// OrderType distinguishes a purchase from a rental.
type OrderType string

const (
	OrderBuy  OrderType = "BUY"
	OrderRent OrderType = "RENT"
)

var (
	ErrRentPeriodOnBuy    = errors.New("a buy order cannot carry a rental period")
	ErrRentPeriodMissing  = errors.New("a rent order needs both rentStart and rentEnd")
	ErrRentPeriodReversed = errors.New("rentStart must be before rentEnd")
	ErrUnknownOrderType   = errors.New("unknown order type")
)

// Order is a completed buy or rent transaction linking a buyer to a listing.
type Order struct {
	ID           string     `json:"id"`
	ListingID    string     `json:"listingId"`
	ListingTitle string     `json:"listingTitle,omitempty"`
	BuyerID      string     `json:"buyerId"`
	BuyerEmail   string     `json:"buyerEmail,omitempty"`
	Type         OrderType  `json:"type"`
	RentStart    *time.Time `json:"rentStart,omitempty"`
	RentEnd      *time.Time `json:"rentEnd,omitempty"`
}

// Validate checks that the rental period is present exactly for RENT orders and is ordered.
func (o Order) Validate() error {
	switch o.Type {
	case OrderBuy:
		if o.RentStart != nil || o.RentEnd != nil {
			return ErrRentPeriodOnBuy
		}
	case OrderRent:
		if o.RentStart == nil || o.RentEnd == nil {
			return ErrRentPeriodMissing
		}
		if !o.RentStart.Before(*o.RentEnd) {
			return ErrRentPeriodReversed
		}
	default:
		return ErrUnknownOrderType
	}
	return nil
}

// OrderPatch carries a partial order as returned by the history queries.
type OrderPatch struct {
	ID           string
	ListingID    *string
	ListingTitle *string
	BuyerID      *string
	BuyerEmail   *string
	Type         *OrderType
	RentStart    *time.Time
	RentEnd      *time.Time
}

// Apply returns o with every slot present in p written over it.
func (o Order) Apply(p OrderPatch) Order {
	if p.ID != "" {
		o.ID = p.ID
	}
	if p.ListingID != nil {
		o.ListingID = *p.ListingID
	}
	if p.ListingTitle != nil {
		o.ListingTitle = *p.ListingTitle
	}
	if p.BuyerID != nil {
		o.BuyerID = *p.BuyerID
	}
	if p.BuyerEmail != nil {
		o.BuyerEmail = *p.BuyerEmail
	}
	if p.Type != nil {
		o.Type = *p.Type
	}
	if p.RentStart != nil {
		t := *p.RentStart
		o.RentStart = &t
	}
	if p.RentEnd != nil {
		t := *p.RentEnd
		o.RentEnd = &t
	}
	return o
}

// PatchOf returns a patch that mentions every field of o.
func PatchOf(o Order) OrderPatch {
	return OrderPatch{
		ID:           o.ID,
		ListingID:    &o.ListingID,
		ListingTitle: &o.ListingTitle,
		BuyerID:      &o.BuyerID,
		BuyerEmail:   &o.BuyerEmail,
		Type:         &o.Type,
		RentStart:    o.RentStart,
		RentEnd:      o.RentEnd,
	}
}
