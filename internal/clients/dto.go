// internal/clients/dto.go
package clients

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"lendloop/internal/catalog"
	"lendloop/internal/circulation"
	"lendloop/internal/membership"
)

type gqlRequest struct {
	OperationName string         `json:"operationName"`
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables,omitempty"`
}

type gqlError struct {
	Message    string         `json:"message"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

type gqlResponse struct {
	Data   map[string]json.RawMessage `json:"data"`
	Errors []gqlError                 `json:"errors"`
}

type refDTO struct {
	ID    *string `json:"id"`
	Email *string `json:"email"`
	Title *string `json:"title"`
}

type listingDTO struct {
	ID          string             `json:"id"`
	Title       *string            `json:"title"`
	Description *string            `json:"description"`
	Categories  []catalog.Category `json:"categories"`
	Price       *decimal.Decimal   `json:"price"`
	RentPrice   *decimal.Decimal   `json:"rentPrice"`
	RentUnit    *catalog.RentUnit  `json:"rentUnit"`
	Owner       *refDTO            `json:"owner"`
}

func (d listingDTO) patch() catalog.ListingPatch {
	p := catalog.ListingPatch{
		ID:          d.ID,
		Title:       d.Title,
		Description: d.Description,
		Categories:  d.Categories,
		Price:       d.Price,
		RentPrice:   d.RentPrice,
		RentUnit:    d.RentUnit,
	}
	if d.Owner != nil {
		p.OwnerID = d.Owner.ID
		p.OwnerEmail = d.Owner.Email
	}
	return p
}

type orderDTO struct {
	ID        string                 `json:"id"`
	Type      *circulation.OrderType `json:"type"`
	RentStart *string                `json:"rentStart"`
	RentEnd   *string                `json:"rentEnd"`
	Product   *refDTO                `json:"product"`
	Buyer     *refDTO                `json:"buyer"`
}

// patch converts d. When the server omits the order type, fallback is used.
func (d orderDTO) patch(fallback circulation.OrderType) (circulation.OrderPatch, error) {
	p := circulation.OrderPatch{ID: d.ID, Type: d.Type}
	if p.Type == nil && fallback != "" {
		p.Type = &fallback
	}
	if d.Product != nil {
		p.ListingID = d.Product.ID
		p.ListingTitle = d.Product.Title
	}
	if d.Buyer != nil {
		p.BuyerID = d.Buyer.ID
		p.BuyerEmail = d.Buyer.Email
	}
	var err error
	if p.RentStart, err = parseInstant(d.RentStart); err != nil {
		return p, fmt.Errorf("failed to parse rentStart of order %s: %w", d.ID, err)
	}
	if p.RentEnd, err = parseInstant(d.RentEnd); err != nil {
		return p, fmt.Errorf("failed to parse rentEnd of order %s: %w", d.ID, err)
	}
	return p, nil
}

type userDTO struct {
	ID          string  `json:"id"`
	Email       string  `json:"email"`
	FirstName   *string `json:"firstName"`
	LastName    *string `json:"lastName"`
	UserType    *string `json:"userType"`
	Address     *string `json:"address"`
	PhoneNumber *string `json:"phoneNumber"`
}

func (d userDTO) user() *membership.User {
	return &membership.User{
		ID:          d.ID,
		Email:       d.Email,
		FirstName:   deref(d.FirstName),
		LastName:    deref(d.LastName),
		UserType:    deref(d.UserType),
		Address:     deref(d.Address),
		PhoneNumber: deref(d.PhoneNumber),
	}
}

// listingInputDTO sends prices as JSON numbers.
type listingInputDTO struct {
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Categories  []catalog.Category `json:"categories"`
	Price       json.Number        `json:"price"`
	RentPrice   json.Number        `json:"rentPrice"`
	RentUnit    catalog.RentUnit   `json:"rentUnit"`
}

func listingInput(in catalog.ListingInput) listingInputDTO {
	cats := in.Categories
	if cats == nil {
		cats = []catalog.Category{}
	}
	return listingInputDTO{
		Title:       in.Title,
		Description: in.Description,
		Categories:  cats,
		Price:       json.Number(in.Price.String()),
		RentPrice:   json.Number(in.RentPrice.String()),
		RentUnit:    in.RentUnit,
	}
}

var instantLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	time.DateOnly,
}

// ParseInstant accepts RFC 3339 timestamps, zone-less timestamps (read as UTC) and plain dates.
func ParseInstant(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range instantLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised instant %q", s)
}

func parseInstant(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := ParseInstant(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
