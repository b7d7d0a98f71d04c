// internal/catalog/domain.go
package catalog

import (
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

// Category classifies a listing.
type Category string

const (
	CategoryElectronics    Category = "ELECTRONICS"
	CategoryFurniture      Category = "FURNITURE"
	CategoryHomeAppliances Category = "HOME_APPLIANCES"
	CategorySportingGoods  Category = "SPORTING_GOODS"
	CategoryOutdoor        Category = "OUTDOOR"
	CategoryToys           Category = "TOYS"
)

// Categories lists every category a listing may carry.
var Categories = []Category{
	CategoryElectronics,
	CategoryFurniture,
	CategoryHomeAppliances,
	CategorySportingGoods,
	CategoryOutdoor,
	CategoryToys,
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	return slices.Contains(Categories, c)
}

// ParseCategories splits a comma separated list, dropping blanks and repeats.
// Unknown names are kept so validation can report them.
func ParseCategories(s string) []Category {
	out := []Category{}
	for _, part := range strings.Split(s, ",") {
		part = strings.ToUpper(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		out = append(out, Category(part))
	}
	return UniqueCategories(out)
}

// UniqueCategories returns cats without repeats, keeping first occurrences in order.
func UniqueCategories(cats []Category) []Category {
	out := make([]Category, 0, len(cats))
	for _, c := range cats {
		if !slices.Contains(out, c) {
			out = append(out, c)
		}
	}
	return out
}

// RentUnit is the period a rent price applies to.
type RentUnit string

const (
	RentUnitDay   RentUnit = "DAY"
	RentUnitWeek  RentUnit = "WEEK"
	RentUnitMonth RentUnit = "MONTH"
)

// Valid reports whether u is one of DAY, WEEK or MONTH.
func (u RentUnit) Valid() bool {
	switch u {
	case RentUnitDay, RentUnitWeek, RentUnitMonth:
		return true
	}
	return false
}

// Listing represents an item offered for sale and/or rent by its owner.
type Listing struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Categories  []Category      `json:"categories"`
	Price       decimal.Decimal `json:"price"`
	RentPrice   decimal.Decimal `json:"rentPrice"`
	RentUnit    RentUnit        `json:"rentUnit"`
	OwnerID     string          `json:"ownerId"`
	OwnerEmail  string          `json:"ownerEmail,omitempty"`
}

// ListingPatch carries a partial listing. Nil slots were not part of the write.
type ListingPatch struct {
	ID          string
	Title       *string
	Description *string
	Categories  []Category
	Price       *decimal.Decimal
	RentPrice   *decimal.Decimal
	RentUnit    *RentUnit
	OwnerID     *string
	OwnerEmail  *string
}

// Apply returns l with every slot present in p written over it.
func (l Listing) Apply(p ListingPatch) Listing {
	if p.ID != "" {
		l.ID = p.ID
	}
	if p.Title != nil {
		l.Title = *p.Title
	}
	if p.Description != nil {
		l.Description = *p.Description
	}
	if p.Categories != nil {
		l.Categories = slices.Clone(p.Categories)
	}
	if p.Price != nil {
		l.Price = *p.Price
	}
	if p.RentPrice != nil {
		l.RentPrice = *p.RentPrice
	}
	if p.RentUnit != nil {
		l.RentUnit = *p.RentUnit
	}
	if p.OwnerID != nil {
		l.OwnerID = *p.OwnerID
	}
	if p.OwnerEmail != nil {
		l.OwnerEmail = *p.OwnerEmail
	}
	return l
}

// PatchOf returns a patch that mentions every field of l.
func PatchOf(l Listing) ListingPatch {
	p := ListingPatch{
		ID:          l.ID,
		Title:       &l.Title,
		Description: &l.Description,
		Price:       &l.Price,
		RentPrice:   &l.RentPrice,
		RentUnit:    &l.RentUnit,
		OwnerID:     &l.OwnerID,
		OwnerEmail:  &l.OwnerEmail,
	}
	if l.Categories != nil {
		p.Categories = slices.Clone(l.Categories)
	}
	return p
}

// ListingInput is the payload of a create or update request.
type ListingInput struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Categories  []Category      `json:"categories"`
	Price       decimal.Decimal `json:"price"`
	RentPrice   decimal.Decimal `json:"rentPrice"`
	RentUnit    RentUnit        `json:"rentUnit"`
}

// InputOf copies the editable fields of l.
func InputOf(l Listing) ListingInput {
	return ListingInput{
		Title:       l.Title,
		Description: l.Description,
		Categories:  slices.Clone(l.Categories),
		Price:       l.Price,
		RentPrice:   l.RentPrice,
		RentUnit:    l.RentUnit,
	}
}

// Rule messages shared by every form that edits a listing.
const (
	MsgTitleRequired       = "Product title is required"
	MsgCategoriesRequired  = "Select at least one category"
	MsgCategoryRepeated    = "Each category can be selected only once"
	MsgDescriptionRequired = "Description is required"
	MsgPricePositive       = "Price must be greater than zero"
	MsgRentPricePositive   = "Rent price must be greater than zero"
	MsgRentUnitRequired    = "Select a rent unit"
)

// Problems returns the published-listing rule violations of in, keyed by field name.
func (in ListingInput) Problems() map[string]string {
	problems := make(map[string]string)
	if strings.TrimSpace(in.Title) == "" {
		problems["title"] = MsgTitleRequired
	}
	if msg := categoriesProblem(in.Categories); msg != "" {
		problems["categories"] = msg
	}
	if strings.TrimSpace(in.Description) == "" {
		problems["description"] = MsgDescriptionRequired
	}
	if !in.Price.IsPositive() {
		problems["price"] = MsgPricePositive
	}
	if !in.RentPrice.IsPositive() {
		problems["rentPrice"] = MsgRentPricePositive
	}
	if !in.RentUnit.Valid() {
		problems["rentUnit"] = MsgRentUnitRequired
	}
	return problems
}

func categoriesProblem(cats []Category) string {
	if len(cats) == 0 {
		return MsgCategoriesRequired
	}
	for i, c := range cats {
		if !c.Valid() {
			return "Unknown category " + string(c)
		}
		if slices.Contains(cats[:i], c) {
			return MsgCategoryRepeated
		}
	}
	return ""
}
