// Package wizard holds the interaction state of the listing forms: the step-gated
// create wizard, the edit form and the rental form.
//
// Field errors are only reported for touched fields. Typing does not touch a field;
// blurring it, advancing past its step, or submitting does.
package wizard

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"lendloop/internal/catalog"
)

// Field names one input of a listing form.
type Field string

const (
	FieldTitle       Field = "title"
	FieldCategories  Field = "categories"
	FieldDescription Field = "description"
	FieldPrice       Field = "price"
	FieldRentPrice   Field = "rentPrice"
	FieldRentUnit    Field = "rentUnit"
)

// ListingFields lists the listing form fields in display order.
var ListingFields = []Field{FieldTitle, FieldCategories, FieldDescription, FieldPrice, FieldRentPrice, FieldRentUnit}

var (
	ErrUnknownField = errors.New("unknown field")
	ErrBadNumber    = errors.New("not a number")
)

// ValidationError carries a message per failing field. It never reaches the network.
type ValidationError struct {
	Fields map[Field]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		keys = append(keys, string(f))
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[Field(k)])
	}
	return "invalid listing: " + strings.Join(parts, "; ")
}

// Draft is a listing under construction. Nil slots have not been filled in.
type Draft struct {
	Title       *string
	Categories  []catalog.Category
	Description *string
	Price       *decimal.Decimal
	RentPrice   *decimal.Decimal
	RentUnit    *catalog.RentUnit
}

// Input returns the draft as a request payload. Empty slots become zero values.
func (d Draft) Input() catalog.ListingInput {
	in := catalog.ListingInput{Categories: slices.Clone(d.Categories)}
	if d.Title != nil {
		in.Title = *d.Title
	}
	if d.Description != nil {
		in.Description = *d.Description
	}
	if d.Price != nil {
		in.Price = *d.Price
	}
	if d.RentPrice != nil {
		in.RentPrice = *d.RentPrice
	}
	if d.RentUnit != nil {
		in.RentUnit = *d.RentUnit
	}
	return in
}

func draftOf(l catalog.Listing) Draft {
	return Draft{
		Title:       &l.Title,
		Categories:  slices.Clone(l.Categories),
		Description: &l.Description,
		Price:       &l.Price,
		RentPrice:   &l.RentPrice,
		RentUnit:    &l.RentUnit,
	}
}

// form is the field state shared by the create wizard and the edit form.
// Callers hold the owner's lock.
type form struct {
	draft   Draft
	touched map[Field]bool
}

func newForm(d Draft) form {
	return form{draft: d, touched: make(map[Field]bool)}
}

func (f *form) set(field Field, value string) error {
	switch field {
	case FieldTitle:
		f.draft.Title = &value
	case FieldDescription:
		f.draft.Description = &value
	case FieldCategories:
		f.draft.Categories = catalog.ParseCategories(value)
	case FieldPrice:
		d, err := parseAmount(value)
		f.draft.Price = d
		return err
	case FieldRentPrice:
		d, err := parseAmount(value)
		f.draft.RentPrice = d
		return err
	case FieldRentUnit:
		u := catalog.RentUnit(strings.ToUpper(strings.TrimSpace(value)))
		f.draft.RentUnit = &u
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	return nil
}

func (f *form) toggleCategory(c catalog.Category) {
	if i := slices.Index(f.draft.Categories, c); i >= 0 {
		f.draft.Categories = slices.Delete(slices.Clone(f.draft.Categories), i, i+1)
		return
	}
	f.draft.Categories = append(slices.Clone(f.draft.Categories), c)
}

func (f *form) touch(fields ...Field) {
	for _, field := range fields {
		f.touched[field] = true
	}
}

func (f *form) untouchAll() {
	clear(f.touched)
}

// problems validates fields against the listing rules.
func (f *form) problems(fields []Field) map[Field]string {
	all := f.draft.Input().Problems()
	out := make(map[Field]string)
	for _, field := range fields {
		if msg, ok := all[string(field)]; ok {
			out[field] = msg
		}
	}
	return out
}

// visible returns the problems among fields that are also touched.
func (f *form) visible(fields []Field) map[Field]string {
	out := f.problems(fields)
	for field := range out {
		if !f.touched[field] {
			delete(out, field)
		}
	}
	return out
}

// parseAmount reads a decimal amount. An unparsable value clears the slot.
func parseAmount(s string) (*decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrBadNumber, s)
	}
	return &d, nil
}

func validateField(field Field) error {
	if !slices.Contains(ListingFields, field) {
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	return nil
}
