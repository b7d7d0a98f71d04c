package wizard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"lendloop/internal/clients"
	"lendloop/internal/mutation"
	"lendloop/internal/navigation"
)

const (
	FieldFrom Field = "from"
	FieldTo   Field = "to"
)

const (
	MsgFromRequired = "Pick start date"
	MsgToRequired   = "Pick end date"
)

// Renter books a rental period.
type Renter interface {
	Rent(ctx context.Context, id string, from, to *time.Time) (mutation.Outcome, error)
}

// RentalForm collects a rental period for one listing. It checks that both dates are
// present and leaves their order to the server.
type RentalForm struct {
	mu        sync.Mutex
	listingID string
	renter    Renter
	from, to  *time.Time
	touched   map[Field]bool
}

func NewRentalForm(listingID string, renter Renter) *RentalForm {
	return &RentalForm{listingID: listingID, renter: renter, touched: make(map[Field]bool)}
}

// SetField parses value as YYYY-MM-DD or RFC 3339. An empty value clears the date.
func (r *RentalForm) SetField(f Field, value string) error {
	var t *time.Time
	if value != "" {
		parsed, err := clients.ParseInstant(value)
		if err != nil {
			return fmt.Errorf("invalid %s date: %w", f, err)
		}
		t = &parsed
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	switch f {
	case FieldFrom:
		r.from = t
	case FieldTo:
		r.to = t
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, f)
	}
	return nil
}

func (r *RentalForm) Blur(f Field) error {
	if f != FieldFrom && f != FieldTo {
		return fmt.Errorf("%w: %q", ErrUnknownField, f)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.touched[f] = true
	return nil
}

func (r *RentalForm) Period() (from, to *time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.from, r.to
}

func (r *RentalForm) Errors() map[Field]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.problems()
	for f := range out {
		if !r.touched[f] {
			delete(out, f)
		}
	}
	return out
}

func (r *RentalForm) problems() map[Field]string {
	out := make(map[Field]string)
	if r.from == nil {
		out[FieldFrom] = MsgFromRequired
	}
	if r.to == nil {
		out[FieldTo] = MsgToRequired
	}
	return out
}

// Submit books the period. Server rejections, such as an end before the start or an
// overlap, come back unchanged.
func (r *RentalForm) Submit(ctx context.Context) (navigation.Intent, error) {
	r.mu.Lock()
	r.touched[FieldFrom] = true
	r.touched[FieldTo] = true
	if problems := r.problems(); len(problems) > 0 {
		r.mu.Unlock()
		return navigation.Intent{}, &ValidationError{Fields: problems}
	}
	from, to := *r.from, *r.to
	r.mu.Unlock()

	out, err := r.renter.Rent(ctx, r.listingID, &from, &to)
	if err != nil {
		return navigation.Intent{}, err
	}
	if out.Redirect != nil {
		return *out.Redirect, nil
	}
	return navigation.LandOn(navigation.ViewHistory, navigation.TabBorrowed), nil
}
