package wizard

import (
	"context"
	"sync"

	"lendloop/internal/catalog"
	"lendloop/internal/mutation"
)

// Updater saves changes to an existing listing.
type Updater interface {
	Update(ctx context.Context, id string, in catalog.ListingInput) (mutation.Outcome, error)
}

// EditForm edits a published listing on a single screen with the wizard's rules.
type EditForm struct {
	mu      sync.Mutex
	id      string
	updater Updater
	form    form
}

// NewEditForm seeds the form from l.
func NewEditForm(l catalog.Listing, updater Updater) *EditForm {
	return &EditForm{id: l.ID, updater: updater, form: newForm(draftOf(l))}
}

func (e *EditForm) ID() string { return e.id }

func (e *EditForm) Draft() Draft {
	e.mu.Lock()
	defer e.mu.Unlock()
	d := e.form.draft
	d.Categories = append([]catalog.Category(nil), d.Categories...)
	return d
}

func (e *EditForm) SetField(f Field, value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.form.set(f, value)
}

func (e *EditForm) ToggleCategory(c catalog.Category) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.form.toggleCategory(c)
}

func (e *EditForm) Blur(f Field) error {
	if err := validateField(f); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.form.touch(f)
	return nil
}

func (e *EditForm) Errors() map[Field]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.form.visible(ListingFields)
}

// Submit validates every field and saves the listing.
func (e *EditForm) Submit(ctx context.Context) (catalog.Listing, error) {
	e.mu.Lock()
	e.form.touch(ListingFields...)
	if problems := e.form.problems(ListingFields); len(problems) > 0 {
		e.mu.Unlock()
		return catalog.Listing{}, &ValidationError{Fields: problems}
	}
	in := e.form.draft.Input()
	e.mu.Unlock()

	out, err := e.updater.Update(ctx, e.id, in)
	if err != nil {
		return catalog.Listing{}, err
	}
	if out.Listing == nil {
		return catalog.Listing{}, nil
	}
	return *out.Listing, nil
}
