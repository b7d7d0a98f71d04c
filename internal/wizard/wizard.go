// internal/wizard/wizard.go
package wizard

import (
	"context"
	"errors"
	"sync"

	"github.com/shopspring/decimal"

	"lendloop/internal/catalog"
	"lendloop/internal/mutation"
	"lendloop/internal/navigation"
)

// Step is one screen of the create wizard.
type Step int

const (
	StepTitle Step = iota
	StepCategories
	StepDescription
	StepPricing
	StepSummary
)

// Steps lists the wizard screens in order.
var Steps = []Step{StepTitle, StepCategories, StepDescription, StepPricing, StepSummary}

func (s Step) String() string {
	switch s {
	case StepTitle:
		return "title"
	case StepCategories:
		return "categories"
	case StepDescription:
		return "description"
	case StepPricing:
		return "pricing"
	case StepSummary:
		return "summary"
	}
	return "unknown"
}

// Fields returns the fields validated by s.
func (s Step) Fields() []Field {
	switch s {
	case StepTitle:
		return []Field{FieldTitle}
	case StepCategories:
		return []Field{FieldCategories}
	case StepDescription:
		return []Field{FieldDescription}
	case StepPricing:
		return []Field{FieldPrice, FieldRentPrice, FieldRentUnit}
	}
	return nil
}

var ErrLastStep = errors.New("already at the last step")

// Creator publishes a listing.
type Creator interface {
	Create(ctx context.Context, in catalog.ListingInput) (mutation.Outcome, error)
}

// Wizard drives the create-listing flow. Next only advances past a valid step and Submit
// re-validates every step, so an invalid draft is never sent.
type Wizard struct {
	mu      sync.Mutex
	creator Creator
	step    Step
	form    form
}

func New(creator Creator) *Wizard {
	return &Wizard{creator: creator, form: newForm(Draft{})}
}

func (w *Wizard) Step() Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

// Draft returns a copy of the current draft.
func (w *Wizard) Draft() Draft {
	w.mu.Lock()
	defer w.mu.Unlock()
	d := w.form.draft
	d.Categories = append([]catalog.Category(nil), d.Categories...)
	return d
}

// Touched reports whether errors for f are being shown.
func (w *Wizard) Touched(f Field) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.form.touched[f]
}

// SetField updates the draft from text input without touching the field.
func (w *Wizard) SetField(f Field, value string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.form.set(f, value)
}

func (w *Wizard) SetTitle(title string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.form.draft.Title = &title
}

func (w *Wizard) SetDescription(desc string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.form.draft.Description = &desc
}

// SetCategories replaces the selection. Repeats are dropped.
func (w *Wizard) SetCategories(cats ...catalog.Category) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.form.draft.Categories = catalog.UniqueCategories(cats)
}

// ToggleCategory adds c to the draft, or removes it when already selected.
func (w *Wizard) ToggleCategory(c catalog.Category) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.form.toggleCategory(c)
}

func (w *Wizard) SetPricing(price, rentPrice decimal.Decimal, unit catalog.RentUnit) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.form.draft.Price = &price
	w.form.draft.RentPrice = &rentPrice
	w.form.draft.RentUnit = &unit
}

// Blur marks f touched.
func (w *Wizard) Blur(f Field) error {
	if err := validateField(f); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.form.touch(f)
	return nil
}

// Errors returns the messages of the current step's touched fields. On the summary
// step, which has no fields of its own, every touched field is reported.
func (w *Wizard) Errors() map[Field]string {
	w.mu.Lock()
	defer w.mu.Unlock()
	fields := w.step.Fields()
	if w.step == StepSummary {
		fields = ListingFields
	}
	return w.form.visible(fields)
}

// Next touches the current step's fields and advances if they are valid.
func (w *Wizard) Next() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.step == StepSummary {
		return ErrLastStep
	}
	fields := w.step.Fields()
	w.form.touch(fields...)
	if problems := w.form.problems(fields); len(problems) > 0 {
		return &ValidationError{Fields: problems}
	}
	w.form.untouchAll()
	w.step++
	return nil
}

// Back returns to the previous step. It does nothing on the first step.
func (w *Wizard) Back() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step == StepTitle {
		return
	}
	w.form.untouchAll()
	w.step--
}

// Reset abandons the draft.
func (w *Wizard) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.step = StepTitle
	w.form = newForm(Draft{})
}

// Submit validates every step and, only if all pass, creates the listing. On success the
// draft is discarded and the returned intent leads to the user's listings. On failure
// the draft and step are kept.
func (w *Wizard) Submit(ctx context.Context) (navigation.Intent, error) {
	w.mu.Lock()
	w.form.touch(ListingFields...)
	if problems := w.form.problems(ListingFields); len(problems) > 0 {
		w.mu.Unlock()
		return navigation.Intent{}, &ValidationError{Fields: problems}
	}
	in := w.form.draft.Input()
	w.mu.Unlock()

	out, err := w.creator.Create(ctx, in)
	if err != nil {
		return navigation.Intent{}, err
	}

	w.Reset()
	if out.Redirect != nil {
		return *out.Redirect, nil
	}
	return navigation.LandOn(navigation.ViewMyListings, ""), nil
}

// SetStep jumps to s without validation. Submit still checks every step.
func (w *Wizard) SetStep(s Step) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if s < StepTitle || s > StepSummary {
		return
	}
	w.form.untouchAll()
	w.step = s
}
