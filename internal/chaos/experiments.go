// internal/chaos/experiments.go
package chaos

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"lendloop/internal/app"
	"lendloop/internal/catalog"
	"lendloop/internal/clients"
	"lendloop/internal/mockapi"
	"lendloop/internal/navigation"
	"lendloop/internal/query"
)

// Probe drives one signed-in client against a marketplace whose faults it controls.
type Probe struct {
	App     *app.App
	Faults  *mockapi.Injector
	Samples int

	mu      sync.Mutex
	created int
}

func NewProbe(a *app.App, faults *mockapi.Injector, samples int) *Probe {
	if samples <= 0 {
		samples = 1
	}
	return &Probe{App: a, Faults: faults, Samples: samples}
}

// Seed creates n listings through the client so the marketplace has something to serve.
func (p *Probe) Seed(ctx context.Context, n int) error {
	for range n {
		if err := p.create(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (p *Probe) create(ctx context.Context) error {
	p.mu.Lock()
	n := p.created + 1
	p.mu.Unlock()

	_, err := p.App.Mutations.Create(ctx, catalog.ListingInput{
		Title:       fmt.Sprintf("Probe listing %d", n),
		Description: "created by the chaos probe",
		Categories:  []catalog.Category{catalog.CategoryOutdoor},
		Price:       decimal.NewFromInt(int64(10 * n)),
		RentPrice:   decimal.NewFromInt(1),
		RentUnit:    catalog.RentUnitDay,
	})
	if err != nil {
		return fmt.Errorf("failed to create probe listing: %w", err)
	}
	p.mu.Lock()
	p.created++
	p.mu.Unlock()
	return nil
}

func (p *Probe) expected() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.created
}

// LoadRate is the percentage of all-listings view loads that succeed.
func (p *Probe) LoadRate(ctx context.Context) (float64, error) {
	ok := 0
	for range p.Samples {
		p.App.Queries.Invalidate(query.AllListings)
		if _, err := p.App.Navigate(ctx, navigation.LandOn(navigation.ViewAllListings, "")); err == nil {
			ok++
		}
	}
	return percent(ok, p.Samples), nil
}

// LatestRate is the percentage of rounds in which the cached all-listings result matches
// the marketplace after two overlapping refetches, one issued before a create and one after.
func (p *Probe) LatestRate(ctx context.Context) (float64, error) {
	hits := 0
	for range p.Samples {
		early := make(chan error, 1)
		go func() { early <- p.App.Queries.Refetch(ctx, query.AllListings) }()

		if err := p.create(ctx); err != nil {
			<-early
			return 0, err
		}
		late := p.App.Queries.Refetch(ctx, query.AllListings)
		if err := errors.Join(late, <-early); err != nil {
			return 0, err
		}

		listings, err := p.App.Queries.Listings(query.AllListings)
		if err != nil && !errors.Is(err, query.ErrStale) {
			return 0, err
		}
		if len(listings) == p.expected() {
			hits++
		}
	}
	return percent(hits, p.Samples), nil
}

// Retained is the percentage of known listings still readable from the cache after a
// refetch attempt, whether or not the refetch succeeded.
func (p *Probe) Retained(ctx context.Context) (float64, error) {
	p.App.Queries.Invalidate(query.AllListings)
	_ = p.App.Queries.Refetch(ctx, query.AllListings)

	listings, err := p.App.Queries.Listings(query.AllListings)
	if err != nil && !errors.Is(err, query.ErrStale) {
		return 0, err
	}
	return percent(len(listings), max(p.expected(), 1)), nil
}

func percent(n, of int) float64 {
	return float64(n) / float64(of) * 100
}

// fault returns the actions that inject f and remove it again.
func (p *Probe) fault(actionType string, f mockapi.Fault) (inject, rollback Action) {
	var (
		mu     sync.Mutex
		remove func()
	)
	target := f.Target
	if target == "" {
		target = "marketplace"
	}
	inject = Action{
		Type:   actionType,
		Target: target,
		Execute: func(context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			remove = p.Faults.Inject(f)
			return nil
		},
	}
	rollback = Action{
		Type:   "remove-" + actionType,
		Target: target,
		Execute: func(context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			if remove != nil {
				remove()
				remove = nil
			}
			return nil
		},
	}
	return inject, rollback
}

// RegisterExperiments registers the standard scenarios, each observed for d.
func (e *Engine) RegisterExperiments(p *Probe, d time.Duration) {
	e.RegisterExperiment(SlowMarketplaceExperiment(p, 150*time.Millisecond, d))
	e.RegisterExperiment(ReorderedResponsesExperiment(p, 100*time.Millisecond, d))
	e.RegisterExperiment(TransientFailureExperiment(p, 0.5, d))
	e.RegisterExperiment(OutageExperiment(p, d))
}

// SlowMarketplaceExperiment delays every operation.
func SlowMarketplaceExperiment(p *Probe, latency, d time.Duration) Experiment {
	inject, rollback := p.fault("inject-latency", mockapi.Fault{
		Type:    mockapi.FaultLatency,
		Latency: latency,
		Jitter:  latency / 4,
	})
	return Experiment{
		Name:       "marketplace-latency",
		Hypothesis: "Views still load when every marketplace call is slow",
		SteadyState: []Metric{
			{Name: "listings_load_rate", Query: p.LoadRate, Threshold: Threshold{Operator: ">=", Value: 100}},
		},
		Method:   []Action{inject},
		Rollback: []Action{rollback},
		Validation: []Assertion{
			{
				Metric:    "listings_load_rate",
				Condition: func(v float64) bool { return v >= 100 },
				Message:   "All-listings view should load on every attempt",
			},
		},
		Duration: d,
		Interval: d / 4,
	}
}

// ReorderedResponsesExperiment gives listing responses random latency so overlapping
// fetches come back out of order.
func ReorderedResponsesExperiment(p *Probe, jitter, d time.Duration) Experiment {
	inject, rollback := p.fault("inject-jitter", mockapi.Fault{
		Type:   mockapi.FaultLatency,
		Target: clients.OpAllListings,
		Jitter: jitter,
	})
	return Experiment{
		Name:       "reordered-responses",
		Hypothesis: "The most recently issued fetch decides the cached result, whatever order responses arrive in",
		SteadyState: []Metric{
			{Name: "latest_snapshot_rate", Query: p.LatestRate, Threshold: Threshold{Operator: "==", Value: 100}},
		},
		Method:   []Action{inject},
		Rollback: []Action{rollback},
		Validation: []Assertion{
			{
				Metric:    "latest_snapshot_rate",
				Condition: func(v float64) bool { return v == 100 },
				Message:   "A superseded response must never overwrite a newer one",
			},
		},
		Duration: d,
		Interval: d / 4,
	}
}

// TransientFailureExperiment fails a share of listing fetches.
func TransientFailureExperiment(p *Probe, probability float64, d time.Duration) Experiment {
	inject, rollback := p.fault("inject-failure", mockapi.Fault{
		Type:        mockapi.FaultFailure,
		Target:      clients.OpAllListings,
		Probability: probability,
	})
	return Experiment{
		Name:       "transient-failures",
		Hypothesis: "Failed fetches are retried on the next activation and the view recovers once the marketplace does",
		SteadyState: []Metric{
			{Name: "listings_load_rate", Query: p.LoadRate, Threshold: Threshold{Operator: ">=", Value: 100}},
		},
		Method:   []Action{inject},
		Rollback: []Action{rollback},
		Validation: []Assertion{
			{
				Metric:    "listings_load_rate",
				Condition: func(v float64) bool { return v >= 100 },
				Message:   "All-listings view should load again after failures stop",
			},
		},
		Duration: d,
		Interval: d / 4,
	}
}

// OutageExperiment makes listing fetches answer 503.
func OutageExperiment(p *Probe, d time.Duration) Experiment {
	inject, rollback := p.fault("inject-outage", mockapi.Fault{
		Type:   mockapi.FaultUnavailable,
		Target: clients.OpAllListings,
	})
	return Experiment{
		Name:       "listings-outage",
		Hypothesis: "Cached listings stay readable while the marketplace is down",
		SteadyState: []Metric{
			{Name: "cache_retained", Query: p.Retained, Threshold: Threshold{Operator: ">=", Value: 100}},
		},
		Method:   []Action{inject},
		Rollback: []Action{rollback},
		Validation: []Assertion{
			{
				Metric:    "cache_retained",
				Condition: func(v float64) bool { return v >= 100 },
				Message:   "Every known listing should still be readable",
			},
		},
		Duration: d,
		Interval: d / 4,
	}
}
