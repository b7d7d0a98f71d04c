// internal/chaos/engine.go
package chaos

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var ErrSteadyStateInvalid = errors.New("steady state invalid - aborting experiment")

// Experiment is one fault scenario run against a live client.
type Experiment struct {
	Name        string
	Hypothesis  string
	SteadyState []Metric
	Method      []Action
	Rollback    []Action
	Validation  []Assertion
	Duration    time.Duration
	Interval    time.Duration // sampling period while faults are active; 0 means one second
}

// Metric is a measurable property of the client.
type Metric struct {
	Name      string
	Query     func(context.Context) (float64, error)
	Threshold Threshold
}

type Threshold struct {
	Operator string // >, <, >=, <=, ==
	Value    float64
}

// Action injects or removes a fault.
type Action struct {
	Type    string
	Target  string
	Execute func(context.Context) error
}

// Assertion is checked against the last observation of Metric, taken after rollback.
type Assertion struct {
	Metric    string
	Condition func(float64) bool
	Message   string
}

type Result struct {
	ExperimentName   string                 `json:"experiment_name"`
	StartTime        time.Time              `json:"start_time"`
	EndTime          time.Time              `json:"end_time"`
	Duration         time.Duration          `json:"duration"`
	HypothesisHeld   bool                   `json:"hypothesis_held"`
	SteadyStateValid bool                   `json:"steady_state_valid"`
	Violations       []Violation            `json:"violations"`
	Failed           []string               `json:"failed_assertions,omitempty"`
	Observations     map[string][]DataPoint `json:"observations"`
	ErrorEvents      []ErrorEvent           `json:"error_events"`
	MTTR             *time.Duration         `json:"mttr,omitempty"`
}

type Violation struct {
	MetricName string    `json:"metric_name"`
	Expected   float64   `json:"expected"`
	Actual     float64   `json:"actual"`
	Timestamp  time.Time `json:"timestamp"`
}

type DataPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

type ErrorEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error"`
	Component string    `json:"component"`
}

// Engine runs experiments and keeps their results.
type Engine struct {
	tracer      trace.Tracer
	logger      *zap.Logger
	experiments []Experiment
	results     []Result
	mu          sync.Mutex
}

func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		tracer: otel.Tracer("lendloop/internal/chaos"),
		logger: logger,
	}
}

func (e *Engine) RegisterExperiment(exp Experiment) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.experiments = append(e.experiments, exp)
}

func (e *Engine) Experiments() []Experiment {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Experiment(nil), e.experiments...)
}

func (e *Engine) Results() []Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Result(nil), e.results...)
}

// RunExperiment checks the steady state, injects the faults, samples the metrics for
// exp.Duration, rolls the faults back, samples once more and evaluates the assertions.
func (e *Engine) RunExperiment(ctx context.Context, exp Experiment) (*Result, error) {
	ctx, span := e.tracer.Start(ctx, "chaos.run_experiment",
		trace.WithAttributes(attribute.String("experiment.name", exp.Name)),
	)
	defer span.End()

	result := &Result{
		ExperimentName: exp.Name,
		StartTime:      time.Now(),
		Observations:   make(map[string][]DataPoint),
	}

	span.AddEvent("validating_steady_state")
	if violations := e.validateSteadyState(ctx, exp.SteadyState); len(violations) > 0 {
		result.Violations = violations
		return result, ErrSteadyStateInvalid
	}
	result.SteadyStateValid = true

	span.AddEvent("injecting_chaos")
	e.execute(ctx, span, exp.Method, result)

	span.AddEvent("observing_system")
	interval := exp.Interval
	if interval <= 0 {
		interval = time.Second
	}
	var recoveryStart time.Time
	observe := func() {
		for _, m := range exp.SteadyState {
			value, err := m.Query(ctx)
			if err != nil {
				result.ErrorEvents = append(result.ErrorEvents, ErrorEvent{
					Timestamp: time.Now(),
					Error:     err.Error(),
					Component: m.Name,
				})
				continue
			}
			result.Observations[m.Name] = append(result.Observations[m.Name], DataPoint{Timestamp: time.Now(), Value: value})

			switch {
			case !evaluate(value, m.Threshold):
				if recoveryStart.IsZero() {
					recoveryStart = time.Now()
				}
				result.Violations = append(result.Violations, Violation{
					MetricName: m.Name,
					Expected:   m.Threshold.Value,
					Actual:     value,
					Timestamp:  time.Now(),
				})
			case !recoveryStart.IsZero() && result.MTTR == nil:
				mttr := time.Since(recoveryStart)
				result.MTTR = &mttr
			}
		}
	}

	observationCtx, cancel := context.WithTimeout(ctx, exp.Duration)
	ticker := time.NewTicker(interval)
observing:
	for {
		select {
		case <-observationCtx.Done():
			break observing
		case <-ticker.C:
			observe()
		}
	}
	ticker.Stop()
	cancel()

	span.AddEvent("rolling_back")
	e.execute(ctx, span, exp.Rollback, result)
	observe()

	span.AddEvent("validating_assertions")
	result.Failed = failedAssertions(exp.Validation, result)
	result.HypothesisHeld = len(result.Failed) == 0
	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)

	e.mu.Lock()
	e.results = append(e.results, *result)
	e.mu.Unlock()

	span.SetAttributes(
		attribute.Bool("hypothesis_held", result.HypothesisHeld),
		attribute.Int("violations", len(result.Violations)),
	)
	e.logger.Info("experiment finished",
		zap.String("experiment", exp.Name),
		zap.Bool("hypothesis_held", result.HypothesisHeld),
		zap.Int("violations", len(result.Violations)),
	)
	return result, nil
}

func (e *Engine) execute(ctx context.Context, span trace.Span, actions []Action, result *Result) {
	for _, a := range actions {
		if err := a.Execute(ctx); err != nil {
			result.ErrorEvents = append(result.ErrorEvents, ErrorEvent{
				Timestamp: time.Now(),
				Error:     err.Error(),
				Component: a.Target,
			})
			span.RecordError(err)
		}
	}
}

func (e *Engine) validateSteadyState(ctx context.Context, metrics []Metric) []Violation {
	var violations []Violation
	for _, m := range metrics {
		value, err := m.Query(ctx)
		if err != nil {
			e.logger.Warn("steady state probe failed", zap.String("metric", m.Name), zap.Error(err))
			value = -1
		}
		if err != nil || !evaluate(value, m.Threshold) {
			violations = append(violations, Violation{
				MetricName: m.Name,
				Expected:   m.Threshold.Value,
				Actual:     value,
				Timestamp:  time.Now(),
			})
		}
	}
	return violations
}

func evaluate(value float64, t Threshold) bool {
	switch t.Operator {
	case ">":
		return value > t.Value
	case "<":
		return value < t.Value
	case ">=":
		return value >= t.Value
	case "<=":
		return value <= t.Value
	case "==":
		return value == t.Value
	default:
		return false
	}
}

func failedAssertions(assertions []Assertion, result *Result) []string {
	var failed []string
	for _, a := range assertions {
		obs := result.Observations[a.Metric]
		if len(obs) == 0 || !a.Condition(obs[len(obs)-1].Value) {
			failed = append(failed, a.Message)
		}
	}
	return failed
}

// GameDay is a series of experiments run back to back.
type GameDay struct {
	Name      string
	Date      time.Time
	Scenarios []Experiment
	Pause     time.Duration // between experiments
}

// ExecuteGameDay runs every scenario and reports each result to w. A scenario that
// aborts does not stop the ones after it.
func (e *Engine) ExecuteGameDay(ctx context.Context, gd GameDay, w io.Writer) error {
	ctx, span := e.tracer.Start(ctx, "chaos.game_day",
		trace.WithAttributes(attribute.String("gameday.name", gd.Name)),
	)
	defer span.End()

	fmt.Fprintf(w, "Game day: %s (%s)\n", gd.Name, gd.Date.Format(time.DateOnly))

	held := 0
	for i, scenario := range gd.Scenarios {
		fmt.Fprintf(w, "\nExperiment %d/%d: %s\n", i+1, len(gd.Scenarios), scenario.Name)
		fmt.Fprintf(w, "Hypothesis: %s\n", scenario.Hypothesis)

		result, err := e.RunExperiment(ctx, scenario)
		if err != nil {
			fmt.Fprintf(w, "Aborted: %v\n", err)
			continue
		}
		printResult(w, result)
		if result.HypothesisHeld {
			held++
		}

		if i < len(gd.Scenarios)-1 && gd.Pause > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(gd.Pause):
			}
		}
	}

	fmt.Fprintf(w, "\n%d/%d hypotheses held\n", held, len(gd.Scenarios))
	return nil
}

func printResult(w io.Writer, r *Result) {
	if r.HypothesisHeld {
		fmt.Fprintln(w, "Hypothesis held")
	} else {
		fmt.Fprintln(w, "Hypothesis violated")
		for _, msg := range r.Failed {
			fmt.Fprintf(w, "  - %s\n", msg)
		}
	}
	if len(r.Violations) > 0 {
		fmt.Fprintf(w, "Violations while faulted: %d\n", len(r.Violations))
		for _, v := range r.Violations {
			fmt.Fprintf(w, "  - %s: expected %.2f, got %.2f\n", v.MetricName, v.Expected, v.Actual)
		}
	}
	if r.MTTR != nil {
		fmt.Fprintf(w, "MTTR: %s\n", r.MTTR.Round(time.Millisecond))
	}
	fmt.Fprintf(w, "Duration: %s\n", r.Duration.Round(time.Millisecond))
}
