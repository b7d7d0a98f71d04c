// internal/mockapi/faults.go
package mockapi

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"
)

// FaultType names what a fault does to a matching request.
type FaultType string

const (
	FaultLatency     FaultType = "latency"
	FaultFailure     FaultType = "failure"
	FaultUnavailable FaultType = "unavailable"
)

// DefaultFailureMessage is reported by failure faults without a message.
const DefaultFailureMessage = "Internal server error"

var errUnavailable = errors.New("service unavailable")

// Fault is one injected misbehaviour.
type Fault struct {
	Type        FaultType
	Target      string        // operation name; empty matches every operation
	Latency     time.Duration // for FaultLatency
	Jitter      time.Duration
	Probability float64 // 0 means always
	Times       int     // 0 means until removed
	Message     string  // for FaultFailure
}

// FailureError is returned for a FaultFailure hit. Its message reaches the client as a server error.
type FailureError struct {
	Message string
}

func (e *FailureError) Error() string { return e.Message }

type activeFault struct {
	id   int
	left int
	Fault
}

// Injector holds the faults applied to incoming operations.
type Injector struct {
	mu     sync.Mutex
	faults []*activeFault
	nextID int
	rand   *rand.Rand
}

func NewInjector() *Injector {
	return &Injector{
		rand: rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
	}
}

// Inject adds f and returns a func that removes it again.
func (i *Injector) Inject(f Fault) (remove func()) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.nextID++
	id := i.nextID
	i.faults = append(i.faults, &activeFault{id: id, left: f.Times, Fault: f})
	return func() { i.remove(id) }
}

// Clear removes every fault.
func (i *Injector) Clear() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.faults = nil
}

func (i *Injector) remove(id int) {
	i.mu.Lock()
	defer i.mu.Unlock()
	for n, f := range i.faults {
		if f.id == id {
			i.faults = append(i.faults[:n], i.faults[n+1:]...)
			return
		}
	}
}

// pick returns the faults that fire for op and spends one use of each.
func (i *Injector) pick(op string) []Fault {
	i.mu.Lock()
	defer i.mu.Unlock()

	var hits []Fault
	kept := i.faults[:0]
	for _, f := range i.faults {
		if f.Target != "" && f.Target != op {
			kept = append(kept, f)
			continue
		}
		if f.Probability > 0 && i.rand.Float64() >= f.Probability {
			kept = append(kept, f)
			continue
		}
		hit := f.Fault
		if hit.Jitter > 0 {
			hit.Latency += time.Duration(i.rand.Int64N(int64(hit.Jitter)))
		}
		hits = append(hits, hit)
		if f.Times > 0 {
			f.left--
			if f.left == 0 {
				continue
			}
		}
		kept = append(kept, f)
	}
	i.faults = kept
	return hits
}

// Decide picks the faults that fire for op. delay is how long the response is
// held back; failure, when set, replaces the operation's result.
func (i *Injector) Decide(op string) (delay time.Duration, failure error) {
	for _, f := range i.pick(op) {
		switch f.Type {
		case FaultLatency:
			delay += f.Latency
		case FaultUnavailable:
			failure = errUnavailable
		case FaultFailure:
			if failure == nil {
				msg := f.Message
				if msg == "" {
					msg = DefaultFailureMessage
				}
				failure = &FailureError{Message: msg}
			}
		}
	}
	return delay, failure
}

// wait sleeps for d, returning early with the context error.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
