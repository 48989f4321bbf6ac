package timectrl

import (
	"context"
	"sync"
	"time"
)

// SimClock is an interface for accessing simulation time. Components that
// evolve state over time (orbit propagation, power accrual) depend on this
// abstraction rather than a concrete controller, enabling testability.
type SimClock interface {
	// Now returns the current simulation time.
	Now() time.Time
}

// TimeController drives simulation time and notifies registered listeners
// on every tick. Simulation time advances by Tick*Scale per wall-clock
// Tick, so a Scale above 1 compresses mission time: hours of spacecraft
// drift in minutes of wall time.
//
// It implements SimClock for the spacecraft models.
type TimeController struct {
	mu        sync.RWMutex
	StartTime time.Time
	Tick      time.Duration
	Scale     float64

	currentTime time.Time

	listeners []func(time.Time)
}

// NewTimeController constructs a controller. A non-positive scale runs in
// real time.
func NewTimeController(start time.Time, tick time.Duration, scale float64) *TimeController {
	if scale <= 0 {
		scale = 1
	}
	return &TimeController{
		StartTime:   start,
		Tick:        tick,
		Scale:       scale,
		currentTime: start,
	}
}

// Now returns the current simulation time. Implements SimClock.
func (tc *TimeController) Now() time.Time {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.currentTime
}

// AddListener registers a callback invoked on every tick with the new
// simulation time. Listeners must be registered before Run.
func (tc *TimeController) AddListener(fn func(time.Time)) {
	tc.listeners = append(tc.listeners, fn)
}

// Run advances simulation time until the context is cancelled, invoking
// listeners synchronously on each tick. It returns a channel that is
// closed when the loop exits.
func (tc *TimeController) Run(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		step := time.Duration(float64(tc.Tick) * tc.Scale)

		ticker := time.NewTicker(tc.Tick)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			tc.mu.Lock()
			tc.currentTime = tc.currentTime.Add(step)
			simTime := tc.currentTime
			tc.mu.Unlock()

			for _, fn := range tc.listeners {
				fn(simTime)
			}
		}
	}()
	return done
}
