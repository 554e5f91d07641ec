// Package runtime implements the tick-loop driver and lifecycle state
// machine that orchestrates pointer-path evaluation and guest entry-point
// invocation each tick, and the Environment each runtime instance owns.
package runtime

import (
	"time"

	"github.com/google/uuid"

	"github.com/corvid-run/splitrt/internal/pointer"
)

// minTickInterval bounds set_tick_rate: a non-finite or non-positive
// ticks_per_sec clamps here rather than panicking or dividing by zero
// (spec.md §9 open question, decided in DESIGN.md).
const minTickInterval = time.Hour

// Lifecycle is the tri-state of a runtime's connection to its target
// process. Collapsed to two observable states by the driver (Idle,
// Steady) — JustConnected is set only for the duration of the tick that
// performs first-tick seeding, so an embedder introspecting it between
// Step calls never observes it.
type Lifecycle uint8

const (
	Idle Lifecycle = iota
	JustConnected
	Steady
)

func (l Lifecycle) String() string {
	switch l {
	case Idle:
		return "idle"
	case JustConnected:
		return "just-connected"
	case Steady:
		return "steady"
	default:
		return "unknown"
	}
}

// Environment is the state a single runtime instance uniquely owns. The
// guest holds no reference into it — only opaque pointer-path ids that
// index into Registry.
type Environment struct {
	ID          uuid.UUID
	ProcessName string
	Registry    *pointer.Registry
	TickRate    time.Duration
	Lifecycle   Lifecycle
}

// NewEnvironment returns a fresh Environment with the default tick rate
// (1/60s, spec.md §3) and an empty pointer-path registry.
func NewEnvironment() *Environment {
	return &Environment{
		ID:       uuid.New(),
		Registry: pointer.NewRegistry(),
		TickRate: time.Second / 60,
	}
}

// SetTickRate sets the tick interval from a guest-supplied ticks-per-second
// value, per the set_tick_rate host call contract:
// round(1e9 / ticks_per_sec) ns, clamped to a minimum positive rate for
// non-finite or non-positive input rather than panicking.
func (e *Environment) SetTickRate(ticksPerSec float64) {
	if !(ticksPerSec > 0) { // false for NaN, 0, negative, +Inf handled below
		e.TickRate = minTickInterval
		return
	}
	ns := time.Duration(1e9/ticksPerSec + 0.5) // round to nearest
	if ns <= 0 || ns > minTickInterval {
		e.TickRate = minTickInterval
		return
	}
	e.TickRate = ns
}
