package runtime

import (
	"log/slog"
	"math"
	"time"

	"github.com/corvid-run/splitrt/internal/pointer"
	"github.com/corvid-run/splitrt/internal/targetproc"
)

// Guest is the set of guest entry points the driver invokes, per
// spec.md §4.5. Configure corresponds to the required configure export;
// every other method corresponds to an optional guest export, and an
// implementation whose underlying module does not export such a function
// returns the documented zero value (false / NaN / nil) rather than an
// error, so the driver cannot distinguish "guest said no" from "guest
// doesn't implement this" — which is the point: both mean "no action".
type Guest interface {
	Configure() error
	Update() error
	ShouldStart() (bool, error)
	IsLoading() (bool, error)
	GameTime() (float64, error)
	ShouldSplit() (bool, error)
	ShouldReset() (bool, error)
	Disconnected() error
}

// opener abstracts targetproc.Open for testability.
type opener func(name string) (*targetproc.Process, error)

// Driver is the tick-loop state machine (spec.md §4.6): it hooks the
// target process, updates pointer-path values, invokes the guest in the
// order §4.5 specifies, and returns the resulting timer action, if any.
type Driver struct {
	Env       *Environment
	Guest     Guest
	State     TimerState
	evaluator *pointer.Evaluator
	open      opener
	process   *targetproc.Process
	logger    *slog.Logger

	cachedIsLoading *bool
	cachedGameTime  *float64
}

// NewDriver returns a Driver in the Idle state.
func NewDriver(env *Environment, guest Guest, logger *slog.Logger) *Driver {
	return &Driver{
		Env:       env,
		Guest:     guest,
		evaluator: pointer.NewEvaluator(),
		open:      targetproc.Open,
		logger:    logger,
	}
}

// SetState is the embedder's timer-state push, read by the driver at the
// top of every Step.
func (d *Driver) SetState(s TimerState) {
	d.State = s
}

// Process returns the currently hooked target process, or nil when Idle.
// The host ABI module calls this to serve scan_signature/read_into_buf.
func (d *Driver) Process() *targetproc.Process {
	return d.process
}

// Sleep blocks for the environment's current tick rate. Tick-rate changes
// made during the tick just completed take effect on this call, per
// spec.md §4.6.
func (d *Driver) Sleep() {
	time.Sleep(d.Env.TickRate)
}

// IsLoading returns the most recently observed is_loading value, and
// whether one has been observed at all (false before the first Running
// tick, after a disconnect, or while is_loading calls fail). A guest that
// does not export is_loading is observed as reporting false.
func (d *Driver) IsLoading() (bool, bool) {
	if d.cachedIsLoading == nil {
		return false, false
	}
	return *d.cachedIsLoading, true
}

// GameTime returns the most recently observed game_time value (NaN
// readings, meaning "none", clear it rather than surface NaN).
func (d *Driver) GameTime() (float64, bool) {
	if d.cachedGameTime == nil {
		return 0, false
	}
	return *d.cachedGameTime, true
}

// Step runs one iteration of the tick loop: hook → update values → invoke
// guest → return action. It never blocks; callers sleep separately via
// Sleep so an embedder can interleave other work between ticks.
func (d *Driver) Step() (TimerAction, bool) {
	if d.Env.Lifecycle == Idle {
		return d.stepIdle()
	}
	return d.stepSteady()
}

func (d *Driver) stepIdle() (TimerAction, bool) {
	proc, err := d.open(d.Env.ProcessName)
	if err != nil {
		return 0, false
	}

	d.Env.Lifecycle = JustConnected
	if err := d.evaluator.EvaluateFirstTick(d.Env.Registry, proc); err != nil {
		// Never fully connected: no disconnected callback, just go back
		// to Idle and try again next tick (spec.md §4.6).
		proc.Close()
		d.Env.Lifecycle = Idle
		return 0, false
	}

	d.process = proc
	d.Env.Lifecycle = Steady
	return d.runGuest()
}

func (d *Driver) stepSteady() (TimerAction, bool) {
	if err := d.evaluator.EvaluateSteady(d.Env.Registry, d.process); err != nil {
		d.disconnect()
		return 0, false
	}
	return d.runGuest()
}

func (d *Driver) disconnect() {
	if d.Guest != nil {
		if err := d.Guest.Disconnected(); err != nil {
			d.warn("disconnected", err)
		}
	}
	if d.process != nil {
		d.process.Close()
		d.process = nil
	}
	d.cachedIsLoading = nil
	d.cachedGameTime = nil
	d.Env.Lifecycle = Idle
}

// runGuest invokes the guest entry points in §4.5 order and returns the
// first action detected (P7: should_split checked before should_reset).
func (d *Driver) runGuest() (TimerAction, bool) {
	if d.Guest == nil {
		return 0, false
	}
	if err := d.Guest.Update(); err != nil {
		d.warn("update", err)
		return 0, false
	}

	switch d.State {
	case NotRunning:
		start, err := d.Guest.ShouldStart()
		if err != nil {
			d.warn("should_start", err)
			return 0, false
		}
		if start {
			return Start, true
		}

	case Running:
		if loading, err := d.Guest.IsLoading(); err != nil {
			d.warn("is_loading", err)
		} else {
			d.cachedIsLoading = &loading
		}

		if gt, err := d.Guest.GameTime(); err != nil {
			d.warn("game_time", err)
		} else if math.IsNaN(gt) {
			d.cachedGameTime = nil
		} else {
			v := gt
			d.cachedGameTime = &v
		}

		split, err := d.Guest.ShouldSplit()
		if err != nil {
			d.warn("should_split", err)
			return 0, false
		}
		if split {
			return Split, true
		}

		reset, err := d.Guest.ShouldReset()
		if err != nil {
			d.warn("should_reset", err)
			return 0, false
		}
		if reset {
			return Reset, true
		}

	case Finished:
		reset, err := d.Guest.ShouldReset()
		if err != nil {
			d.warn("should_reset", err)
			return 0, false
		}
		if reset {
			return Reset, true
		}
	}

	return 0, false
}

func (d *Driver) warn(call string, err error) {
	if d.logger == nil {
		return
	}
	d.logger.Warn("guest entry point failed", "call", call, "err", err, "env", d.Env.ID)
}
