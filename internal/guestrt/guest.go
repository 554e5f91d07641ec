// Package guestrt compiles and instantiates a guest bytecode module
// against the host ABI and adapts its exports to runtime.Guest.
package guestrt

import (
	"context"
	"fmt"
	"math"

	"github.com/tetratelabs/wazero/api"
)

// Guest adapts one instantiated wasm module's exports to runtime.Guest.
// Every entry point except "configure" is optional: a module that does
// not export it answers with the documented zero value, per spec.md §4.5.
type Guest struct {
	mod api.Module
}

func (g *Guest) Configure() error {
	return g.callRequired(context.Background(), "configure")
}

func (g *Guest) Update() error {
	return g.callOptionalVoid(context.Background(), "update")
}

func (g *Guest) ShouldStart() (bool, error) {
	return g.callOptionalBool(context.Background(), "should_start")
}

func (g *Guest) IsLoading() (bool, error) {
	return g.callOptionalBool(context.Background(), "is_loading")
}

func (g *Guest) GameTime() (float64, error) {
	return g.callOptionalF64(context.Background(), "game_time")
}

func (g *Guest) ShouldSplit() (bool, error) {
	return g.callOptionalBool(context.Background(), "should_split")
}

func (g *Guest) ShouldReset() (bool, error) {
	return g.callOptionalBool(context.Background(), "should_reset")
}

func (g *Guest) Disconnected() error {
	return g.callOptionalVoid(context.Background(), "disconnected")
}

func (g *Guest) callRequired(ctx context.Context, name string) error {
	fn := g.mod.ExportedFunction(name)
	if fn == nil {
		return fmt.Errorf("guest does not export required function %q", name)
	}
	_, err := fn.Call(ctx)
	return err
}

func (g *Guest) callOptionalVoid(ctx context.Context, name string) error {
	fn := g.mod.ExportedFunction(name)
	if fn == nil {
		return nil
	}
	_, err := fn.Call(ctx)
	return err
}

func (g *Guest) callOptionalBool(ctx context.Context, name string) (bool, error) {
	fn := g.mod.ExportedFunction(name)
	if fn == nil {
		return false, nil
	}
	res, err := fn.Call(ctx)
	if err != nil {
		return false, err
	}
	if len(res) == 0 {
		// Exported under the right name but the wrong signature — an
		// untrusted guest, not a contract the host can rely on. Treat it
		// the same as "doesn't implement this" rather than panicking.
		return false, nil
	}
	return res[0] != 0, nil
}

func (g *Guest) callOptionalF64(ctx context.Context, name string) (float64, error) {
	fn := g.mod.ExportedFunction(name)
	if fn == nil {
		return math.NaN(), nil
	}
	res, err := fn.Call(ctx)
	if err != nil {
		return math.NaN(), err
	}
	if len(res) == 0 {
		// Same mismatched-signature hazard as callOptionalBool: a guest
		// can export game_time with no return value.
		return math.NaN(), nil
	}
	return api.DecodeF64(res[0]), nil
}
