package pointer

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrStringLeafNotImplemented is returned when a path's declared kind is
// String — the spec reserves string leaves without committing to a wire
// format, so reading one is a hard failure rather than a guess.
var ErrStringLeafNotImplemented = errors.New("string pointer leaves are not implemented")

// Reader is the subset of the target-process adapter the evaluator needs:
// module base-address lookup, little-endian reads, and the pointer width
// in effect for the hooked process.
type Reader interface {
	ModuleAddress(name string) (uint64, error)
	ReadAt(addr uint64, buf []byte) error
	Bitness() int // 32 or 64
}

// Evaluator walks pointer paths against a Reader each tick.
type Evaluator struct{}

// NewEvaluator returns a ready-to-use Evaluator. It holds no state of its
// own; all state lives in the Registry it is given.
func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// EvaluateFirstTick reads every path's leaf once and seeds both Current and
// Old with that reading (P4: first-tick seeding, current == old).
func (e *Evaluator) EvaluateFirstTick(reg *Registry, r Reader) error {
	for _, p := range reg.All() {
		v, err := e.walk(p, r)
		if err != nil {
			return err
		}
		p.Old = v
		p.Current = v
	}
	return nil
}

// EvaluateSteady re-reads every path's leaf, rotating the prior Current
// into Old and storing the fresh reading into Current (P3).
func (e *Evaluator) EvaluateSteady(reg *Registry, r Reader) error {
	for _, p := range reg.All() {
		v, err := e.walk(p, r)
		if err != nil {
			return err
		}
		p.Old = p.Current
		p.Current = v
	}
	return nil
}

// walk resolves a path's address and reads its typed leaf.
func (e *Evaluator) walk(p *Path, r Reader) (Value, error) {
	var base uint64
	if p.ModuleName != "" {
		b, err := r.ModuleAddress(p.ModuleName)
		if err != nil {
			return Value{}, fmt.Errorf("resolve module %q: %w", p.ModuleName, err)
		}
		base = b
	}

	width := r.Bitness() / 8
	addr := base

	if len(p.Offsets) > 0 {
		last := len(p.Offsets) - 1
		for i, off := range p.Offsets {
			addr = addWrapping(addr, off, width)
			if i == last {
				break
			}
			ptrBuf := make([]byte, width)
			if err := r.ReadAt(addr, ptrBuf); err != nil {
				return Value{}, fmt.Errorf("deref at %#x: %w", addr, err)
			}
			addr = decodeUint(ptrBuf)
		}
	}

	kind := p.Current.Kind()
	if kind == String {
		return Value{}, ErrStringLeafNotImplemented
	}
	leaf := make([]byte, kind.Size())
	if err := r.ReadAt(addr, leaf); err != nil {
		return Value{}, fmt.Errorf("read leaf at %#x: %w", addr, err)
	}
	return Decode(kind, leaf), nil
}

// addWrapping adds a signed 64-bit offset to addr using wrapping signed
// arithmetic at the given pointer width (4 or 8 bytes).
func addWrapping(addr uint64, offset int64, width int) uint64 {
	if width == 4 {
		return uint64(uint32(int32(uint32(addr)) + int32(offset)))
	}
	return uint64(int64(addr) + offset)
}

// decodeUint little-endian decodes an unsigned pointer value of the given
// width (4 or 8 bytes read from the target).
func decodeUint(buf []byte) uint64 {
	if len(buf) == 4 {
		return uint64(binary.LittleEndian.Uint32(buf))
	}
	return binary.LittleEndian.Uint64(buf)
}
