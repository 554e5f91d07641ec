// Package targetproc implements the target-process access layer: process
// discovery by name, module enumeration, cross-process memory reads,
// memory-region enumeration, and signature scanning.
package targetproc

import (
	"fmt"

	"github.com/corvid-run/splitrt/internal/sig"
)

// Region describes one mapped range of the target's address space.
type Region struct {
	Start, End uint64
	Readable   bool
	Path       string // backing file, "" for anonymous mappings
}

func (r Region) size() int {
	n := r.End - r.Start
	if n > 1<<31 {
		// Guard against a malformed /proc/maps line turning into a
		// multi-gigabyte scratch allocation.
		return 1 << 31
	}
	return int(n)
}

// backend is the platform-specific half of Process: everything that
// actually talks to the OS. Process itself holds the backend-independent
// bookkeeping (modules map, bitness) built once at open time.
type backend interface {
	readAt(addr uint64, buf []byte) error
	regions() ([]Region, error)
	close() error
}

// Process is a live, hooked handle onto a target OS process.
type Process struct {
	PID     int
	bitness int // 32 or 64, determines pointer-path arithmetic width
	modules map[string]uint64
	be      backend
}

// Bitness reports the pointer width (32 or 64) in effect for this process,
// satisfying pointer.Reader.
func (p *Process) Bitness() int { return p.bitness }

// Open resolves the best-matching running process named name (ties broken
// by most recently started, per spec.md §4.2) and opens a read handle onto
// it, building its module map from the first enumeration of its mapped
// regions (first-wins by map iteration order, per spec.md §4.2).
func Open(name string) (*Process, error) {
	return openPlatform(name)
}

// Close releases the process's read handle. Safe to call on an already
// closed Process.
func (p *Process) Close() error {
	if p.be == nil {
		return nil
	}
	return p.be.close()
}

// ModuleAddress returns the base address of a loaded module by the name
// the OS reports it under.
func (p *Process) ModuleAddress(name string) (uint64, error) {
	addr, ok := p.modules[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrModuleNotFound, name)
	}
	return addr, nil
}

// ReadAt copies len(buf) bytes starting at addr from the target's address
// space.
func (p *Process) ReadAt(addr uint64, buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	if err := p.be.readAt(addr, buf); err != nil {
		return fmt.Errorf("%w: %v", ErrReadMemory, err)
	}
	return nil
}

// Regions enumerates all mapped regions of the target's address space.
func (p *Process) Regions() ([]Region, error) {
	return p.be.regions()
}

// ScanSignature compiles sig and scans every readable region in ascending
// address order for the first match, reusing one scratch buffer across
// regions. A region that fails to read is skipped, not fatal — the scan
// must survive guarded or unmapped pages (spec.md §4.2 rationale).
func (p *Process) ScanSignature(signature string) (uint64, bool) {
	pat := sig.Compile(signature)
	if pat.Len() == 0 {
		return 0, false
	}

	regions, err := p.Regions()
	if err != nil {
		return 0, false
	}

	var scratch []byte
	for _, r := range regions {
		if !r.Readable || r.size() < pat.Len() {
			continue
		}
		if cap(scratch) < r.size() {
			scratch = make([]byte, r.size())
		}
		buf := scratch[:r.size()]
		if err := p.be.readAt(r.Start, buf); err != nil {
			continue
		}
		if off := pat.Find(buf); off >= 0 {
			return r.Start + uint64(off), true
		}
	}
	return 0, false
}
