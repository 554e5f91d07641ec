package pointer

import "errors"

// ErrInvalidPointerPathID is returned when a guest references a path id
// that was never assigned by Push.
var ErrInvalidPointerPathID = errors.New("invalid pointer path id")

// Path is a module-relative (or absolute) chain of offsets terminating in
// a typed leaf value, plus the two most recent readings of that leaf.
type Path struct {
	ModuleName string
	Offsets    []int64
	Current    Value
	Old        Value
}

// Registry is the append-only vector of declared pointer paths. Path
// identity is the insertion index: stable and monotonically increasing,
// never reused, never deleted (P1).
type Registry struct {
	paths []*Path
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Push creates a new path with empty offsets and a zero-initialized typed
// value, returning its id (the count of paths registered before this one).
func (r *Registry) Push(moduleName string, kind Kind) int32 {
	id := int32(len(r.paths))
	z := Zero(kind)
	r.paths = append(r.paths, &Path{
		ModuleName: moduleName,
		Current:    z,
		Old:        z,
	})
	return id
}

// PushOffset appends an offset to the path identified by id.
func (r *Registry) PushOffset(id int32, offset int64) error {
	p, err := r.get(id)
	if err != nil {
		return err
	}
	p.Offsets = append(p.Offsets, offset)
	return nil
}

// Get returns the path at id, or ErrInvalidPointerPathID if id is out of
// the append-only vector's current bounds.
func (r *Registry) Get(id int32) (*Path, error) {
	return r.get(id)
}

func (r *Registry) get(id int32) (*Path, error) {
	if id < 0 || int(id) >= len(r.paths) {
		return nil, ErrInvalidPointerPathID
	}
	return r.paths[id], nil
}

// Len returns the number of registered paths.
func (r *Registry) Len() int {
	return len(r.paths)
}

// All returns the registered paths in insertion order. The slice and its
// elements are owned by the registry; callers must not retain pointers
// across a tick boundary that might mutate them concurrently (there is
// none — the runtime is single-threaded, see the concurrency model).
func (r *Registry) All() []*Path {
	return r.paths
}
