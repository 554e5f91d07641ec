package pointer

import (
	"encoding/binary"
	"errors"
	"testing"
)

// fakeReader models a tiny flat target-process address space for tests.
type fakeReader struct {
	bitness int
	modules map[string]uint64
	mem     map[uint64][]byte
}

func newFakeReader(bitness int) *fakeReader {
	return &fakeReader{bitness: bitness, modules: map[string]uint64{}, mem: map[uint64][]byte{}}
}

func (f *fakeReader) ModuleAddress(name string) (uint64, error) {
	addr, ok := f.modules[name]
	if !ok {
		return 0, errors.New("module not found")
	}
	return addr, nil
}

func (f *fakeReader) putU64(addr uint64, v uint64) {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	f.mem[addr] = b
}

func (f *fakeReader) putU32(addr uint64, v uint32) {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	f.mem[addr] = b
}

func (f *fakeReader) ReadAt(addr uint64, buf []byte) error {
	src, ok := f.mem[addr]
	if !ok || len(src) < len(buf) {
		return errors.New("unmapped")
	}
	copy(buf, src[:len(buf)])
	return nil
}

func (f *fakeReader) Bitness() int { return f.bitness }

func TestEvaluatorScenarioS1AndS2(t *testing.T) {
	r := newFakeReader(64)
	r.modules["game.exe"] = 0x400000
	r.putU64(0x400100, 0x500000)
	r.putU32(0x500020, 7)

	reg := NewRegistry()
	id := reg.Push("game.exe", U32)
	reg.PushOffset(id, 0x100)
	reg.PushOffset(id, 0x20)

	e := NewEvaluator()
	if err := e.EvaluateFirstTick(reg, r); err != nil {
		t.Fatalf("first tick: %v", err)
	}
	p, _ := reg.Get(id)
	cur, _ := p.Current.U32()
	old, _ := p.Old.U32()
	if cur != 7 || old != 7 {
		t.Fatalf("S1: expected current=old=7, got current=%d old=%d", cur, old)
	}

	// S2: value changes to 9, steady tick rotates old<-7, current<-9.
	r.putU32(0x500020, 9)
	if err := e.EvaluateSteady(reg, r); err != nil {
		t.Fatalf("steady tick: %v", err)
	}
	cur, _ = p.Current.U32()
	old, _ = p.Old.U32()
	if cur != 9 || old != 7 {
		t.Fatalf("S2: expected current=9 old=7, got current=%d old=%d", cur, old)
	}
}

func TestEvaluatorZeroOffsetsResolvesToBase(t *testing.T) {
	r := newFakeReader(64)
	r.modules["mod"] = 0x1234
	r.putU32(0x1234, 42)

	reg := NewRegistry()
	id := reg.Push("mod", U32) // zero offsets: never call PushOffset

	e := NewEvaluator()
	if err := e.EvaluateFirstTick(reg, r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p, _ := reg.Get(id)
	v, _ := p.Current.U32()
	if v != 42 {
		t.Fatalf("expected base address itself to be read, got %d", v)
	}
}

func TestEvaluatorWidth32Wrapping(t *testing.T) {
	r := newFakeReader(32)
	r.modules["m"] = 0xFFFFFFF0
	r.putU32(0x10, 123) // 0xFFFFFFF0 + 0x20 wraps past the 32-bit max to 0x10

	reg := NewRegistry()
	id := reg.Push("m", U32)
	reg.PushOffset(id, 0x20)

	e := NewEvaluator()
	if err := e.EvaluateFirstTick(reg, r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p, _ := reg.Get(id)
	v, _ := p.Current.U32()
	if v != 123 {
		t.Fatalf("expected 123, got %d", v)
	}
}

func TestEvaluatorStringLeafNotImplemented(t *testing.T) {
	r := newFakeReader(64)
	r.modules["m"] = 0x1000

	reg := NewRegistry()
	id := reg.Push("m", String)
	_ = id

	e := NewEvaluator()
	if err := e.EvaluateFirstTick(reg, r); !errors.Is(err, ErrStringLeafNotImplemented) {
		t.Fatalf("expected ErrStringLeafNotImplemented, got %v", err)
	}
}

func TestEvaluatorMissingModuleFails(t *testing.T) {
	r := newFakeReader(64)
	reg := NewRegistry()
	id := reg.Push("nope", U8)
	_ = id

	e := NewEvaluator()
	if err := e.EvaluateFirstTick(reg, r); err == nil {
		t.Fatalf("expected error for missing module")
	}
}
