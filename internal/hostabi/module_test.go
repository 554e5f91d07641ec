package hostabi

import (
	"context"
	"testing"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/corvid-run/splitrt/internal/pointer"
	"github.com/corvid-run/splitrt/internal/runtime"
	"github.com/corvid-run/splitrt/internal/targetproc"
)

type fakeProcessSource struct {
	proc *targetproc.Process
}

func (f fakeProcessSource) Process() *targetproc.Process { return f.proc }

func TestSetProcessNameAndPushPointerPath(t *testing.T) {
	env := runtime.NewEnvironment()
	m := New(env, fakeProcessSource{}, nil)

	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)
	if _, err := m.Instantiate(ctx, rt); err != nil {
		t.Fatalf("instantiate: %v", err)
	}

	guestMem := newMemoryModule(t, "game.exe")
	m.setProcessName(ctx, guestMem, 0, uint32(len("game.exe")))
	if m.env.ProcessName != "game.exe" {
		t.Fatalf("process name not set")
	}

	id := m.pushPointerPath(ctx, nil, 0, 0, uint32(pointer.U32))
	if id != 0 {
		t.Fatalf("expected first path id 0, got %d", id)
	}
	if env.Registry.Len() != 1 {
		t.Fatalf("expected one registered path, got %d", env.Registry.Len())
	}
}

func TestPushPointerPathInvalidKindTraps(t *testing.T) {
	env := runtime.NewEnvironment()
	m := New(env, fakeProcessSource{}, nil)

	defer func() {
		r := recover()
		if r != ErrInvalidPointerType {
			t.Fatalf("expected ErrInvalidPointerType panic, got %v", r)
		}
	}()
	m.pushPointerPath(context.Background(), nil, 0, 0, 255)
}

func TestGetU32RoundTrip(t *testing.T) {
	env := runtime.NewEnvironment()
	m := New(env, fakeProcessSource{}, nil)

	id := env.Registry.Push("", pointer.U32)
	p, _ := env.Registry.Get(id)
	p.Current = pointer.Decode(pointer.U32, []byte{1, 0, 0, 0})
	p.Old = pointer.Decode(pointer.U32, []byte{9, 0, 0, 0})

	if got := m.getU32(context.Background(), nil, uint32(id), 1); got != 1 {
		t.Fatalf("current: got %d, want 1", got)
	}
	if got := m.getU32(context.Background(), nil, uint32(id), 0); got != 9 {
		t.Fatalf("old: got %d, want 9", got)
	}
}

func TestGetU32TypeMismatchTraps(t *testing.T) {
	env := runtime.NewEnvironment()
	m := New(env, fakeProcessSource{}, nil)
	id := env.Registry.Push("", pointer.U16)

	defer func() {
		r := recover()
		if r != ErrTypeMismatch {
			t.Fatalf("expected ErrTypeMismatch panic, got %v", r)
		}
	}()
	m.getU32(context.Background(), nil, uint32(id), 1)
}

func TestGetInvalidPathIDTraps(t *testing.T) {
	env := runtime.NewEnvironment()
	m := New(env, fakeProcessSource{}, nil)

	defer func() {
		r := recover()
		if r != ErrInvalidPointerPathID {
			t.Fatalf("expected ErrInvalidPointerPathID panic, got %v", r)
		}
	}()
	m.getU32(context.Background(), nil, 42, 1)
}

func TestScanSignatureNotHookedReturnsZero(t *testing.T) {
	env := runtime.NewEnvironment()
	m := New(env, fakeProcessSource{proc: nil}, nil)

	guestMem := newMemoryModule(t, "DE AD BE EF")
	addr := m.scanSignature(context.Background(), guestMem, 0, uint32(len("DE AD BE EF")))
	if addr != 0 {
		t.Fatalf("expected 0 when not hooked, got %d", addr)
	}
}

func TestSetTickRateDelegatesToEnvironment(t *testing.T) {
	env := runtime.NewEnvironment()
	m := New(env, fakeProcessSource{}, nil)
	m.setTickRate(context.Background(), nil, 60)
	if env.TickRate.Nanoseconds() != 16666667 {
		t.Fatalf("expected 16666667ns, got %d", env.TickRate.Nanoseconds())
	}
}

// newMemoryModule instantiates a tiny module exporting its own linear
// memory pre-populated with data at offset 0, so string-marshaling host
// functions can be exercised against real guest memory.
func newMemoryModule(t *testing.T, data string) api.Module {
	t.Helper()
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	t.Cleanup(func() { rt.Close(ctx) })

	mod, err := rt.NewHostModuleBuilder("mem_fixture").
		ExportMemory("memory", 1).
		Instantiate(ctx)
	if err != nil {
		t.Fatalf("instantiate memory fixture: %v", err)
	}
	if !mod.Memory().Write(0, []byte(data)) {
		t.Fatalf("write fixture memory")
	}
	return mod
}
