// Package hostabi implements the eighteen host functions a guest imports
// (spec.md §4.4): string marshaling, the pointer-path registry, typed
// memory reads, signature scanning, tick-rate control, and logging. It is
// bound into a guest instantiation as a wazero host module named "env".
package hostabi

import (
	"context"
	"log/slog"
	"unicode/utf8"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"golang.org/x/time/rate"

	"github.com/corvid-run/splitrt/internal/pointer"
	"github.com/corvid-run/splitrt/internal/runtime"
	"github.com/corvid-run/splitrt/internal/targetproc"
)

// ModuleName is the import module name the guest's host-call declarations
// resolve against.
const ModuleName = "env"

// ProcessSource gives the host ABI module access to whatever process is
// currently hooked, without owning the tick-loop state machine itself.
// *runtime.Driver satisfies this.
type ProcessSource interface {
	Process() *targetproc.Process
}

// printMessageBurst/printMessageRate bound how often a guest's
// print_message calls actually reach the log, so a misbehaving guest
// logging every tick at 60Hz cannot flood the host's log sink.
const (
	printMessageRate  = 20 // messages per second
	printMessageBurst = 20
)

// Module is the host ABI surface bound against one runtime Environment
// and one (possibly absent) hooked process.
type Module struct {
	env     *runtime.Environment
	process ProcessSource
	logger  *slog.Logger
	limiter *rate.Limiter
}

// New returns a Module ready to instantiate as a wazero host module.
func New(env *runtime.Environment, process ProcessSource, logger *slog.Logger) *Module {
	return &Module{
		env:     env,
		process: process,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(printMessageRate), printMessageBurst),
	}
}

// Instantiate registers and instantiates the host module against rt, ready
// for a guest module to be instantiated with it as a dependency.
func (m *Module) Instantiate(ctx context.Context, rt wazero.Runtime) (api.Module, error) {
	builder := rt.NewHostModuleBuilder(ModuleName)

	builder.NewFunctionBuilder().WithFunc(m.setProcessName).Export("set_process_name")
	builder.NewFunctionBuilder().WithFunc(m.pushPointerPath).Export("push_pointer_path")
	builder.NewFunctionBuilder().WithFunc(m.pushOffset).Export("push_offset")
	builder.NewFunctionBuilder().WithFunc(m.getU8).Export("get_u8")
	builder.NewFunctionBuilder().WithFunc(m.getU16).Export("get_u16")
	builder.NewFunctionBuilder().WithFunc(m.getU32).Export("get_u32")
	builder.NewFunctionBuilder().WithFunc(m.getU64).Export("get_u64")
	builder.NewFunctionBuilder().WithFunc(m.getI8).Export("get_i8")
	builder.NewFunctionBuilder().WithFunc(m.getI16).Export("get_i16")
	builder.NewFunctionBuilder().WithFunc(m.getI32).Export("get_i32")
	builder.NewFunctionBuilder().WithFunc(m.getI64).Export("get_i64")
	builder.NewFunctionBuilder().WithFunc(m.getF32).Export("get_f32")
	builder.NewFunctionBuilder().WithFunc(m.getF64).Export("get_f64")
	builder.NewFunctionBuilder().WithFunc(m.scanSignature).Export("scan_signature")
	builder.NewFunctionBuilder().WithFunc(m.setTickRate).Export("set_tick_rate")
	builder.NewFunctionBuilder().WithFunc(m.printMessage).Export("print_message")
	builder.NewFunctionBuilder().WithFunc(m.readIntoBuf).Export("read_into_buf")
	builder.NewFunctionBuilder().WithFunc(m.setVariable).Export("set_variable")

	return builder.Instantiate(ctx)
}

// readString copies a (ptr,len) guest string out of mod's linear memory,
// validating UTF-8. A zero-length string is always valid (used for the
// absolute-pointer-path empty module name, spec.md §4.4).
func readString(mod api.Module, ptr, length uint32) (string, bool) {
	if length == 0 {
		return "", true
	}
	buf, ok := mod.Memory().Read(ptr, length)
	if !ok || !utf8.Valid(buf) {
		return "", false
	}
	return string(buf), true
}

// trap turns a config-error into a Go panic. wazero recovers panics raised
// from within a host function and surfaces them to the guest's caller as
// the call failing — the equivalent of wasmi's Trap in the original.
func trap(err error) {
	panic(err)
}

func (m *Module) setProcessName(ctx context.Context, mod api.Module, ptr, length uint32) {
	s, ok := readString(mod, ptr, length)
	if !ok {
		trap(ErrInvalidProcessName)
	}
	m.env.ProcessName = s
}

func (m *Module) pushPointerPath(ctx context.Context, mod api.Module, ptr, length, kindCode uint32) int32 {
	kind, ok := pointer.KindFromWire(uint8(kindCode))
	if !ok {
		trap(ErrInvalidPointerType)
	}
	name, ok := readString(mod, ptr, length)
	if !ok {
		trap(ErrInvalidModuleName)
	}
	return m.env.Registry.Push(name, kind)
}

func (m *Module) pushOffset(ctx context.Context, mod api.Module, id uint32, offset int64) {
	if err := m.env.Registry.PushOffset(int32(id), offset); err != nil {
		trap(ErrInvalidPointerPathID)
	}
}

// resolve looks up path id, selects old or current by the guest's current
// flag (nonzero => current, per spec.md §4.4), and checks the declared
// kind matches what the guest asked for.
func (m *Module) resolve(id, current uint32, want pointer.Kind) pointer.Value {
	p, err := m.env.Registry.Get(int32(id))
	if err != nil {
		trap(ErrInvalidPointerPathID)
	}
	v := p.Old
	if current != 0 {
		v = p.Current
	}
	if v.Kind() != want {
		trap(ErrTypeMismatch)
	}
	return v
}

func (m *Module) getU8(ctx context.Context, mod api.Module, id, current uint32) uint32 {
	v, _ := m.resolve(id, current, pointer.U8).U8()
	return uint32(v)
}

func (m *Module) getU16(ctx context.Context, mod api.Module, id, current uint32) uint32 {
	v, _ := m.resolve(id, current, pointer.U16).U16()
	return uint32(v)
}

func (m *Module) getU32(ctx context.Context, mod api.Module, id, current uint32) uint32 {
	v, _ := m.resolve(id, current, pointer.U32).U32()
	return v
}

func (m *Module) getU64(ctx context.Context, mod api.Module, id, current uint32) uint64 {
	v, _ := m.resolve(id, current, pointer.U64).U64()
	return v
}

func (m *Module) getI8(ctx context.Context, mod api.Module, id, current uint32) uint32 {
	v, _ := m.resolve(id, current, pointer.I8).I8()
	return uint32(int32(v)) // sign-extended, per the width/sign table in spec.md §4.4
}

func (m *Module) getI16(ctx context.Context, mod api.Module, id, current uint32) uint32 {
	v, _ := m.resolve(id, current, pointer.I16).I16()
	return uint32(int32(v)) // sign-extended, per the width/sign table in spec.md §4.4
}

func (m *Module) getI32(ctx context.Context, mod api.Module, id, current uint32) uint32 {
	v, _ := m.resolve(id, current, pointer.I32).I32()
	return uint32(v)
}

func (m *Module) getI64(ctx context.Context, mod api.Module, id, current uint32) uint64 {
	v, _ := m.resolve(id, current, pointer.I64).I64()
	return uint64(v)
}

func (m *Module) getF32(ctx context.Context, mod api.Module, id, current uint32) float32 {
	v, _ := m.resolve(id, current, pointer.F32).F32()
	return v
}

func (m *Module) getF64(ctx context.Context, mod api.Module, id, current uint32) float64 {
	v, _ := m.resolve(id, current, pointer.F64).F64()
	return v
}

// scanSignature runs the matcher over the currently hooked process. An
// absent process (not hooked) is not an error: it returns 0, same as "not
// found" (spec.md §4.4).
func (m *Module) scanSignature(ctx context.Context, mod api.Module, ptr, length uint32) int64 {
	sig, ok := readString(mod, ptr, length)
	if !ok {
		trap(ErrUtf8Decode)
	}
	proc := m.process.Process()
	if proc == nil {
		return 0
	}
	addr, found := proc.ScanSignature(sig)
	if !found {
		return 0
	}
	return int64(addr)
}

func (m *Module) setTickRate(ctx context.Context, mod api.Module, ticksPerSec float64) {
	m.env.SetTickRate(ticksPerSec)
}

// printMessage emits at info level under the "Auto Splitter" channel,
// throttled so a guest cannot flood the host log (spec.md §4.4 plus the
// rate-limiting addition this runtime carries).
func (m *Module) printMessage(ctx context.Context, mod api.Module, ptr, length uint32) {
	msg, ok := readString(mod, ptr, length)
	if !ok {
		trap(ErrUtf8Decode)
	}
	if !m.limiter.Allow() {
		return
	}
	if m.logger != nil {
		m.logger.Info(msg, "channel", "Auto Splitter")
	}
}

// readIntoBuf reads directly from target memory into the guest's linear
// memory. Not hooked, or a read failure, is a silent no-op (spec.md §7):
// these are opportunistic scans the guest must be able to attempt without
// killing its tick.
func (m *Module) readIntoBuf(ctx context.Context, mod api.Module, address int64, bufPtr, bufLen uint32) {
	proc := m.process.Process()
	if proc == nil {
		return
	}
	buf := make([]byte, bufLen)
	if err := proc.ReadAt(uint64(address), buf); err != nil {
		return
	}
	mod.Memory().Write(bufPtr, buf)
}

// setVariable is reserved: it publishes a named observation to the
// embedder. No embedder surface consumes it yet, so it logs at debug
// level and otherwise no-ops, per spec.md §4.4.
func (m *Module) setVariable(ctx context.Context, mod api.Module, keyPtr, keyLen, valuePtr, valueLen uint32) {
	key, ok := readString(mod, keyPtr, keyLen)
	if !ok {
		trap(ErrUtf8Decode)
	}
	value, ok := readString(mod, valuePtr, valueLen)
	if !ok {
		trap(ErrUtf8Decode)
	}
	if m.logger != nil {
		m.logger.Debug("set_variable", "key", key, "value", value)
	}
}
