package pointer

import (
	"encoding/binary"
	"math"
)

// Value holds one reading of a pointer path's declared Kind. The kind never
// changes after creation (invariant P2); only the raw bytes do.
type Value struct {
	kind Kind
	raw  [8]byte // little-endian encoded bytes, meaningful through kind.Size()
}

// Zero returns the zero-initialized value of the given kind, as created by
// push_pointer_path before any tick has run.
func Zero(k Kind) Value {
	return Value{kind: k}
}

// Kind reports the value's declared kind.
func (v Value) Kind() Kind { return v.kind }

// Decode returns a Value of kind k built from a little-endian encoded buffer. The
// buffer must be exactly kind.Size() bytes (String is never decoded this
// way — callers must reject String leaves before calling Decode).
func Decode(k Kind, buf []byte) Value {
	v := Value{kind: k}
	copy(v.raw[:], buf)
	return v
}

func (v Value) u64() uint64 { return binary.LittleEndian.Uint64(v.raw[:]) }

// U8 returns the value as uint8 if the declared kind is U8.
func (v Value) U8() (uint8, bool) {
	if v.kind != U8 {
		return 0, false
	}
	return v.raw[0], true
}

// U16 returns the value as uint16 if the declared kind is U16.
func (v Value) U16() (uint16, bool) {
	if v.kind != U16 {
		return 0, false
	}
	return binary.LittleEndian.Uint16(v.raw[:2]), true
}

// U32 returns the value as uint32 if the declared kind is U32.
func (v Value) U32() (uint32, bool) {
	if v.kind != U32 {
		return 0, false
	}
	return binary.LittleEndian.Uint32(v.raw[:4]), true
}

// U64 returns the value as uint64 if the declared kind is U64.
func (v Value) U64() (uint64, bool) {
	if v.kind != U64 {
		return 0, false
	}
	return v.u64(), true
}

// I8 returns the value as int8 if the declared kind is I8.
func (v Value) I8() (int8, bool) {
	if v.kind != I8 {
		return 0, false
	}
	return int8(v.raw[0]), true
}

// I16 returns the value as int16 if the declared kind is I16.
func (v Value) I16() (int16, bool) {
	if v.kind != I16 {
		return 0, false
	}
	return int16(binary.LittleEndian.Uint16(v.raw[:2])), true
}

// I32 returns the value as int32 if the declared kind is I32.
func (v Value) I32() (int32, bool) {
	if v.kind != I32 {
		return 0, false
	}
	return int32(binary.LittleEndian.Uint32(v.raw[:4])), true
}

// I64 returns the value as int64 if the declared kind is I64.
func (v Value) I64() (int64, bool) {
	if v.kind != I64 {
		return 0, false
	}
	return int64(v.u64()), true
}

// F32 returns the value as float32 if the declared kind is F32.
func (v Value) F32() (float32, bool) {
	if v.kind != F32 {
		return 0, false
	}
	bits := binary.LittleEndian.Uint32(v.raw[:4])
	return math.Float32frombits(bits), true
}

// F64 returns the value as float64 if the declared kind is F64.
func (v Value) F64() (float64, bool) {
	if v.kind != F64 {
		return 0, false
	}
	return math.Float64frombits(v.u64()), true
}
