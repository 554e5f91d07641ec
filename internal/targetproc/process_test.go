package targetproc

import (
	"errors"
	"testing"
)

var errUnmapped = errors.New("unmapped")

type fakeBackend struct {
	mem map[uint64][]byte
	rgn []Region
}

func (f *fakeBackend) readAt(addr uint64, buf []byte) error {
	src, ok := f.mem[addr]
	if !ok || len(src) < len(buf) {
		return errUnmapped
	}
	copy(buf, src[:len(buf)])
	return nil
}

func (f *fakeBackend) regions() ([]Region, error) { return f.rgn, nil }
func (f *fakeBackend) close() error               { return nil }

func TestProcessModuleAddress(t *testing.T) {
	p := &Process{modules: map[string]uint64{"game.exe": 0x400000}}
	addr, err := p.ModuleAddress("game.exe")
	if err != nil || addr != 0x400000 {
		t.Fatalf("expected 0x400000, got %#x err=%v", addr, err)
	}

	if _, err := p.ModuleAddress("missing.exe"); err == nil {
		t.Fatalf("expected ErrModuleNotFound")
	}
}

func TestProcessScanSignature(t *testing.T) {
	be := &fakeBackend{
		mem: map[uint64][]byte{
			0x10000: {0xDE, 0xAD, 0xBE, 0xEF, 0x41, 0x42, 0x43},
		},
		rgn: []Region{
			{Start: 0x10000, End: 0x10007, Readable: true},
		},
	}
	p := &Process{be: be}

	addr, ok := p.ScanSignature("DE ?? BE EF")
	if !ok || addr != 0x10000 {
		t.Fatalf("expected match at 0x10000, got addr=%#x ok=%v", addr, ok)
	}

	_, ok = p.ScanSignature("CA FE")
	if ok {
		t.Fatalf("expected no match")
	}
}

func TestParseMapsLine(t *testing.T) {
	r, ok := parseMapsLine("00400000-00452000 r-xp 00000000 08:02 173521      /usr/bin/game.exe")
	if !ok {
		t.Fatalf("expected line to parse")
	}
	if r.Start != 0x400000 || r.End != 0x452000 || !r.Readable || r.Path != "/usr/bin/game.exe" {
		t.Fatalf("unexpected parse result: %+v", r)
	}

	if _, ok := parseMapsLine("not a maps line"); ok {
		t.Fatalf("expected malformed line to fail to parse")
	}
}
