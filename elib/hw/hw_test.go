// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hw

import (
	"encoding/binary"
	"testing"
)

func TestMmio(t *testing.T) {
	b := make([]byte, 0x100)
	m := NewMmio(b)
	m.Write32(0x30, 0x12345678)
	m.Write16(0x3c, 0xc07f)
	m.Write8(0x37, 0x0c)

	if got, want := binary.LittleEndian.Uint32(b[0x30:]), uint32(0x12345678); got != want {
		t.Errorf("write32: got 0x%x want 0x%x", got, want)
	}
	if got, want := m.Read32(0x30), uint32(0x12345678); got != want {
		t.Errorf("read32: got 0x%x want 0x%x", got, want)
	}
	if got, want := m.Read16(0x3c), uint16(0xc07f); got != want {
		t.Errorf("read16: got 0x%x want 0x%x", got, want)
	}
	if got, want := m.Read8(0x37), uint8(0x0c); got != want {
		t.Errorf("read8: got 0x%x want 0x%x", got, want)
	}
	if got, want := m.Len(), uint(0x100); got != want {
		t.Errorf("len: got %d want %d", got, want)
	}
}

func expectPanic(t *testing.T, what string, f func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Errorf("%s: no panic", what)
		}
	}()
	f()
}

func TestMmioBounds(t *testing.T) {
	m := NewMmio(make([]byte, 0x40))
	expectPanic(t, "past end", func() { m.Read32(0x40) })
	expectPanic(t, "straddle end", func() { m.Write16(0x3f, 0) })
	expectPanic(t, "misaligned", func() { m.Read32(0x2) })
	m.Read8(0x3f)
}

func TestDmaMem(t *testing.T) {
	m := &DmaMem{Data: make([]byte, 0x1000), Phys: 0x7f000000}
	if got, want := m.PhysAt(0x600), uint64(0x7f000600); got != want {
		t.Errorf("phys: got 0x%x want 0x%x", got, want)
	}
	if got, want := m.String(), "{dma 0x7f000000-0x7f000fff}"; got != want {
		t.Errorf("got %s want %s", got, want)
	}
	var h DmaHeap
	if err := h.Free(nil); err != nil {
		t.Error(err)
	}
	if _, err := h.Alloc(huge_page_size + 1); err != ErrDmaTooBig {
		t.Errorf("alloc: got %v want %v", err, ErrDmaTooBig)
	}
	if got := h.InUse(); got != 0 {
		t.Errorf("in use: got %d want 0", got)
	}
}
