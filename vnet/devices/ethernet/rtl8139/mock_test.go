// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rtl8139

import (
	"github.com/platinasystems/drv8139/elib/hw"
	"github.com/platinasystems/drv8139/elib/hw/pci"
	"github.com/platinasystems/drv8139/vnet"

	"encoding/binary"
	"errors"
	"sync"
	"testing"
	"time"
)

func init() { sleep = func(time.Duration) {} }

type access struct {
	write bool
	off   uint
	width uint
	v     uint32
}

// Register bank standing in for the chip.  Records every access.
type mockRegs struct {
	// Interrupt may run on another goroutine.
	mu  sync.Mutex
	mem [n_reg_bytes]byte
	log []access

	// Reset bit never clears.
	reset_stuck bool
	// Frames chip has placed in receive ring; each CAPR write consumes one.
	pending int
	// Per-offset read overrides.
	on_read map[uint]func() uint32
}

func newMockRegs() *mockRegs {
	r := &mockRegs{on_read: make(map[uint]func() uint32)}
	copy(r.mem[mac0:], testMac[:])
	return r
}

func (r *mockRegs) read(o, n uint) (v uint32) {
	r.mu.Lock()
	f, ok := r.on_read[o]
	r.mu.Unlock()
	// Hooks run unlocked so they may touch the device.
	if ok {
		v = f()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !ok {
		switch n {
		case 1:
			v = uint32(r.mem[o])
		case 2:
			v = uint32(binary.LittleEndian.Uint16(r.mem[o:]))
		case 4:
			v = binary.LittleEndian.Uint32(r.mem[o:])
		}
		if o == uint(chip_cmd) && r.pending == 0 {
			v |= rx_buf_empty
		}
	}
	r.log = append(r.log, access{off: o, width: n, v: v})
	return
}

func (r *mockRegs) store(o, n uint, v uint32) {
	switch n {
	case 1:
		r.mem[o] = uint8(v)
	case 2:
		binary.LittleEndian.PutUint16(r.mem[o:], uint16(v))
	case 4:
		binary.LittleEndian.PutUint32(r.mem[o:], v)
	}
}

func (r *mockRegs) write(o, n uint, v uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log = append(r.log, access{write: true, off: o, width: n, v: v})
	switch reg(o) {
	case chip_cmd:
		if !r.reset_stuck {
			v &^= cmd_reset
		}
		if v&cmd_rx_enb == 0 {
			r.pending = 0
		}
		v &^= rx_buf_empty
	case intr_status:
		// Write 1 to clear.
		v = uint32(binary.LittleEndian.Uint16(r.mem[o:])) &^ v
	case rx_buf_ptr:
		if r.pending > 0 {
			r.pending--
		}
	}
	r.store(o, n, v)
}

func (r *mockRegs) Read8(o uint) uint8       { return uint8(r.read(o, 1)) }
func (r *mockRegs) Read16(o uint) uint16     { return uint16(r.read(o, 2)) }
func (r *mockRegs) Read32(o uint) uint32     { return r.read(o, 4) }
func (r *mockRegs) Write8(o uint, v uint8)   { r.write(o, 1, uint32(v)) }
func (r *mockRegs) Write16(o uint, v uint16) { r.write(o, 2, uint32(v)) }
func (r *mockRegs) Write32(o uint, v uint32) { r.write(o, 4, v) }

// Value as seen by chip, bypassing access log.
func (r *mockRegs) peek8(x reg) uint8   { return uint8(r.peek(x, 1)) }
func (r *mockRegs) peek16(x reg) uint16 { return uint16(r.peek(x, 2)) }
func (r *mockRegs) peek32(x reg) uint32 { return r.peek(x, 4) }

func (r *mockRegs) peek(x reg, n uint) uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch n {
	case 1:
		return uint32(r.mem[x])
	case 2:
		return uint32(binary.LittleEndian.Uint16(r.mem[x:]))
	}
	return binary.LittleEndian.Uint32(r.mem[x:])
}

// Chip side register update: no log, no side effects.
func (r *mockRegs) poke8(x reg, v uint8)   { r.poke(x, 1, uint32(v)) }
func (r *mockRegs) poke16(x reg, v uint16) { r.poke(x, 2, uint32(v)) }
func (r *mockRegs) poke32(x reg, v uint32) { r.poke(x, 4, v) }

func (r *mockRegs) poke(x reg, n uint, v uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.store(uint(x), n, v)
}

func (r *mockRegs) clear_log() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log = r.log[:0]
}

func (r *mockRegs) count(write bool, x reg) (n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.log {
		if a.write == write && a.off == uint(x) {
			n++
		}
	}
	return
}

var testMac = [6]byte{0x52, 0x54, 0x00, 0x12, 0x34, 0x56}

// Bus device with accounting of everything the driver acquires.
type mockPci struct {
	pci.Device
	regs *mockRegs

	enabled, master, reserved, mapped bool

	// Someone else holds the regions.
	busy     bool
	map_err  error
	irq_err  error
	// Fail nth DmaAlloc (1 based); 0 never fails.
	fail_alloc int
	next_phys  uint64
	n_alloc    int
	n_free     int
	live       map[*hw.DmaMem]bool

	handler pci.InterruptHandler
	calls   []string
}

func newMockPci() *mockPci {
	p := &mockPci{
		regs:      newMockRegs(),
		next_phys: 0x1000_0000,
		live:      make(map[*hw.DmaMem]bool),
	}
	p.Addr = pci.BusAddress{Bus: 2, Slot: 1}
	p.ID = DeviceID
	p.Class = pci.Network_Ethernet
	p.Resources = []pci.Resource{
		{Index: 0, Base: 0xc000, Size: 0x100, Flags: pci.ResourceIO},
		{Index: 1, Base: 0xfebf1000, Size: 0x100, Flags: pci.ResourceMem},
	}
	p.InterruptLine = 11
	return p
}

func (p *mockPci) call(s string) { p.calls = append(p.calls, s) }

func (p *mockPci) called(s string) (n int) {
	for _, c := range p.calls {
		if c == s {
			n++
		}
	}
	return
}

func (p *mockPci) GetDevice() *pci.Device { return &p.Device }

func (p *mockPci) Enable() error {
	p.call("enable")
	p.enabled = true
	return nil
}

func (p *mockPci) Disable() error {
	p.call("disable")
	p.enabled = false
	return nil
}

func (p *mockPci) RequestRegions(owner string) error {
	p.call("request regions")
	if p.busy || p.reserved {
		return pci.ErrRegionBusy
	}
	p.reserved = true
	return nil
}

func (p *mockPci) ReleaseRegions() error {
	p.call("release regions")
	p.reserved = false
	return nil
}

func (p *mockPci) SetMaster(enable bool) error {
	p.call("master")
	p.master = enable
	return nil
}

func (p *mockPci) MapResource(bar uint) (hw.Regs, error) {
	p.call("map")
	if p.map_err != nil {
		return nil, p.map_err
	}
	p.mapped = true
	return p.regs, nil
}

func (p *mockPci) UnmapResource(bar uint) error {
	p.call("unmap")
	if !p.mapped {
		return pci.ErrNotMapped
	}
	p.mapped = false
	return nil
}

func (p *mockPci) DmaAlloc(n uint) (*hw.DmaMem, error) {
	p.n_alloc++
	if p.n_alloc == p.fail_alloc {
		return nil, errors.New("no huge pages")
	}
	m := &hw.DmaMem{Data: make([]byte, n), Phys: p.next_phys}
	p.next_phys += uint64(n+0xfff) &^ 0xfff
	p.live[m] = true
	return m, nil
}

func (p *mockPci) DmaFree(m *hw.DmaMem) error {
	if !p.live[m] {
		return errors.New("free of unknown dma memory")
	}
	delete(p.live, m)
	p.n_free++
	return nil
}

func (p *mockPci) in_use() int { return len(p.live) }

func (p *mockPci) RequestIrq(name string, h pci.InterruptHandler) error {
	p.call("request irq")
	if p.irq_err != nil {
		return p.irq_err
	}
	if p.handler != nil {
		return pci.ErrIrqBusy
	}
	p.handler = h
	return nil
}

func (p *mockPci) FreeIrq() error {
	p.call("free irq")
	p.handler = nil
	return nil
}

type mockBus []pci.Devicer

func (b mockBus) Devices() ([]pci.Devicer, error) { return b, nil }

func probe(t *testing.T, p *mockPci, c *Config) (*Dev, *vnet.Vnet) {
	t.Helper()
	v := vnet.New()
	d, err := Probe(v, p, c)
	if err != nil {
		t.Fatal(err)
	}
	return d, v
}

func open(t *testing.T, c *Config) (*Dev, *mockPci, *vnet.Vnet) {
	t.Helper()
	p := newMockPci()
	d, v := probe(t, p, c)
	if err := v.SetAdminUp(d.Name(), true); err != nil {
		t.Fatal(err)
	}
	p.regs.clear_log()
	return d, p, v
}

// Place a frame in receive ring the way the chip does; returns next offset.
func put_rx(d *Dev, off uint, status uint16, payload []byte) uint {
	b := d.rx.Data[off:]
	size := uint(len(payload)) + 4
	binary.LittleEndian.PutUint16(b[0:], status)
	binary.LittleEndian.PutUint16(b[2:], uint16(size))
	copy(b[4:], payload)
	return (off + size + 4 + 3) &^ 3
}
