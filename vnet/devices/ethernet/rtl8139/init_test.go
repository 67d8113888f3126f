// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rtl8139

import (
	"github.com/platinasystems/drv8139/elib/hw/pci"
	"github.com/platinasystems/drv8139/vnet"
	"github.com/platinasystems/drv8139/vnet/ethernet"

	"errors"
	"strings"
	"testing"
	"time"
)

func TestFlushedWrite(t *testing.T) {
	r := newMockRegs()
	d := &Dev{regs: r}
	rx_buf.set32_flush(d, 0x12345678)
	chip_cmd.set8_flush(d, cmd_rx_enb)
	intr_mask.set16_flush(d, 0x1)
	want := []access{
		{write: true, off: uint(rx_buf), width: 4, v: 0x12345678},
		{off: uint(rx_buf), width: 4, v: 0x12345678},
		{write: true, off: uint(chip_cmd), width: 1, v: cmd_rx_enb},
		{off: uint(chip_cmd), width: 1, v: cmd_rx_enb | rx_buf_empty},
		{write: true, off: uint(intr_mask), width: 2, v: 1},
		{off: uint(intr_mask), width: 2, v: 1},
	}
	if got, want := len(r.log), len(want); got != want {
		t.Fatalf("accesses: got %d want %d", got, want)
	}
	for i := range want {
		if got, want := r.log[i], want[i]; got != want {
			t.Errorf("access %d: got %+v want %+v", i, got, want)
		}
	}

	r.clear_log()
	tx_status(2).set32(d, 1)
	if got, want := len(r.log), 1; got != want {
		t.Errorf("posted write: got %d accesses want %d", got, want)
	}
	if got, want := r.log[0].off, uint(0x18); got != want {
		t.Errorf("tx_status(2): got 0x%x want 0x%x", got, want)
	}
}

func TestProbe(t *testing.T) {
	p := newMockPci()
	d, v := probe(t, p, nil)
	if got, want := d.State(), Probed; got != want {
		t.Errorf("state: got %v want %v", got, want)
	}
	if got, want := d.Address(), ethernet.Address(testMac); got != want {
		t.Errorf("address: got %v want %v", &got, &want)
	}
	if got, want := d.Name(), "enp2s1"; got != want {
		t.Errorf("name: got %s want %s", got, want)
	}
	if got, want := d.Irq(), uint(11); got != want {
		t.Errorf("irq: got %d want %d", got, want)
	}
	if d.ResetErr() != nil {
		t.Errorf("reset: %v", d.ResetErr())
	}
	if !p.enabled || !p.reserved || !p.master || !p.mapped {
		t.Errorf("enabled %v reserved %v master %v mapped %v", p.enabled, p.reserved, p.master, p.mapped)
	}
	h, ok := v.HwIfByName("enp2s1")
	if !ok {
		t.Fatal("not registered")
	}
	if got, want := h.Broadcast(), ethernet.BroadcastAddr; got != want {
		t.Errorf("broadcast: got %v want %v", &got, &want)
	}
	if !h.QueueStopped() {
		t.Error("queue running before open")
	}
	if got, want := strings.Join(p.calls, ","), "enable,request regions,master,map"; got != want {
		t.Errorf("calls: got %s want %s", got, want)
	}
}

func TestProbeName(t *testing.T) {
	c := DefaultConfig()
	c.Name = "eth7"
	d, _ := probe(t, newMockPci(), c)
	if got, want := d.Name(), "eth7"; got != want {
		t.Errorf("got %s want %s", got, want)
	}
	a := pci.BusAddress{Domain: 1, Bus: 3, Slot: 0, Fn: 2}
	if got, want := default_name(&a), "P1enp3s0f2"; got != want {
		t.Errorf("got %s want %s", got, want)
	}
}

func checkUnwound(t *testing.T, p *mockPci, v *vnet.Vnet) {
	t.Helper()
	if p.reserved || p.mapped || p.enabled {
		t.Errorf("left reserved %v mapped %v enabled %v", p.reserved, p.mapped, p.enabled)
	}
	n := 0
	v.ForeachHwIf(func(*vnet.HwIf) { n++ })
	if n != 0 {
		t.Errorf("%d interfaces registered", n)
	}
}

func TestProbePortIO(t *testing.T) {
	p := newMockPci()
	p.Resources[1].Flags = pci.ResourceIO
	v := vnet.New()
	d, err := Probe(v, p, nil)
	if d != nil {
		t.Error("device returned on failure")
	}
	if !errors.Is(err, ErrMapFailure) {
		t.Errorf("got %v want %v", err, ErrMapFailure)
	}
	if got := p.called("request regions"); got != 0 {
		t.Errorf("regions requested %d times", got)
	}
	checkUnwound(t, p, v)
}

func TestProbeRegionBusy(t *testing.T) {
	p := newMockPci()
	p.busy = true
	v := vnet.New()
	_, err := Probe(v, p, nil)
	if got, want := KindOf(err), ResourceUnavailable; got != want {
		t.Errorf("got %v want %v", got, want)
	}
	if !errors.Is(err, pci.ErrRegionBusy) {
		t.Errorf("bus error not wrapped: %v", err)
	}
	checkUnwound(t, p, v)
}

func TestProbeMapFailure(t *testing.T) {
	p := newMockPci()
	p.map_err = errors.New("mmap: no such device")
	v := vnet.New()
	_, err := Probe(v, p, nil)
	if got, want := KindOf(err), MapFailure; got != want {
		t.Errorf("got %v want %v", got, want)
	}
	if got, want := strings.Join(p.calls, ","),
		"enable,request regions,master,map,release regions,disable"; got != want {
		t.Errorf("calls: got %s want %s", got, want)
	}
	checkUnwound(t, p, v)
}

func TestProbeDuplicateName(t *testing.T) {
	v := vnet.New()
	if _, err := Probe(v, newMockPci(), nil); err != nil {
		t.Fatal(err)
	}
	p := newMockPci()
	_, err := Probe(v, p, nil)
	if !errors.Is(err, vnet.ErrInterfaceExists) {
		t.Errorf("got %v want %v", err, vnet.ErrInterfaceExists)
	}
	if p.reserved || p.mapped || p.enabled {
		t.Error("second device not unwound")
	}
	if got, want := strings.Join(p.calls[len(p.calls)-3:], ","), "unmap,release regions,disable"; got != want {
		t.Errorf("unwind: got %s want %s", got, want)
	}
}

func TestResetTimeout(t *testing.T) {
	var sleeps int
	var slept time.Duration
	sleep = func(d time.Duration) {
		sleeps++
		slept += d
	}
	defer func() { sleep = func(time.Duration) {} }()

	p := newMockPci()
	p.regs.reset_stuck = true
	d, _ := probe(t, p, nil)

	if got, want := KindOf(d.ResetErr()), ResetTimeout; got != want {
		t.Errorf("reset: got %v want %v", got, want)
	}
	if got, want := d.State(), Probed; got != want {
		t.Errorf("state: got %v want %v", got, want)
	}
	// One read to flush reset command then one per poll.
	if got, want := p.regs.count(false, chip_cmd), 1+1000; got != want {
		t.Errorf("chip_cmd reads: got %d want %d", got, want)
	}
	if got, want := p.regs.count(true, chip_cmd), 1; got != want {
		t.Errorf("chip_cmd writes: got %d want %d", got, want)
	}
	if got, want := sleeps, 1000; got != want {
		t.Errorf("sleeps: got %d want %d", got, want)
	}
	if got, want := slept, 10*time.Millisecond; got != want {
		t.Errorf("slept: got %v want %v", got, want)
	}
	if got, want := d.Counter("reset timeouts"), uint64(1); got != want {
		t.Errorf("counter: got %d want %d", got, want)
	}
}

func TestResetCompletes(t *testing.T) {
	p := newMockPci()
	polls := 0
	p.regs.on_read[uint(chip_cmd)] = func() uint32 {
		polls++
		if polls < 5 {
			return cmd_reset
		}
		return rx_buf_empty
	}
	d, _ := probe(t, p, nil)
	if d.ResetErr() != nil {
		t.Errorf("reset: %v", d.ResetErr())
	}
	if got, want := polls, 5; got != want {
		t.Errorf("polls: got %d want %d", got, want)
	}
}

func TestFind(t *testing.T) {
	p := newMockPci()
	other := newMockPci()
	other.ID = pci.DeviceID{Vendor: pci.Intel, Device: 0x10fb}
	pd, err := Find(mockBus{other, p})
	if err != nil {
		t.Fatal(err)
	}
	if pd != pci.Devicer(p) {
		t.Error("wrong device")
	}
	_, err = Find(mockBus{other})
	if !errors.Is(err, ErrDeviceAbsent) {
		t.Errorf("got %v want %v", err, ErrDeviceAbsent)
	}
	if !errors.Is(err, pci.ErrNotFound) {
		t.Errorf("bus error not wrapped: %v", err)
	}
}

func TestDriverRegistry(t *testing.T) {
	v := vnet.New()
	c := DefaultConfig()
	c.Name = "lan0"
	m, err := Init(v, c)
	if err != nil {
		t.Fatal(err)
	}
	if pci.GetDriver(DeviceID) == nil {
		t.Fatal("driver not registered")
	}

	p0, p1 := newMockPci(), newMockPci()
	p1.Addr.Slot = 2
	claimed, err := pci.DiscoverDevices(mockBus{p0, p1})
	if err != nil {
		t.Fatal(err)
	}
	if got, want := len(claimed), 2; got != want {
		t.Fatalf("claimed: got %d want %d", got, want)
	}
	devs := m.Devs()
	if got, want := len(devs), 2; got != want {
		t.Fatalf("devs: got %d want %d", got, want)
	}
	if got, want := devs[0].Name(), "lan0"; got != want {
		t.Errorf("name: got %s want %s", got, want)
	}
	if got, want := devs[1].Name(), "enp2s2"; got != want {
		t.Errorf("name: got %s want %s", got, want)
	}

	// Removing one device through pci leaves the other with the driver.
	if err = devs[0].Exit(); err != nil {
		t.Fatal(err)
	}
	if got, want := len(m.Devs()), 1; got != want {
		t.Errorf("devs after exit: got %d want %d", got, want)
	}

	if err = m.Exit(); err != nil {
		t.Fatal(err)
	}
	if got, want := devs[1].State(), Removed; got != want {
		t.Errorf("state: got %v want %v", got, want)
	}
	if pci.GetDriver(DeviceID) != nil {
		t.Error("driver still registered")
	}
	if p0.enabled || p1.enabled {
		t.Error("device left enabled")
	}
}

func TestInitBadConfig(t *testing.T) {
	c := DefaultConfig()
	c.RxBufIdx = 3
	if _, err := Init(vnet.New(), c); err == nil {
		t.Error("64k ring accepted")
	}
	if pci.GetDriver(DeviceID) != nil {
		t.Error("driver registered")
	}
}
