// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rtl8139

import (
	"github.com/platinasystems/drv8139/elib/hw"
	"github.com/platinasystems/drv8139/elib/hw/pci"
	"github.com/platinasystems/drv8139/vnet"
	"github.com/platinasystems/drv8139/vnet/ethernet"
	"github.com/platinasystems/log"

	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const driver_name = "rtl8139"

// Registers are in memory space behind BAR 1; BAR 0 is the same set in i/o space.
const reg_bar = 1

var DeviceID = pci.DeviceID{Vendor: pci.Realtek, Device: 0x8139}

type Dev struct {
	m    *Main
	v    *vnet.Vnet
	pd   pci.Devicer
	regs hw.Regs

	name    string
	config  Config
	hwif    *vnet.HwIf
	address ethernet.Address
	irq     uint

	// Serializes open, close and remove.
	mu            sync.Mutex
	state         atomic.Int32
	irq_requested bool

	ring_dev

	// Early transmit threshold bits for tx_status; raised on fifo underrun.
	tx_flag uint32

	reset_err    error
	fault_status atomic.Uint32
	fault_log    *log.Limited

	counters counters
	// Read and clear of rx_missed plus fold into counters is one step.
	missed_mu sync.Mutex
}

func (d *Dev) Name() string              { return d.name }
func (d *Dev) Address() ethernet.Address { return d.address }
func (d *Dev) HwIf() *vnet.HwIf          { return d.hwif }
func (d *Dev) PciDev() pci.Devicer       { return d.pd }
func (d *Dev) Irq() uint                 { return d.irq }
func (d *Dev) Config() Config            { return d.config }
func (d *Dev) State() State              { return State(d.state.Load()) }
func (d *Dev) set_state(s State)         { d.state.Store(int32(s)) }

// ResetErr returns ResetTimeout error when last chip reset did not complete.
func (d *Dev) ResetErr() error { return d.reset_err }

// Interface name in the style of systemd predictable names.
func default_name(a *pci.BusAddress) string {
	s := ""
	if a.Domain != 0 {
		s = fmt.Sprintf("P%d", a.Domain)
	}
	s += fmt.Sprintf("enp%ds%d", a.Bus, a.Slot)
	if a.Fn != 0 {
		s += fmt.Sprintf("f%d", a.Fn)
	}
	return s
}

var sleep = time.Sleep

const (
	reset_polls         = 1000
	reset_poll_interval = 10 * time.Microsecond
)

// Soft reset; chip clears cmd_reset when done.
func (d *Dev) chip_reset() error {
	chip_cmd.set8_flush(d, cmd_reset)
	for i := 0; i < reset_polls; i++ {
		if chip_cmd.get8(d)&cmd_reset == 0 {
			return nil
		}
		sleep(reset_poll_interval)
	}
	d.counters.inc(reset_timeouts)
	log.Print("warn", d.name, ": chip reset timeout")
	return newError(ResetTimeout, "chip reset", fmt.Errorf("%d polls", reset_polls))
}

// Find returns first rtl8139 on bus.
func Find(bus pci.Bus) (pd pci.Devicer, err error) {
	if pd, err = pci.FindDevice(bus, DeviceID); err != nil {
		k := ResourceUnavailable
		if errors.Is(err, pci.ErrNotFound) {
			k = DeviceAbsent
		}
		err = newError(k, "find", err)
	}
	return
}

// Probe claims pd and registers it with v.  On failure everything acquired
// is given back and no interface is registered.
func Probe(v *vnet.Vnet, pd pci.Devicer, c *Config) (dev *Dev, err error) {
	if c == nil {
		c = DefaultConfig()
	}
	if err = c.Validate(); err != nil {
		return
	}
	p := pd.GetDevice()
	d := &Dev{v: v, pd: pd, config: *c}
	if d.name = c.Name; d.name == "" {
		d.name = default_name(&p.Addr)
	}

	if err = pd.Enable(); err != nil {
		err = newError(ResourceUnavailable, "enable", err)
		return
	}
	defer func() {
		if err == nil {
			return
		}
		if d.regs != nil {
			pd.UnmapResource(reg_bar)
			d.regs = nil
		}
		pd.ReleaseRegions()
		pd.Disable()
	}()

	if r := p.Resource(reg_bar); r == nil || !r.IsMem() || r.Size < n_reg_bytes {
		err = newError(MapFailure, "probe", fmt.Errorf("%v: bar %d is not memory mapped", &p.Addr, reg_bar))
		return
	}
	if err = pd.RequestRegions(driver_name); err != nil {
		err = newError(ResourceUnavailable, "request regions", err)
		return
	}
	if err = pd.SetMaster(true); err != nil {
		err = newError(ResourceUnavailable, "bus master", err)
		return
	}
	if d.regs, err = pd.MapResource(reg_bar); err != nil {
		d.regs = nil
		err = newError(MapFailure, "map", err)
		return
	}

	d.reset_err = d.chip_reset()

	for i := range d.address {
		d.address[i] = (mac0 + reg(i)).get8(d)
	}
	d.irq = p.InterruptLine
	d.tx_flag = c.tx_flag()
	d.fault_log = log.NewLimited(c.FaultLogLimit)

	if d.hwif, err = v.Register(d, d.address); err != nil {
		err = newError(ResourceUnavailable, "register", err)
		return
	}
	d.hwif.SetBroadcast(ethernet.BroadcastAddr)
	d.set_state(Probed)
	log.Print("info", d.name, ": ", p, " address ", &d.address, " irq ", d.irq)
	dev = d
	return
}

// Remove gives the device back to the bus; an open device is closed first.
func (d *Dev) Remove() (err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch d.State() {
	case Removed:
		return
	case Opened:
		if err = d.close(); err != nil {
			return
		}
	}
	if d.hwif != nil {
		d.v.Unregister(d.hwif)
	}
	if d.regs != nil {
		if e := d.pd.UnmapResource(reg_bar); e != nil && err == nil {
			err = e
		}
		d.regs = nil
	}
	if e := d.pd.ReleaseRegions(); e != nil && err == nil {
		err = e
	}
	if e := d.pd.Disable(); e != nil && err == nil {
		err = e
	}
	d.set_state(Removed)
	if d.m != nil {
		d.m.forget(d)
	}
	log.Print("info", d.name, ": removed")
	return
}

// Exit implements pci.DriverDevice.
func (d *Dev) Exit() error { return d.Remove() }

// Main is the pci driver for all rtl8139 devices on a bus.
type Main struct {
	v      *vnet.Vnet
	config Config

	mu   sync.Mutex
	devs []*Dev
}

// Init registers driver with pci driver registry; devices are probed when
// found by pci.DiscoverDevices.
func Init(v *vnet.Vnet, c *Config) (m *Main, err error) {
	if c == nil {
		c = DefaultConfig()
	}
	if err = c.Validate(); err != nil {
		return
	}
	m = &Main{v: v, config: *c}
	if err = pci.SetDriver(m, DeviceID); err != nil {
		m = nil
	}
	return
}

func (m *Main) DeviceMatch(pd pci.Devicer) (pci.DriverDevice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.config
	// Configured name goes to first device only.
	if len(m.devs) > 0 {
		c.Name = ""
	}
	d, err := Probe(m.v, pd, &c)
	if err != nil {
		return nil, err
	}
	d.m = m
	m.devs = append(m.devs, d)
	return d, nil
}

func (m *Main) Devs() []*Dev {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Dev(nil), m.devs...)
}

func (m *Main) forget(d *Dev) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.devs {
		if m.devs[i] == d {
			m.devs = append(m.devs[:i], m.devs[i+1:]...)
			return
		}
	}
}

// Exit removes all devices and unregisters driver.
func (m *Main) Exit() (err error) {
	for _, d := range m.Devs() {
		if e := d.Remove(); e != nil && err == nil {
			err = e
		}
	}
	pci.UnsetDriver(DeviceID)
	return
}
