// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Generic devices on PCI bus.
package pci

import (
	"github.com/platinasystems/drv8139/elib/hw"

	"errors"
	"fmt"
	"sync"
)

var (
	ErrNotFound   = errors.New("pci: device not found")
	ErrRegionBusy = errors.New("pci: region already reserved")
	ErrIrqBusy    = errors.New("pci: interrupt already requested")
	ErrNotMapped  = errors.New("pci: resource not mapped")
)

type Command uint16

const (
	IOEnable Command = 1 << iota
	MemoryEnable
	BusMasterEnable
	SpecialCycles
	WriteInvalidate
	VgaPaletteSnoop
	Parity
	AddressDataStepping
	SERR
	BackToBackWrite
	INTxEmulationDisable
)

// Config space offset of command register.
const CommandOffset = 0x4

// Device/vendor ID from PCI config space.
type VendorID uint16
type VendorDeviceID uint16

func (v VendorID) String() string       { return fmt.Sprintf("0x%04x", uint16(v)) }
func (d VendorDeviceID) String() string { return fmt.Sprintf("0x%04x", uint16(d)) }

// Vendor/Device pair
type DeviceID struct {
	Vendor VendorID
	Device VendorDeviceID
}

func (i DeviceID) String() string { return fmt.Sprintf("%v:%v", i.Vendor, i.Device) }

type BusAddress struct {
	Domain        uint16
	Bus, Slot, Fn uint8
}

func (a BusAddress) String() string {
	return fmt.Sprintf("%04x:%02x:%02x.%01x", a.Domain, a.Bus, a.Slot, a.Fn)
}

// Resource flags as reported by the kernel.
type ResourceFlag uint64

const (
	ResourceIO  ResourceFlag = 0x100
	ResourceMem ResourceFlag = 0x200
)

type Resource struct {
	Index      uint32 // index of BAR
	Base, Size uint64
	Flags      ResourceFlag
}

func (r *Resource) IsMem() bool { return r.Flags&ResourceMem != 0 }
func (r *Resource) IsIO() bool  { return r.Flags&ResourceIO != 0 }

func (r Resource) String() string {
	tp := "mem"
	if !r.IsMem() {
		tp = "i/o"
	}
	if r.Size == 0 {
		return fmt.Sprintf("{%d: none}", r.Index)
	}
	return fmt.Sprintf("{%d: %s 0x%x-0x%x}", r.Index, tp, r.Base, r.Base+r.Size-1)
}

type Device struct {
	Addr      BusAddress
	ID        DeviceID
	Class     DeviceClass
	Resources []Resource

	// Legacy interrupt line.
	InterruptLine uint

	Driver
	DriverDevice
}

func (d *Device) VendorID() VendorID       { return d.ID.Vendor }
func (d *Device) DeviceID() VendorDeviceID { return d.ID.Device }

func (d *Device) String() string {
	return fmt.Sprintf("%s %v %v %v", &d.Addr, d.Class, d.VendorID(), d.DeviceID())
}

// Resource returns BAR i or nil when the device has no such resource.
func (d *Device) Resource(i uint) *Resource {
	for j := range d.Resources {
		if uint(d.Resources[j].Index) == i {
			return &d.Resources[j]
		}
	}
	return nil
}

// InterruptHandler services one interrupt and reports whether the device
// had anything pending.  Called serially for a given device.
type InterruptHandler func() (handled bool)

// Things a driver must do.
type Driver interface {
	// Device matches registered devices for this driver.
	DeviceMatch(d Devicer) (i DriverDevice, err error)
}

type DriverDevice interface {
	Exit() error
}

// Devicer is a device as offered by a bus implementation.
type Devicer interface {
	GetDevice() *Device

	// Power up and enable decode.
	Enable() error
	Disable() error

	// Exclusive reservation of all device regions.
	RequestRegions(owner string) error
	// Safe to call without a reservation.
	ReleaseRegions() error

	SetMaster(enable bool) error

	MapResource(bar uint) (hw.Regs, error)
	UnmapResource(bar uint) error

	DmaAlloc(n uint) (*hw.DmaMem, error)
	DmaFree(m *hw.DmaMem) error

	// Attach handler to device's (possibly shared) interrupt line.
	RequestIrq(name string, h InterruptHandler) error
	// Detach handler; returns after any running invocation finishes.
	FreeIrq() error
}

type Bus interface {
	Devices() ([]Devicer, error)
}

// FindDevice returns first device on bus matching given id.
func FindDevice(bus Bus, id DeviceID) (d Devicer, err error) {
	var ds []Devicer
	if ds, err = bus.Devices(); err != nil {
		return
	}
	for _, x := range ds {
		if x.GetDevice().ID == id {
			d = x
			return
		}
	}
	err = fmt.Errorf("%v: %w", id, ErrNotFound)
	return
}

var (
	driversMutex sync.Mutex
	drivers      map[DeviceID]Driver = make(map[DeviceID]Driver)
)

func setDriver(v Driver, id DeviceID) (err error) {
	driversMutex.Lock()
	defer driversMutex.Unlock()
	if _, exists := drivers[id]; exists {
		err = fmt.Errorf("duplicate registration for device: %v", id)
	} else {
		drivers[id] = v
	}
	return
}

// SetDriver gives a driver for a given list of devices.
func SetDriver(v Driver, ids ...DeviceID) (err error) {
	for _, id := range ids {
		if e := setDriver(v, id); e != nil && err == nil {
			err = e
		}
	}
	return
}

func GetDriver(d DeviceID) Driver {
	driversMutex.Lock()
	defer driversMutex.Unlock()
	return drivers[d]
}

func UnsetDriver(d DeviceID) {
	driversMutex.Lock()
	defer driversMutex.Unlock()
	delete(drivers, d)
}

// DiscoverDevices hands each device on bus with a registered driver to
// that driver.  Returns devices claimed.
func DiscoverDevices(bus Bus) (claimed []Devicer, err error) {
	var ds []Devicer
	if ds, err = bus.Devices(); err != nil {
		return
	}
	for _, de := range ds {
		d := de.GetDevice()
		driver := GetDriver(d.ID)
		if driver == nil {
			continue
		}
		d.Driver = driver
		if d.DriverDevice, err = driver.DeviceMatch(de); err != nil {
			return
		}
		claimed = append(claimed, de)
	}
	return
}

func CloseDiscoveredDevices(claimed []Devicer) (err error) {
	for _, de := range claimed {
		d := de.GetDevice()
		if d.DriverDevice == nil {
			continue
		}
		if e := d.DriverDevice.Exit(); e != nil && err == nil {
			err = e
		}
		d.DriverDevice = nil
	}
	return
}
