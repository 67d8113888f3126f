// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pci

// Linux PCI code

import (
	"github.com/platinasystems/drv8139/elib/hw"

	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sys/unix"
)

// SysfsBus enumerates devices under /sys/bus/pci/devices.
type SysfsBus struct {
	Path string
	heap hw.DmaHeap
}

var DefaultBus = &SysfsBus{Path: "/sys/bus/pci/devices"}

type sysfsDevice struct {
	Device
	bus *SysfsBus

	mu       sync.Mutex
	mappings map[uint][]byte
	// Locked resource files; held for lifetime of reservation.
	regions []*os.File

	uio *uio
}

func (d *sysfsDevice) GetDevice() *Device { return &d.Device }

func (d *sysfsDevice) SysfsPath(format string, args ...interface{}) (path string) {
	path = filepath.Join(d.bus.Path, d.Addr.String(), fmt.Sprintf(format, args...))
	return
}

func (d *sysfsDevice) SysfsOpenFile(format string, mode int, args ...interface{}) (f *os.File, err error) {
	fn := d.SysfsPath(format, args...)
	f, err = os.OpenFile(fn, mode, 0)
	return
}

func (d *sysfsDevice) SysfsReadHexFile(format string, args ...interface{}) (v uint, err error) {
	var f *os.File
	f, err = d.SysfsOpenFile(format, os.O_RDONLY, args...)
	if err != nil {
		return
	}
	defer f.Close()
	var n int
	if n, err = fmt.Fscanf(f, "0x%x", &v); n != 1 && err == nil {
		err = fmt.Errorf("%s: short read", d.SysfsPath(format, args...))
	}
	return
}

func (d *sysfsDevice) sysfsWrite(name, value string) (err error) {
	var f *os.File
	if f, err = d.SysfsOpenFile(name, os.O_WRONLY); err != nil {
		return
	}
	defer f.Close()
	_, err = io.WriteString(f, value)
	return
}

func (d *sysfsDevice) ConfigRw(offset, vʹ, nBytes uint, isWrite bool) (v uint, err error) {
	var f *os.File
	if f, err = d.SysfsOpenFile("config", os.O_RDWR); err != nil {
		return
	}
	defer f.Close()
	var b [4]byte
	if isWrite {
		for i := range b {
			b[i] = byte((vʹ >> uint(8*i)) & 0xff)
		}
		_, err = f.WriteAt(b[:nBytes], int64(offset))
		v = vʹ
	} else {
		if _, err = f.ReadAt(b[:nBytes], int64(offset)); err == nil {
			for i := range b[:nBytes] {
				v |= uint(b[i]) << (8 * uint(i))
			}
		}
	}
	return
}

func (d *sysfsDevice) Enable() error  { return d.sysfsWrite("enable", "1") }
func (d *sysfsDevice) Disable() error { return d.sysfsWrite("enable", "0") }

func (d *sysfsDevice) SetMaster(enable bool) (err error) {
	var v uint
	if v, err = d.ConfigRw(CommandOffset, 0, 2, false); err != nil {
		return
	}
	c := Command(v) | MemoryEnable
	if enable {
		c |= BusMasterEnable
	} else {
		c &^= BusMasterEnable
	}
	_, err = d.ConfigRw(CommandOffset, uint(c), 2, true)
	return
}

// Reservation is an exclusive advisory lock on each resourceN file.
func (d *sysfsDevice) RequestRegions(owner string) (err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.regions) > 0 {
		return ErrRegionBusy
	}
	defer func() {
		if err != nil {
			d.releaseRegions()
		}
	}()
	for i := range d.Resources {
		r := &d.Resources[i]
		if r.Size == 0 {
			continue
		}
		var f *os.File
		if f, err = d.SysfsOpenFile("resource%d", os.O_RDONLY, r.Index); err != nil {
			return
		}
		if err = unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
			f.Close()
			if errors.Is(err, unix.EWOULDBLOCK) {
				err = fmt.Errorf("%s resource%d: %w", &d.Addr, r.Index, ErrRegionBusy)
			}
			return
		}
		d.regions = append(d.regions, f)
	}
	return
}

func (d *sysfsDevice) releaseRegions() (err error) {
	for _, f := range d.regions {
		unix.Flock(int(f.Fd()), unix.LOCK_UN)
		if e := f.Close(); e != nil && err == nil {
			err = e
		}
	}
	d.regions = d.regions[:0]
	return
}

func (d *sysfsDevice) ReleaseRegions() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.releaseRegions()
}

func (d *sysfsDevice) MapResource(bar uint) (regs hw.Regs, err error) {
	r := d.Resource(bar)
	if r == nil || r.Size == 0 {
		err = fmt.Errorf("%s: no resource%d", &d.Addr, bar)
		return
	}
	var f *os.File
	f, err = d.SysfsOpenFile("resource%d", os.O_RDWR, r.Index)
	if err != nil {
		return
	}
	defer f.Close()
	var mem []byte
	mem, err = unix.Mmap(int(f.Fd()), 0, int(r.Size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		err = fmt.Errorf("mmap resource%d: %w", r.Index, err)
		return
	}
	d.mu.Lock()
	if d.mappings == nil {
		d.mappings = make(map[uint][]byte)
	}
	d.mappings[bar] = mem
	d.mu.Unlock()
	regs = hw.NewMmio(mem)
	return
}

func (d *sysfsDevice) UnmapResource(bar uint) (err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	mem, ok := d.mappings[bar]
	if !ok {
		return ErrNotMapped
	}
	delete(d.mappings, bar)
	if err = unix.Munmap(mem); err != nil {
		err = fmt.Errorf("munmap resource%d: %w", bar, err)
	}
	return
}

func (d *sysfsDevice) DmaAlloc(n uint) (*hw.DmaMem, error) { return d.bus.heap.Alloc(n) }
func (d *sysfsDevice) DmaFree(m *hw.DmaMem) error          { return d.bus.heap.Free(m) }

// Loop through BARs to find resources.
func (d *sysfsDevice) findResources() (err error) {
	var b []byte
	if b, err = os.ReadFile(d.SysfsPath("resource")); err != nil {
		return
	}
	r := bytes.NewReader(b)
	i := 0
	for r.Len() > 0 {
		var (
			v [3]uint64
			n int
		)
		if n, err = fmt.Fscanf(r, "0x%x 0x%x 0x%x\n", &v[0], &v[1], &v[2]); n != 3 || err != nil {
			if n != 3 {
				err = fmt.Errorf("%s: short read", d.SysfsPath("resource"))
			}
			return
		}
		size := v[0]
		if v[0] != 0 {
			size = 1 + v[1] - v[0]
		}
		d.Resources = append(d.Resources, Resource{
			Index: uint32(i),
			Base:  v[0],
			Size:  size,
			Flags: ResourceFlag(v[2]),
		})
		i++
	}
	return
}

func (d *sysfsDevice) findIrq() (err error) {
	var b []byte
	if b, err = os.ReadFile(d.SysfsPath("irq")); err != nil {
		return
	}
	_, err = fmt.Sscanf(strings.TrimSpace(string(b)), "%d", &d.InterruptLine)
	return
}

func (b *SysfsBus) Devices() (ds []Devicer, err error) {
	fis, err := os.ReadDir(b.Path)
	if errors.Is(err, os.ErrNotExist) {
		err = nil
		return
	}
	if err != nil {
		return
	}
	for _, fi := range fis {
		d := &sysfsDevice{bus: b}
		n := fi.Name()
		if _, err = fmt.Sscanf(n, "%x:%x:%x.%x", &d.Addr.Domain, &d.Addr.Bus, &d.Addr.Slot, &d.Addr.Fn); err != nil {
			return
		}
		var v [2]uint
		if v[0], err = d.SysfsReadHexFile("vendor"); err != nil {
			return
		}
		if v[1], err = d.SysfsReadHexFile("device"); err != nil {
			return
		}
		d.ID = DeviceID{Vendor: VendorID(v[0]), Device: VendorDeviceID(v[1])}
		if v[0], err = d.SysfsReadHexFile("class"); err != nil {
			return
		}
		// Drop programming interface byte.
		d.Class = DeviceClass(v[0] >> 8)

		// Only look deeper at devices someone may drive.
		if GetDriver(d.ID) == nil && d.Class != Network_Ethernet {
			ds = append(ds, d)
			continue
		}
		if err = d.findResources(); err != nil {
			return
		}
		if err = d.findIrq(); err != nil {
			return
		}
		ds = append(ds, d)
	}
	return
}
