// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pci

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

var UioDriverPath = "/sys/bus/pci/drivers/uio_pci_generic"

// uio delivers legacy interrupts through /dev/uioN.
type uio struct {
	name    string
	handler InterruptHandler

	minor int
	fd    int
	// Written to stop reader.
	stop [2]int
	done chan struct{}
}

func uioWrite(path, format string, args ...interface{}) (err error) {
	fn := filepath.Join(UioDriverPath, path)
	f, err := os.OpenFile(fn, os.O_WRONLY, 0)
	if err != nil {
		return
	}
	defer f.Close()
	_, err = fmt.Fprintf(f, format, args...)
	return
}

func (d *sysfsDevice) uioMinor() (minor int, err error) {
	var fis []os.DirEntry
	if fis, err = os.ReadDir(d.SysfsPath("uio")); err != nil {
		return
	}
	for _, fi := range fis {
		if _, e := fmt.Sscanf(fi.Name(), "uio%d", &minor); e == nil {
			return
		}
	}
	err = fmt.Errorf("%s: failed to get minor number for uio device", &d.Addr)
	return
}

func (d *sysfsDevice) bind() (minor int, err error) {
	// Already bound (e.g. by a previous run).
	if minor, err = d.uioMinor(); err == nil {
		return
	}
	// new_id may bind the device by itself; then bind reports EEXIST.
	if err = uioWrite("new_id", "%04x %04x", uint16(d.VendorID()), uint16(d.DeviceID())); err != nil && !errors.Is(err, unix.EEXIST) {
		return
	}
	if err = uioWrite("bind", "%s", &d.Addr); err != nil && !errors.Is(err, unix.EEXIST) && !errors.Is(err, unix.ENODEV) {
		return
	}
	return d.uioMinor()
}

func (d *sysfsDevice) unbind() (err error) {
	if err = uioWrite("unbind", "%s", &d.Addr); err != nil {
		return
	}
	err = uioWrite("remove_id", "%04x %04x", uint16(d.VendorID()), uint16(d.DeviceID()))
	return
}

func (d *sysfsDevice) RequestIrq(name string, h InterruptHandler) (err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.uio != nil {
		return ErrIrqBusy
	}
	u := &uio{name: name, handler: h, fd: -1, stop: [2]int{-1, -1}}
	defer func() {
		if err != nil {
			u.close()
		}
	}()
	if u.minor, err = d.bind(); err != nil {
		return
	}
	path := fmt.Sprintf("/dev/uio%d", u.minor)
	if u.fd, err = unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0); err != nil {
		err = fmt.Errorf("open %s: %w", path, err)
		return
	}
	if err = unix.Pipe2(u.stop[:], unix.O_CLOEXEC|unix.O_NONBLOCK); err != nil {
		return
	}
	if err = u.enable(); err != nil {
		return
	}
	u.done = make(chan struct{})
	d.uio = u
	go u.reader()
	return
}

// Unmask interrupt at the bus.
func (u *uio) enable() (err error) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], 1)
	_, err = unix.Write(u.fd, b[:])
	return
}

func (u *uio) reader() {
	defer close(u.done)
	fds := []unix.PollFd{
		{Fd: int32(u.fd), Events: unix.POLLIN},
		{Fd: int32(u.stop[0]), Events: unix.POLLIN},
	}
	for {
		fds[0].Revents, fds[1].Revents = 0, 0
		if _, err := unix.Poll(fds, -1); err != nil {
			if err == unix.EINTR {
				continue
			}
			return
		}
		if fds[1].Revents != 0 {
			return
		}
		if fds[0].Revents&unix.POLLIN == 0 {
			continue
		}
		var b [4]byte
		if _, err := unix.Read(u.fd, b[:]); err != nil {
			return
		}
		u.handler()
		if err := u.enable(); err != nil {
			return
		}
	}
}

func (u *uio) close() {
	for _, fd := range []int{u.fd, u.stop[0], u.stop[1]} {
		if fd >= 0 {
			unix.Close(fd)
		}
	}
}

func (d *sysfsDevice) FreeIrq() (err error) {
	d.mu.Lock()
	u := d.uio
	d.uio = nil
	d.mu.Unlock()
	if u == nil {
		return
	}
	unix.Write(u.stop[1], []byte{0})
	<-u.done
	u.close()
	return d.unbind()
}
