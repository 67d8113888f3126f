// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rtl8139

import (
	"fmt"
)

// Interrupt services the (possibly shared) interrupt line.  Reports false
// when nothing for this device was pending.
func (d *Dev) Interrupt() (handled bool) {
	if d.State() != Opened {
		return
	}
	s := interrupt(intr_status.get16(d))
	// All ones: device has gone away.
	if s == 0 || s == 0xffff {
		return
	}
	ack := s & intr_all
	if ack == 0 {
		return
	}
	d.counters.inc(interrupts)
	intr_status.set16(d, uint16(ack))

	if ack&rx_ack_bits != 0 {
		if ack&(rx_overflow|rx_fifo_over) != 0 {
			d.counters.inc(rx_fifo_errors)
			d.fold_rx_missed()
		}
		d.rx_drain()
	}
	if ack&tx_ack_bits != 0 {
		d.tx_reclaim()
	}
	if ack&fault_bits != 0 {
		d.hw_fault(ack & fault_bits)
	}
	if ack&rx_underrun != 0 {
		d.counters.inc(link_changes)
		link := "down"
		if d.update_link() {
			link = "up"
		}
		d.fault_log.Print("info", d.name, ": link ", link)
	}
	return true
}

// Report link state from media status to stack.
func (d *Dev) update_link() (up bool) {
	up = media_status.get8(d)&msr_link_fail == 0
	d.hwif.SetLinkUp(up)
	return
}

// Channels are left enabled; faults are counted and logged.
func (d *Dev) hw_fault(s interrupt) {
	d.counters.inc(hw_faults)
	if s&pci_err != 0 {
		d.counters.inc(pci_errors)
	}
	if s&pcs_timeout != 0 {
		d.counters.inc(pcs_timeouts)
	}
	if s&rx_err != 0 {
		d.counters.inc(rx_errors)
	}
	d.fault_status.Store(uint32(s))
	d.fault_log.Print("err", d.name, ": hardware fault: ", s)
}

// LastFault returns HardwareFault error for most recent fault seen since
// open, or nil.
func (d *Dev) LastFault() error {
	s := interrupt(d.fault_status.Load())
	if s == 0 {
		return nil
	}
	return newError(HardwareFault, "interrupt", fmt.Errorf("status %v", s))
}
