// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rtl8139

import (
	"github.com/platinasystems/drv8139/elib/hw"
	"github.com/platinasystems/drv8139/vnet/ethernet"

	"fmt"
)

// Early transmit threshold is raised 64 bytes per underrun up to 1536.
const (
	tx_flag_step = 2 << tx_early_thresh_shift
	tx_flag_max  = 48 << tx_early_thresh_shift
)

// Transmit copies frame into next free slot and hands slot to chip.
// Returns RingFull error with transmit queue paused when all slots are busy.
func (d *Dev) Transmit(frame []byte) (err error) {
	n := uint(len(frame))
	d.tx_mu.Lock()
	if s := d.State(); s != Opened {
		d.tx_mu.Unlock()
		return newError(InvalidState, "transmit", fmt.Errorf("device %v", s))
	}
	if n > tx_buf_size {
		d.tx_mu.Unlock()
		d.counters.inc(tx_dropped)
		return newError(FrameTooLarge, "transmit", fmt.Errorf("%d > %d bytes", n, tx_buf_size))
	}
	slot, err := d.next_tx_slot()
	if err != nil {
		d.tx_mu.Unlock()
		d.counters.inc(tx_ring_full)
		d.stop_queue()
		return newError(RingFull, "transmit", nil)
	}

	b := d.tx_buf(slot)
	copy(b, frame)
	if n < ethernet.MinPacketBytes {
		clear(b[n:ethernet.MinPacketBytes])
		n = ethernet.MinPacketBytes
	}
	// Buffer contents must be visible before ownership goes to chip.
	hw.MemoryBarrier()
	tx_status(slot).set32(d, d.tx_flag|uint32(n))
	full := d.tx_full()
	d.tx_mu.Unlock()

	if full {
		d.stop_queue()
	}
	return
}

// Reclaim may free a slot between ring full and queue stop; wake in that case.
func (d *Dev) stop_queue() {
	d.hwif.StopQueue()
	d.tx_mu.Lock()
	room := !d.tx_full() && d.State() == Opened
	d.tx_mu.Unlock()
	if room {
		d.hwif.WakeQueue()
	}
}

// Retire slots chip has finished with, oldest first.
func (d *Dev) tx_reclaim() (n uint) {
	d.tx_mu.Lock()
	for ; n < d.in_flight(); n++ {
		s := tx_status((d.dirty_tx + n) % n_tx_desc).get32(d)
		if s&(tx_stat_ok|tx_underrun|tx_aborted) == 0 {
			break
		}
		if s&(tx_out_of_window|tx_aborted) != 0 {
			d.counters.inc(tx_errors)
			if s&tx_aborted != 0 {
				d.counters.inc(tx_aborted_errors)
			}
			if s&tx_carrier_lost != 0 {
				d.counters.inc(tx_carrier_errors)
			}
			if s&tx_out_of_window != 0 {
				d.counters.inc(tx_window_errors)
			}
			continue
		}
		if s&tx_underrun != 0 {
			d.counters.inc(tx_fifo_underruns)
			if d.tx_flag&tx_early_thresh_mask < tx_flag_max {
				d.tx_flag += tx_flag_step
			}
		}
		d.counters.add(tx_collisions, uint((s&tx_collisions_mask)>>tx_collisions_shift))
		d.counters.inc(tx_packets)
		d.counters.add(tx_bytes, uint(s&tx_size_mask))
	}
	d.retire_tx(n)
	d.tx_mu.Unlock()

	if n > 0 && d.hwif.QueueStopped() && d.State() == Opened {
		d.hwif.WakeQueue()
	}
	return
}
