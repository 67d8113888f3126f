// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rtl8139

import (
	"github.com/platinasystems/drv8139/vnet"

	"sync/atomic"
)

const (
	rx_packets = iota
	rx_bytes
	rx_multicast_packets
	rx_broadcast_packets
	rx_errors
	rx_crc_errors
	rx_length_errors
	rx_frame_errors
	rx_fifo_errors
	rx_missed_packets
	rx_early_headers
	rx_resets
	tx_packets
	tx_bytes
	tx_errors
	tx_aborted_errors
	tx_carrier_errors
	tx_window_errors
	tx_fifo_underruns
	tx_collisions
	tx_ring_full
	tx_dropped
	interrupts
	hw_faults
	pci_errors
	pcs_timeouts
	link_changes
	reset_timeouts
	n_counters
)

var counter_names = [n_counters]string{
	rx_packets:           "rx packets",
	rx_bytes:             "rx bytes",
	rx_multicast_packets: "rx multicast packets",
	rx_broadcast_packets: "rx broadcast packets",
	rx_errors:            "rx errors",
	rx_crc_errors:        "rx crc errors",
	rx_length_errors:     "rx length errors",
	rx_frame_errors:      "rx frame errors",
	rx_fifo_errors:       "rx fifo overflows",
	rx_missed_packets:    "rx missed packets",
	rx_early_headers:     "rx early headers",
	rx_resets:            "rx resets",
	tx_packets:           "tx packets",
	tx_bytes:             "tx bytes",
	tx_errors:            "tx errors",
	tx_aborted_errors:    "tx aborted",
	tx_carrier_errors:    "tx carrier lost",
	tx_window_errors:     "tx out of window collisions",
	tx_fifo_underruns:    "tx fifo underruns",
	tx_collisions:        "tx collisions",
	tx_ring_full:         "tx ring full",
	tx_dropped:           "tx dropped",
	interrupts:           "interrupts",
	hw_faults:            "hardware faults",
	pci_errors:           "pci errors",
	pcs_timeouts:         "pcs timeouts",
	link_changes:         "link changes",
	reset_timeouts:       "reset timeouts",
}

type counters [n_counters]atomic.Uint64

func (c *counters) inc(i uint)         { c[i].Add(1) }
func (c *counters) add(i uint, v uint) { c[i].Add(uint64(v)) }
func (c *counters) get(i uint) uint64  { return c[i].Load() }

func (c *counters) foreach(fn func(name string, v uint64)) {
	for i := range c {
		fn(counter_names[i], c[i].Load())
	}
}

// Counter returns named driver counter; zero for unknown names.
func (d *Dev) Counter(name string) uint64 {
	for i := range counter_names {
		if counter_names[i] == name {
			return d.counters.get(uint(i))
		}
	}
	return 0
}

// ForeachCounter calls fn for each non-zero counter.
func (d *Dev) ForeachCounter(fn func(name string, v uint64)) {
	d.counters.foreach(func(name string, v uint64) {
		if v != 0 {
			fn(name, v)
		}
	})
}

// Chip missed packet count is 24 bits wide and clears on write.
func (d *Dev) fold_rx_missed() {
	d.missed_mu.Lock()
	defer d.missed_mu.Unlock()
	if d.regs == nil {
		return
	}
	if n := rx_missed.get32(d) & 0xffffff; n != 0 {
		rx_missed.set32(d, 0)
		d.counters.add(rx_missed_packets, uint(n))
	}
}

func (d *Dev) GetStats() (s vnet.Stats) {
	d.mu.Lock()
	d.fold_rx_missed()
	d.mu.Unlock()
	c := &d.counters
	s.RxPackets = c.get(rx_packets)
	s.TxPackets = c.get(tx_packets)
	s.RxBytes = c.get(rx_bytes)
	s.TxBytes = c.get(tx_bytes)
	s.RxErrors = c.get(rx_errors)
	s.TxErrors = c.get(tx_errors)
	s.TxDropped = c.get(tx_dropped)
	s.Multicast = c.get(rx_multicast_packets)
	s.Collisions = c.get(tx_collisions)
	s.RxLengthErrors = c.get(rx_length_errors)
	s.RxOverErrors = c.get(rx_fifo_errors)
	s.RxCrcErrors = c.get(rx_crc_errors)
	s.RxFrameErrors = c.get(rx_frame_errors)
	s.RxFifoErrors = c.get(rx_fifo_errors)
	s.RxMissedErrors = c.get(rx_missed_packets)
	s.TxAbortedErrors = c.get(tx_aborted_errors)
	s.TxCarrierErrors = c.get(tx_carrier_errors)
	s.TxFifoErrors = c.get(tx_fifo_underruns)
	s.TxWindowErrors = c.get(tx_window_errors)
	return
}
