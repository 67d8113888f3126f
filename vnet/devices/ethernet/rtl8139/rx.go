// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rtl8139

import (
	"github.com/platinasystems/drv8139/elib/hw"
	"github.com/platinasystems/drv8139/vnet/ethernet"
)

// Frame sizes from rx header include CRC.
const (
	min_rx_size = ethernet.HeaderBytes + ethernet.CrcBytes
	max_rx_size = max_eth_frame_size + ethernet.CrcBytes
)

// Chip reads CAPR 16 bytes behind the real read pointer.
const capr_offset = 16

// Take up to RxBudget frames from receive ring.
func (d *Dev) rx_drain() (n int) {
	for n < d.config.RxBudget && chip_cmd.get8(d)&rx_buf_empty == 0 {
		// Header must be read after chip's DMA of frame.
		hw.MemoryBarrier()
		status, size := d.rx_header()
		if size == rx_size_early {
			d.counters.inc(rx_early_headers)
			break
		}
		if status&rx_status_ok == 0 || status&rx_status_errors != 0 || size < min_rx_size || size > max_rx_size {
			d.rx_error(status, size)
			break
		}

		l := uint(size) - ethernet.CrcBytes
		frame := make([]byte, l)
		copy(frame, d.rx_packet(l))
		d.hwif.Input(frame)

		d.counters.inc(rx_packets)
		d.counters.add(rx_bytes, l)
		if status&rx_multicast != 0 {
			d.counters.inc(rx_multicast_packets)
		}
		if status&rx_broadcast != 0 {
			d.counters.inc(rx_broadcast_packets)
		}

		d.rx_advance(uint(size))
		rx_buf_ptr.set16(d, uint16(d.cur_rx-capr_offset))
		n++
	}
	return
}

// Count bad frame then restart receiver at start of ring.
func (d *Dev) rx_error(status, size uint16) {
	d.counters.inc(rx_errors)
	if status&rx_crc_err != 0 {
		d.counters.inc(rx_crc_errors)
	}
	if status&(rx_runt|rx_too_long) != 0 || size < min_rx_size || size > max_rx_size {
		d.counters.inc(rx_length_errors)
	}
	if status&(rx_bad_symbol|rx_bad_align) != 0 {
		d.counters.inc(rx_frame_errors)
	}
	d.fault_log.Printf("warn", "%s: rx error status 0x%04x size %d", d.name, status, size)

	chip_cmd.set8_flush(d, cmd_tx_enb)
	d.cur_rx = 0
	rx_buf.set32_flush(d, d.rx_phys())
	chip_cmd.set8_flush(d, cmd_rx_enb|cmd_tx_enb)
	rx_config.set32(d, d.config.rx_config())
	d.counters.inc(rx_resets)
}
