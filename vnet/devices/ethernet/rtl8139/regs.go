// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rtl8139

import (
	"fmt"
	"strings"
)

// Byte offset into register window (BAR 1).
type reg uint

const (
	// Station address; 6 x 8 bit.
	mac0 reg = 0x00
	// Multicast filter; 8 x 8 bit.
	mar0 reg = 0x08
	// Transmit status; 4 x 32 bit.
	tx_status0 reg = 0x10
	// Transmit buffer bus addresses; 4 x 32 bit.
	tx_addr0 reg = 0x20
	// Receive ring bus address.
	rx_buf   reg = 0x30
	chip_cmd reg = 0x37
	// Current address of packet read (CAPR); driver owned.
	rx_buf_ptr reg = 0x38
	// Current buffer address (CBR); chip owned.
	rx_buf_addr reg = 0x3a
	intr_mask   reg = 0x3c
	intr_status reg = 0x3e
	tx_config   reg = 0x40
	rx_config   reg = 0x44
	// [23:0] missed packet count; write clears.
	rx_missed    reg = 0x4c
	media_status reg = 0x58
	multi_intr   reg = 0x5c

	n_reg_bytes = 0x100
)

func tx_status(slot uint) reg { return tx_status0 + reg(4*slot) }
func tx_addr(slot uint) reg   { return tx_addr0 + reg(4*slot) }

var reg_names = map[reg]string{
	mac0:         "mac0",
	mar0:         "mar0",
	tx_status0:   "tx_status0",
	tx_addr0:     "tx_addr0",
	rx_buf:       "rx_buf",
	chip_cmd:     "chip_cmd",
	rx_buf_ptr:   "rx_buf_ptr",
	rx_buf_addr:  "rx_buf_addr",
	intr_mask:    "intr_mask",
	intr_status:  "intr_status",
	tx_config:    "tx_config",
	rx_config:    "rx_config",
	rx_missed:    "rx_missed",
	media_status: "media_status",
	multi_intr:   "multi_intr",
}

func (r reg) String() string {
	if s, ok := reg_names[r]; ok {
		return s
	}
	return fmt.Sprintf("0x%02x", uint(r))
}

func (r reg) get8(d *Dev) uint8   { return d.regs.Read8(uint(r)) }
func (r reg) get16(d *Dev) uint16 { return d.regs.Read16(uint(r)) }
func (r reg) get32(d *Dev) uint32 { return d.regs.Read32(uint(r)) }

// Posted writes.
func (r reg) set8(d *Dev, v uint8)   { d.regs.Write8(uint(r), v) }
func (r reg) set16(d *Dev, v uint16) { d.regs.Write16(uint(r), v) }
func (r reg) set32(d *Dev, v uint32) { d.regs.Write32(uint(r), v) }

// Flushed writes: write then read back same register so the write has
// reached the chip before we return.
func (r reg) set8_flush(d *Dev, v uint8) {
	r.set8(d, v)
	r.get8(d)
}
func (r reg) set16_flush(d *Dev, v uint16) {
	r.set16(d, v)
	r.get16(d)
}
func (r reg) set32_flush(d *Dev, v uint32) {
	r.set32(d, v)
	r.get32(d)
}

// Transmit status register bits.
const (
	// [12:0] frame size
	tx_size_mask = 0x1fff
	// Set by chip when DMA of buffer to FIFO completes.
	tx_host_owns = 0x2000
	tx_underrun  = 0x4000
	tx_stat_ok   = 0x8000
	// [21:16] early transmit threshold in 32 byte units.
	tx_early_thresh_shift = 16
	tx_early_thresh_mask  = 0x3f << tx_early_thresh_shift
	// [27:24] collision count
	tx_collisions_shift = 24
	tx_collisions_mask  = 0xf << tx_collisions_shift
	tx_out_of_window    = 0x20000000
	tx_aborted          = 0x40000000
	tx_carrier_lost     = 0x80000000
)

// Chip command bits.
const (
	cmd_reset    = 0x10
	cmd_rx_enb   = 0x08
	cmd_tx_enb   = 0x04
	rx_buf_empty = 0x01
)

// Receive config: [12:11] ring length select.
const (
	rx_cfg_buf_len_shift = 11
	rx_cfg_buf_len_mask  = 3 << rx_cfg_buf_len_shift
)

// Media status bits.
const msr_link_fail = 0x04

// Only bits [15:12] of multi_intr survive open.
const multi_intr_clear = 0xf000

// Interrupt status/mask bits.
type interrupt uint16

const (
	rx_ok        interrupt = 0x0001
	rx_err       interrupt = 0x0002
	tx_ok        interrupt = 0x0004
	tx_err       interrupt = 0x0008
	rx_overflow  interrupt = 0x0010
	rx_underrun  interrupt = 0x0020
	rx_fifo_over interrupt = 0x0040
	pcs_timeout  interrupt = 0x4000
	pci_err      interrupt = 0x8000

	rx_ack_bits = rx_fifo_over | rx_overflow | rx_ok
	tx_ack_bits = tx_ok | tx_err
	// Conditions counted as hardware faults.
	fault_bits = rx_err | pci_err | pcs_timeout

	intr_all = rx_ack_bits | tx_ack_bits | fault_bits | rx_underrun
)

var interrupt_names = [...]string{
	"rx ok", "rx err", "tx ok", "tx err",
	"rx overflow", "link change", "rx fifo over", "",
	"", "", "", "",
	"", "", "pcs timeout", "pci err",
}

func (x interrupt) String() string {
	var s []string
	for i := range interrupt_names {
		if x&(1<<uint(i)) != 0 {
			if n := interrupt_names[i]; n != "" {
				s = append(s, n)
			} else {
				s = append(s, fmt.Sprintf("bit %d", i))
			}
		}
	}
	if len(s) == 0 {
		return "none"
	}
	return strings.Join(s, ", ")
}

// Receive packet header status, little endian in ring before each frame.
const (
	rx_status_ok  = 0x0001
	rx_bad_align  = 0x0002
	rx_crc_err    = 0x0004
	rx_too_long   = 0x0008
	rx_runt       = 0x0010
	rx_bad_symbol = 0x0020
	rx_broadcast  = 0x2000
	rx_physical   = 0x4000
	rx_multicast  = 0x8000

	rx_status_errors = rx_bad_align | rx_crc_err | rx_too_long | rx_runt | rx_bad_symbol

	// Size written by chip while it is still copying the frame.
	rx_size_early   = 0xfff0
	rx_header_bytes = 4
)
