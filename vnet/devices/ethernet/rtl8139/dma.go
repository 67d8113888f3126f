// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rtl8139

import (
	"github.com/platinasystems/drv8139/elib/hw"

	"encoding/binary"
	"fmt"
	"sync"
)

const (
	rx_buf_pad      = 16
	rx_buf_wrap_pad = 2048

	n_tx_desc          = 4
	max_eth_frame_size = 1536
	tx_buf_size        = max_eth_frame_size
	tx_buf_tot_len     = tx_buf_size * n_tx_desc

	// Chip only does 32 bit bus addresses.
	max_dma_addr = 1 << 32
)

// Source of DMA memory; pci.Devicer satisfies it.
type dma_allocator interface {
	DmaAlloc(n uint) (*hw.DmaMem, error)
	DmaFree(m *hw.DmaMem) error
}

// Receive ring plus 4 transmit bounce buffers and their indices.
type ring_dev struct {
	rx *hw.DmaMem
	tx *hw.DmaMem

	rx_buf_len uint

	// Consumer offset into receive ring.
	cur_rx uint

	// Guards cur_tx/dirty_tx and slot programming.
	tx_mu sync.Mutex
	// Free running producer/consumer counts; slot is count mod n_tx_desc.
	cur_tx, dirty_tx uint
}

func dma_fits(m *hw.DmaMem) bool { return m.Phys+uint64(m.Len()) <= max_dma_addr }

func (r *ring_dev) allocate(a dma_allocator, c *Config) (err error) {
	r.rx_buf_len = c.rx_buf_len()
	var rx, tx *hw.DmaMem
	defer func() {
		if err != nil {
			if rx != nil {
				a.DmaFree(rx)
			}
			if tx != nil {
				a.DmaFree(tx)
			}
		}
	}()
	if rx, err = a.DmaAlloc(c.rx_buf_tot_len()); err != nil {
		rx = nil
		return newError(OutOfMemory, "rx ring", err)
	}
	if tx, err = a.DmaAlloc(tx_buf_tot_len); err != nil {
		tx = nil
		return newError(OutOfMemory, "tx buffers", err)
	}
	for _, m := range []*hw.DmaMem{rx, tx} {
		if !dma_fits(m) {
			return newError(OutOfMemory, "dma", fmt.Errorf("%v above 4G", m))
		}
	}
	r.rx, r.tx = rx, tx
	return
}

func (r *ring_dev) release(a dma_allocator) (err error) {
	for _, p := range []**hw.DmaMem{&r.rx, &r.tx} {
		if *p == nil {
			continue
		}
		if e := a.DmaFree(*p); e != nil && err == nil {
			err = e
		}
		*p = nil
	}
	return
}

func (r *ring_dev) is_allocated() bool { return r.rx != nil && r.tx != nil }

func (r *ring_dev) reset_indices() {
	r.tx_mu.Lock()
	r.cur_rx = 0
	r.cur_tx, r.dirty_tx = 0, 0
	r.tx_mu.Unlock()
}

// Caller holds tx_mu for the tx ring functions below.
func (r *ring_dev) in_flight() uint { return r.cur_tx - r.dirty_tx }
func (r *ring_dev) tx_full() bool   { return r.in_flight() >= n_tx_desc }

func (r *ring_dev) next_tx_slot() (slot uint, err error) {
	if r.tx_full() {
		err = ErrRingFull
		return
	}
	slot = r.cur_tx % n_tx_desc
	r.cur_tx++
	return
}

func (r *ring_dev) retire_tx(n uint) {
	if f := r.in_flight(); n > f {
		n = f
	}
	r.dirty_tx += n
}

func (r *ring_dev) tx_buf(i uint) []byte {
	o := i * tx_buf_size
	return r.tx.Data[o : o+tx_buf_size]
}
func (r *ring_dev) tx_buf_phys(i uint) uint32 { return uint32(r.tx.PhysAt(i * tx_buf_size)) }
func (r *ring_dev) rx_phys() uint32           { return uint32(r.rx.Phys) }

// Advance past a frame of given on-wire size (including CRC) and its header.
// Result is dword aligned.
func (r *ring_dev) rx_advance(size uint) {
	r.cur_rx = ((r.cur_rx + size + rx_header_bytes + 3) &^ 3) % r.rx_buf_len
}

// Status and size words of header at cur_rx.
func (r *ring_dev) rx_header() (status, size uint16) {
	b := r.rx.Data[r.cur_rx:]
	status = binary.LittleEndian.Uint16(b[0:])
	size = binary.LittleEndian.Uint16(b[2:])
	return
}

// Frame data following header at cur_rx; may run into the wrap pad.
func (r *ring_dev) rx_packet(n uint) []byte {
	o := r.cur_rx + rx_header_bytes
	return r.rx.Data[o : o+n]
}
