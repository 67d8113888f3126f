// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rtl8139

import (
	"fmt"
	"io"
)

var show_regs = [...]struct {
	r     reg
	width uint
}{
	{chip_cmd, 8},
	{rx_buf, 32},
	{rx_buf_ptr, 16},
	{rx_buf_addr, 16},
	{intr_mask, 16},
	{intr_status, 16},
	{tx_config, 32},
	{rx_config, 32},
	{rx_missed, 32},
	{media_status, 8},
	{multi_intr, 16},
}

func (d *Dev) show_reg(w io.Writer, r reg, width uint) {
	var v uint32
	switch width {
	case 8:
		v = uint32(r.get8(d))
	case 16:
		v = uint32(r.get16(d))
	default:
		v = r.get32(d)
	}
	fmt.Fprintf(w, "  %-12s 0x%0*x\n", r, int(width/4), v)
}

// ShowDev writes registers, ring indices and non-zero counters.
func (d *Dev) ShowDev(w io.Writer) {
	d.mu.Lock()
	defer d.mu.Unlock()

	fmt.Fprintf(w, "%s: %v address %v irq %d %v\n", d.name, d.pd.GetDevice(), &d.address, d.irq, d.State())
	if d.reset_err != nil {
		fmt.Fprintf(w, "  %v\n", d.reset_err)
	}
	if d.regs != nil {
		for _, x := range show_regs {
			d.show_reg(w, x.r, x.width)
		}
		for i := uint(0); i < n_tx_desc; i++ {
			fmt.Fprintf(w, "  tx %d: status 0x%08x addr 0x%08x\n", i, tx_status(i).get32(d), tx_addr(i).get32(d))
		}
	}

	d.tx_mu.Lock()
	fmt.Fprintf(w, "  cur_rx %d cur_tx %d dirty_tx %d tx_flag 0x%x\n", d.cur_rx, d.cur_tx, d.dirty_tx, d.tx_flag)
	d.tx_mu.Unlock()
	if d.rx != nil {
		fmt.Fprintf(w, "  rx ring %v tx buffers %v\n", d.rx, d.tx)
	}

	d.ForeachCounter(func(name string, v uint64) {
		fmt.Fprintf(w, "  %-28s %d\n", name, v)
	})
}
