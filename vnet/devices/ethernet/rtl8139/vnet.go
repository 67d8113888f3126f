// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rtl8139

import (
	"github.com/platinasystems/log"

	"fmt"
)

type State int32

const (
	Uninitialized State = iota
	Probed
	Opened
	Closed
	Removed
)

var state_names = [...]string{
	Uninitialized: "uninitialized",
	Probed:        "probed",
	Opened:        "opened",
	Closed:        "closed",
	Removed:       "removed",
}

func (s State) String() string {
	if int(s) < len(state_names) && s >= 0 {
		return state_names[s]
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Open allocates rings and starts the chip.  Called by vnet on admin up.
func (d *Dev) Open() (err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch s := d.State(); s {
	case Opened:
		return
	case Probed, Closed:
	default:
		return newError(InvalidState, "open", fmt.Errorf("device %v", s))
	}

	d.fault_log = log.NewLimited(d.config.FaultLogLimit)
	d.fault_status.Store(0)
	if err = d.pd.RequestIrq(d.name, d.Interrupt); err != nil {
		return newError(ResourceUnavailable, "request irq", err)
	}
	d.irq_requested = true
	if err = d.allocate(d.pd, &d.config); err != nil {
		d.free_irq()
		return
	}
	d.reset_indices()
	d.hw_start()
	d.set_state(Opened)
	d.hwif.StartQueue()
	d.update_link()
	intr_mask.set16(d, uint16(intr_all))
	log.Print("info", d.name, ": open rx ", d.rx, " tx ", d.tx)
	return
}

func (d *Dev) hw_start() {
	d.reset_err = d.chip_reset()

	rx_buf.set32_flush(d, d.rx_phys())
	for i := uint(0); i < n_tx_desc; i++ {
		tx_addr(i).set32_flush(d, d.tx_buf_phys(i))
	}
	chip_cmd.set8_flush(d, cmd_rx_enb|cmd_tx_enb)

	d.tx_mu.Lock()
	d.tx_flag = d.config.tx_flag()
	d.tx_mu.Unlock()
	rx_config.set32(d, d.config.rx_config())
	tx_config.set32(d, d.config.TxConfig)
	rx_missed.set32(d, 0)

	// Accept all multicast; filtering is left to the stack.
	mar0.set32(d, 0xffffffff)
	(mar0 + 4).set32(d, 0xffffffff)

	multi_intr.set16(d, multi_intr.get16(d)&multi_intr_clear)
}

// Close stops the chip and frees rings.  Safe to call in any state.
func (d *Dev) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.close()
}

func (d *Dev) close() (err error) {
	was_open := d.State() == Opened
	if was_open {
		d.hwif.StopQueue()
		// No transmit gets past state check once we hold tx_mu.
		d.tx_mu.Lock()
		d.set_state(Closed)
		d.tx_mu.Unlock()

		chip_cmd.set8_flush(d, 0)
		intr_mask.set16(d, 0)
		d.fold_rx_missed()
		d.hwif.SetLinkUp(false)
	}
	d.hwif.ClearAdminUp()
	// Handler must be gone before rings are freed.
	err = d.free_irq()
	if e := d.release(d.pd); e != nil && err == nil {
		err = e
	}
	if was_open {
		log.Print("info", d.name, ": closed")
	}
	return
}

func (d *Dev) free_irq() (err error) {
	if d.irq_requested {
		err = d.pd.FreeIrq()
		d.irq_requested = false
	}
	return
}
