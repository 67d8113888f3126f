// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vnet

import (
	"github.com/platinasystems/drv8139/vnet/ethernet"

	"sync"
	"sync/atomic"
)

type IfIndex uint32
type Hi IfIndex

// HwInterfacer is what a driver offers the stack.
type HwInterfacer interface {
	Name() string
	// Bring hardware up/down; called on admin state change.
	Open() error
	Close() error
	Transmit(frame []byte) error
	GetStats() Stats
}

type HwIf struct {
	vnet *Vnet
	dev  HwInterfacer

	name string
	hi   Hi

	// Serializes admin up/down.
	mu      sync.Mutex
	adminUp atomic.Bool

	// Hardware link state: up or down
	linkUp atomic.Bool

	queueStopped atomic.Bool

	address   ethernet.Address
	broadcast ethernet.Address

	// Frames handed up by driver and frames refused for a stopped queue.
	rxFrames, txQueueFull atomic.Uint64
}

func (h *HwIf) Name() string                { return h.name }
func (h *HwIf) Hi() Hi                      { return h.hi }
func (h *HwIf) Vnet() *Vnet                 { return h.vnet }
func (h *HwIf) Address() ethernet.Address   { return h.address }
func (h *HwIf) Broadcast() ethernet.Address { return h.broadcast }
func (h *HwIf) RxFrames() uint64            { return h.rxFrames.Load() }
func (h *HwIf) TxQueueFull() uint64         { return h.txQueueFull.Load() }

func (h *HwIf) SetBroadcast(a ethernet.Address) { h.broadcast = a }

func (h *HwIf) IsAdminUp() bool { return h.adminUp.Load() }

// SetAdminUp opens or closes the underlying device.
func (h *HwIf) SetAdminUp(isUp bool) (err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.adminUp.Load() == isUp {
		return
	}
	if isUp {
		err = h.dev.Open()
	} else {
		err = h.dev.Close()
	}
	if err == nil {
		h.adminUp.Store(isUp)
	}
	return
}

// ClearAdminUp is called by a driver that closed its device other than
// through SetAdminUp, so a later SetAdminUp(true) opens it again.
func (h *HwIf) ClearAdminUp() { h.adminUp.Store(false) }

func (h *HwIf) IsLinkUp() bool { return h.linkUp.Load() }

func (h *HwIf) SetLinkUp(v bool) {
	if h.linkUp.Swap(v) == v {
		return
	}
	for _, f := range h.vnet.getLinkUpDownHooks() {
		f(h, v)
	}
}

func (h *HwIf) QueueStopped() bool { return h.queueStopped.Load() }

func (h *HwIf) setQueueStopped(v bool) {
	if h.queueStopped.Swap(v) == v {
		return
	}
	for _, f := range h.vnet.getQueueHooks() {
		f(h, v)
	}
}

// StartQueue allows transmit; called by driver when device opens.
func (h *HwIf) StartQueue() { h.setQueueStopped(false) }

// StopQueue pauses transmit; used for ring full and device close.
func (h *HwIf) StopQueue() { h.setQueueStopped(true) }

// WakeQueue restarts a paused queue once the driver has room again.
func (h *HwIf) WakeQueue() { h.setQueueStopped(false) }

// Output sends frame unless interface is down or its queue is paused.
func (h *HwIf) Output(frame []byte) (err error) {
	if !h.IsAdminUp() {
		return ErrAdminDown
	}
	if h.QueueStopped() {
		h.txQueueFull.Add(1)
		return ErrQueueStopped
	}
	return h.dev.Transmit(frame)
}

// Input delivers a received frame to the stack.
func (h *HwIf) Input(frame []byte) {
	h.rxFrames.Add(1)
	for _, f := range h.vnet.getRxHooks() {
		f(h, frame)
	}
}
