// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package vnet is the network stack side of hardware interfaces: drivers
// register here, receive frames are delivered here and transmit requests
// come from here.
package vnet

import (
	"github.com/platinasystems/drv8139/vnet/ethernet"

	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrQueueStopped    = errors.New("vnet: transmit queue stopped")
	ErrNoSuchInterface = errors.New("vnet: no such interface")
	ErrInterfaceExists = errors.New("vnet: interface already registered")
	ErrAdminDown       = errors.New("vnet: interface is admin down")
)

// HwIfRxHook receives frames delivered by a driver.  Called from the
// driver's interrupt goroutine; frame is only valid during the call.
type HwIfRxHook func(h *HwIf, frame []byte)

// HwIfQueueHook is told when an interface transmit queue stops or restarts.
type HwIfQueueHook func(h *HwIf, stopped bool)

type HwIfLinkUpDownHook func(h *HwIf, isUp bool)

type Vnet struct {
	mu     sync.RWMutex
	hwIfs  map[string]*HwIf
	nextHi Hi

	rxHooks         []HwIfRxHook
	queueHooks      []HwIfQueueHook
	linkUpDownHooks []HwIfLinkUpDownHook
}

func New() *Vnet {
	return &Vnet{hwIfs: make(map[string]*HwIf)}
}

func (v *Vnet) RegisterHwIfRxHook(f HwIfRxHook) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.rxHooks = append(v.rxHooks, f)
}

func (v *Vnet) RegisterHwIfQueueHook(f HwIfQueueHook) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.queueHooks = append(v.queueHooks, f)
}

func (v *Vnet) RegisterHwIfLinkUpDownHook(f HwIfLinkUpDownHook) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.linkUpDownHooks = append(v.linkUpDownHooks, f)
}

// Register adds a hardware interface under its name.  The interface
// starts admin down with its transmit queue stopped.
func (v *Vnet) Register(hi HwInterfacer, addr ethernet.Address) (h *HwIf, err error) {
	name := hi.Name()
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, exists := v.hwIfs[name]; exists {
		err = fmt.Errorf("%s: %w", name, ErrInterfaceExists)
		return
	}
	h = &HwIf{
		vnet:      v,
		name:      name,
		hi:        v.nextHi,
		dev:       hi,
		address:   addr,
		broadcast: ethernet.BroadcastAddr,
	}
	h.queueStopped.Store(true)
	v.nextHi++
	v.hwIfs[name] = h
	return
}

func (v *Vnet) Unregister(h *HwIf) (err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if x, ok := v.hwIfs[h.name]; !ok || x != h {
		return fmt.Errorf("%s: %w", h.name, ErrNoSuchInterface)
	}
	delete(v.hwIfs, h.name)
	return
}

func (v *Vnet) HwIfByName(name string) (h *HwIf, ok bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	h, ok = v.hwIfs[name]
	return
}

func (v *Vnet) hwIf(name string) (h *HwIf, err error) {
	h, ok := v.HwIfByName(name)
	if !ok {
		err = fmt.Errorf("%s: %w", name, ErrNoSuchInterface)
	}
	return
}

// ForeachHwIf calls f for each interface in name order.
func (v *Vnet) ForeachHwIf(f func(h *HwIf)) {
	v.mu.RLock()
	hs := make([]*HwIf, 0, len(v.hwIfs))
	for _, h := range v.hwIfs {
		hs = append(hs, h)
	}
	v.mu.RUnlock()
	sort.Slice(hs, func(i, j int) bool { return hs[i].name < hs[j].name })
	for _, h := range hs {
		f(h)
	}
}

func (v *Vnet) SetAdminUp(name string, isUp bool) (err error) {
	h, err := v.hwIf(name)
	if err != nil {
		return
	}
	return h.SetAdminUp(isUp)
}

// Output hands frame to the named interface's driver.
func (v *Vnet) Output(name string, frame []byte) (err error) {
	h, err := v.hwIf(name)
	if err != nil {
		return
	}
	return h.Output(frame)
}

func (v *Vnet) Stats(name string) (s Stats, err error) {
	h, err := v.hwIf(name)
	if err != nil {
		return
	}
	s = h.dev.GetStats()
	return
}

func (v *Vnet) getRxHooks() []HwIfRxHook {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.rxHooks
}

func (v *Vnet) getQueueHooks() []HwIfQueueHook {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.queueHooks
}

func (v *Vnet) getLinkUpDownHooks() []HwIfLinkUpDownHook {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.linkUpDownHooks
}
