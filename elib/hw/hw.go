// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Memory mapped register read/write
package hw

import (
	"fmt"
	"sync/atomic"
	"unsafe"
)

// Regs is a device register window addressed by byte offset.
type Regs interface {
	Read8(o uint) uint8
	Read16(o uint) uint16
	Read32(o uint) uint32
	Write8(o uint, v uint8)
	Write16(o uint, v uint16)
	Write32(o uint, v uint32)
}

// Mmio is a Regs backed by a mapped register window.
// Register accesses must be naturally aligned.
type Mmio struct {
	Mem []byte
}

func NewMmio(b []byte) *Mmio { return &Mmio{Mem: b} }

func (m *Mmio) Len() uint { return uint(len(m.Mem)) }

func (m *Mmio) check(o, n uint) {
	if o+n > uint(len(m.Mem)) || o&(n-1) != 0 {
		panic(fmt.Errorf("hw: register access 0x%x/%d outside window 0x%x", o, n, len(m.Mem)))
	}
}

func (m *Mmio) addr(o uint) unsafe.Pointer { return unsafe.Pointer(&m.Mem[o]) }

//go:noinline
func (m *Mmio) Read8(o uint) uint8 {
	m.check(o, 1)
	return *(*uint8)(m.addr(o))
}

//go:noinline
func (m *Mmio) Read16(o uint) uint16 {
	m.check(o, 2)
	return *(*uint16)(m.addr(o))
}

func (m *Mmio) Read32(o uint) uint32 {
	m.check(o, 4)
	return atomic.LoadUint32((*uint32)(m.addr(o)))
}

//go:noinline
func (m *Mmio) Write8(o uint, v uint8) {
	m.check(o, 1)
	*(*uint8)(m.addr(o)) = v
}

//go:noinline
func (m *Mmio) Write16(o uint, v uint16) {
	m.check(o, 2)
	*(*uint16)(m.addr(o)) = v
}

func (m *Mmio) Write32(o uint, v uint32) {
	m.check(o, 4)
	atomic.StoreUint32((*uint32)(m.addr(o)), v)
}

var fence uint32

// MemoryBarrier orders all prior loads and stores before any later ones.
// Needed before trusting data the device wrote into DMA memory.
func MemoryBarrier() { atomic.AddUint32(&fence, 0) }
