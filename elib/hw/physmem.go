// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hw

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// DmaMem is memory a device may read and write directly.
type DmaMem struct {
	Data []byte
	// Bus address of Data[0].
	Phys uint64

	mapping []byte
}

func (m *DmaMem) Len() uint                 { return uint(len(m.Data)) }
func (m *DmaMem) PhysAt(offset uint) uint64 { return m.Phys + uint64(offset) }

func (m *DmaMem) String() string {
	return fmt.Sprintf("{dma 0x%x-0x%x}", m.Phys, m.Phys+uint64(len(m.Data))-1)
}

var ErrDmaTooBig = errors.New("dma allocation larger than a huge page")

const (
	log2_page_size      = 12
	log2_huge_page_size = log2_page_size + 9
	page_size           = 1 << log2_page_size
	huge_page_size      = 1 << log2_huge_page_size
)

// DmaHeap hands out physically contiguous DMA memory, one locked huge
// page per allocation.
type DmaHeap struct {
	mu     sync.Mutex
	in_use int
}

func (h *DmaHeap) Alloc(n uint) (m *DmaMem, err error) {
	if n > huge_page_size {
		err = ErrDmaTooBig
		return
	}
	var b []byte
	b, err = unix.Mmap(-1, 0, huge_page_size,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_SHARED|unix.MAP_ANONYMOUS|unix.MAP_HUGETLB|unix.MAP_LOCKED|unix.MAP_POPULATE)
	if err != nil {
		err = fmt.Errorf("mmap dma: %w", err)
		return
	}
	var phys uint64
	if phys, err = PhysAddress(uintptr(unsafe.Pointer(&b[0]))); err != nil {
		unix.Munmap(b)
		return
	}
	m = &DmaMem{Data: b[:n], Phys: phys, mapping: b}
	h.mu.Lock()
	h.in_use++
	h.mu.Unlock()
	return
}

func (h *DmaHeap) Free(m *DmaMem) (err error) {
	if m == nil || m.mapping == nil {
		return
	}
	if err = unix.Munmap(m.mapping); err != nil {
		return fmt.Errorf("munmap dma: %w", err)
	}
	m.mapping, m.Data = nil, nil
	h.mu.Lock()
	h.in_use--
	h.mu.Unlock()
	return
}

// InUse returns the number of allocations not yet freed.
func (h *DmaHeap) InUse() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.in_use
}

// PhysAddress translates a locked virtual address via /proc/self/pagemap.
func PhysAddress(a uintptr) (phys uint64, err error) {
	f, err := os.Open("/proc/self/pagemap")
	if err != nil {
		return
	}
	defer f.Close()

	var b [8]byte
	pfn := int64(a) / page_size
	if _, err = f.ReadAt(b[:], pfn*8); err != nil {
		return
	}
	v := binary.LittleEndian.Uint64(b[:])
	const present = 1 << 63
	if v&present == 0 {
		err = fmt.Errorf("pagemap: page 0x%x not present", a)
		return
	}

	// Bits 0-54 are the physical page number.
	phys = (v&(1<<55-1))*page_size + uint64(a&(page_size-1))
	if phys == 0 {
		err = errors.New("pagemap: physical address hidden; need CAP_SYS_ADMIN")
	}
	return
}
