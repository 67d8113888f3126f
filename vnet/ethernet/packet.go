// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ethernet

import (
	"encoding/binary"
	"errors"
)

// Header for ethernet packets as they appear on the network.
type Header struct {
	Dst  Address
	Src  Address
	Type Type
}

// Packet type from ethernet header.
type Type uint16

const (
	TYPE_IP4  Type = 0x0800
	TYPE_ARP  Type = 0x0806
	TYPE_VLAN Type = 0x8100
	TYPE_IP6  Type = 0x86dd
)

const (
	AddressBytes = 6
	HeaderBytes  = 14
	// Shortest frame on the wire not counting CRC.
	MinPacketBytes = 60
	CrcBytes       = 4
)

var ErrShortHeader = errors.New("ethernet: frame shorter than header")

type Address [AddressBytes]byte

var BroadcastAddr = Address{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

const (
	isGroup               = 1 << 0
	isLocallyAdministered = 1 << 1
)

func (a *Address) IsBroadcast() bool { return a.Equal(BroadcastAddr) }
func (a *Address) IsMulticast() bool { return a[0]&isGroup != 0 }
func (a *Address) IsUnicast() bool   { return !a.IsMulticast() }
func (a *Address) IsZero() bool      { return a.Equal(Address{}) }

func (a *Address) IsLocallyAdministered() bool {
	return a[0]&isLocallyAdministered != 0
}

func (a *Address) Equal(b Address) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (h *Header) IsBroadcast() bool { return h.Dst.IsBroadcast() }
func (h *Header) IsUnicast() bool   { return h.Dst.IsUnicast() }

// Read header from start of frame.
func (h *Header) Read(b []byte) error {
	if len(b) < HeaderBytes {
		return ErrShortHeader
	}
	copy(h.Dst[:], b[0:6])
	copy(h.Src[:], b[6:12])
	h.Type = Type(binary.BigEndian.Uint16(b[12:14]))
	return nil
}

// Write header to start of frame.
func (h *Header) Write(b []byte) error {
	if len(b) < HeaderBytes {
		return ErrShortHeader
	}
	copy(b[0:6], h.Dst[:])
	copy(b[6:12], h.Src[:])
	binary.BigEndian.PutUint16(b[12:14], uint16(h.Type))
	return nil
}
