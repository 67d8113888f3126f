// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ethernet

import (
	"fmt"
)

func (a *Address) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", a[0], a[1], a[2], a[3], a[4], a[5])
}

// Parse accepts aa:bb:cc:dd:ee:ff or aabb.ccdd.eeff.
func (a *Address) Parse(s string) (err error) {
	var (
		x [6]uint8
		b [3]uint16
	)
	if _, err = fmt.Sscanf(s, "%x:%x:%x:%x:%x:%x", &x[0], &x[1], &x[2], &x[3], &x[4], &x[5]); err == nil {
		*a = Address(x)
		return
	}
	if _, err = fmt.Sscanf(s, "%x.%x.%x", &b[0], &b[1], &b[2]); err == nil {
		a[0], a[1] = uint8(b[0]>>8), uint8(b[0])
		a[2], a[3] = uint8(b[1]>>8), uint8(b[1])
		a[4], a[5] = uint8(b[2]>>8), uint8(b[2])
		return
	}
	return fmt.Errorf("ethernet: bad address %q", s)
}

var typeNames = map[Type]string{
	TYPE_IP4:  "IP4",
	TYPE_ARP:  "ARP",
	TYPE_VLAN: "VLAN",
	TYPE_IP6:  "IP6",
}

func (t Type) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("0x%04x", uint16(t))
}

func (h *Header) String() string {
	return fmt.Sprintf("%s: %s -> %s", h.Type, &h.Src, &h.Dst)
}
