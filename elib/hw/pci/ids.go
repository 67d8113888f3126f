// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pci

import "fmt"

// Base class and subclass from config space class code.
type DeviceClass uint16

const (
	Undefined        DeviceClass = 0x0000
	Storage_Other    DeviceClass = 0x0180
	Network_Ethernet DeviceClass = 0x0200
	Network_Other    DeviceClass = 0x0280
	Display_VGA      DeviceClass = 0x0300
	Bridge_Host      DeviceClass = 0x0600
	Bridge_ISA       DeviceClass = 0x0601
	Bridge_PCI       DeviceClass = 0x0604
	Bridge_Other     DeviceClass = 0x0680
	Serial_USB       DeviceClass = 0x0c03
	Serial_SMBUS     DeviceClass = 0x0c05
)

var deviceClassNames = map[DeviceClass]string{
	Undefined:        "Undefined",
	Storage_Other:    "Storage_Other",
	Network_Ethernet: "Network_Ethernet",
	Network_Other:    "Network_Other",
	Display_VGA:      "Display_VGA",
	Bridge_Host:      "Bridge_Host",
	Bridge_ISA:       "Bridge_ISA",
	Bridge_PCI:       "Bridge_PCI",
	Bridge_Other:     "Bridge_Other",
	Serial_USB:       "Serial_USB",
	Serial_SMBUS:     "Serial_SMBUS",
}

func (c DeviceClass) String() string {
	if s, ok := deviceClassNames[c]; ok {
		return s
	}
	return fmt.Sprintf("DeviceClass(0x%04x)", uint16(c))
}

const (
	Broadcom VendorID = 0x14e4
	Intel    VendorID = 0x8086
	Realtek  VendorID = 0x10ec
)
