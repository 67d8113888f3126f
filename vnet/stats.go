// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vnet

// Interface statistics as reported by a driver.
type Stats struct {
	RxPackets, TxPackets uint64
	RxBytes, TxBytes     uint64
	RxErrors, TxErrors   uint64
	RxDropped, TxDropped uint64
	Multicast            uint64
	Collisions           uint64

	// Detailed rx errors
	RxLengthErrors uint64
	RxOverErrors   uint64
	RxCrcErrors    uint64
	RxFrameErrors  uint64
	RxFifoErrors   uint64
	RxMissedErrors uint64

	// Detailed tx errors
	TxAbortedErrors uint64
	TxCarrierErrors uint64
	TxFifoErrors    uint64
	TxWindowErrors  uint64
}

// Foreach calls f for each statistic in a fixed order.
func (s *Stats) Foreach(f func(name string, value uint64)) {
	for _, x := range []struct {
		name string
		v    uint64
	}{
		{"rx packets", s.RxPackets},
		{"tx packets", s.TxPackets},
		{"rx bytes", s.RxBytes},
		{"tx bytes", s.TxBytes},
		{"rx errors", s.RxErrors},
		{"tx errors", s.TxErrors},
		{"rx dropped", s.RxDropped},
		{"tx dropped", s.TxDropped},
		{"multicast", s.Multicast},
		{"collisions", s.Collisions},
		{"rx length errors", s.RxLengthErrors},
		{"rx over errors", s.RxOverErrors},
		{"rx crc errors", s.RxCrcErrors},
		{"rx frame errors", s.RxFrameErrors},
		{"rx fifo errors", s.RxFifoErrors},
		{"rx missed errors", s.RxMissedErrors},
		{"tx aborted errors", s.TxAbortedErrors},
		{"tx carrier errors", s.TxCarrierErrors},
		{"tx fifo errors", s.TxFifoErrors},
		{"tx window errors", s.TxWindowErrors},
	} {
		f(x.name, x.v)
	}
}

// Sub returns s - last, for rate computations.
func (s Stats) Sub(last Stats) (d Stats) {
	d = s
	d.RxPackets -= last.RxPackets
	d.TxPackets -= last.TxPackets
	d.RxBytes -= last.RxBytes
	d.TxBytes -= last.TxBytes
	d.RxErrors -= last.RxErrors
	d.TxErrors -= last.TxErrors
	d.RxDropped -= last.RxDropped
	d.TxDropped -= last.TxDropped
	d.Multicast -= last.Multicast
	d.Collisions -= last.Collisions
	d.RxLengthErrors -= last.RxLengthErrors
	d.RxOverErrors -= last.RxOverErrors
	d.RxCrcErrors -= last.RxCrcErrors
	d.RxFrameErrors -= last.RxFrameErrors
	d.RxFifoErrors -= last.RxFifoErrors
	d.RxMissedErrors -= last.RxMissedErrors
	d.TxAbortedErrors -= last.TxAbortedErrors
	d.TxCarrierErrors -= last.TxCarrierErrors
	d.TxFifoErrors -= last.TxFifoErrors
	d.TxWindowErrors -= last.TxWindowErrors
	return
}
