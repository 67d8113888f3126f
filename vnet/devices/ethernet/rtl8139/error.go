// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rtl8139

import (
	"errors"
	"fmt"
)

type ErrorKind int

const (
	// No matching hardware found.
	DeviceAbsent ErrorKind = iota + 1
	// Region already reserved, or bus refused a resource.
	ResourceUnavailable
	// Register window cannot be mapped (including port I/O BARs).
	MapFailure
	// DMA memory allocation failed.
	OutOfMemory
	// Transmit backpressure; not a dropped frame.
	RingFull
	FrameTooLarge
	// Error bits seen in interrupt status.
	HardwareFault
	// Soft reset did not complete within poll budget.
	ResetTimeout
	// Operation not valid in current lifecycle state.
	InvalidState
)

var errorKindNames = [...]string{
	DeviceAbsent:        "device absent",
	ResourceUnavailable: "resource unavailable",
	MapFailure:          "map failure",
	OutOfMemory:         "out of memory",
	RingFull:            "ring full",
	FrameTooLarge:       "frame too large",
	HardwareFault:       "hardware fault",
	ResetTimeout:        "reset timeout",
	InvalidState:        "invalid state",
}

func (k ErrorKind) String() string {
	if k > 0 && int(k) < len(errorKindNames) {
		return errorKindNames[k]
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Error is the error type returned by all driver operations.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	s := "rtl8139: "
	if e.Op != "" {
		s += e.Op + ": "
	}
	s += e.Kind.String()
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrRingFull) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrDeviceAbsent        = &Error{Kind: DeviceAbsent}
	ErrResourceUnavailable = &Error{Kind: ResourceUnavailable}
	ErrMapFailure          = &Error{Kind: MapFailure}
	ErrOutOfMemory         = &Error{Kind: OutOfMemory}
	ErrRingFull            = &Error{Kind: RingFull}
	ErrFrameTooLarge       = &Error{Kind: FrameTooLarge}
	ErrHardwareFault       = &Error{Kind: HardwareFault}
	ErrResetTimeout        = &Error{Kind: ResetTimeout}
	ErrInvalidState        = &Error{Kind: InvalidState}
)

func newError(k ErrorKind, op string, err error) *Error {
	return &Error{Kind: k, Op: op, Err: err}
}

// KindOf returns kind of first *Error in err's chain or 0 if none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
