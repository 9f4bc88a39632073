// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ch341

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Pins is the pin state word returned by a VendorI2CStatus query.
type Pins uint32

// Pin state bits. D0-D7 are the parallel data bus.
const (
	PinERR   Pins = 0x100    // read-write
	PinPEMP  Pins = 0x200    // read-write
	PinINT   Pins = 0x400    // read-write
	PinSLCT  Pins = 0x800    // read-write
	PinWAIT  Pins = 0x2000   // read-write
	PinDATAS Pins = 0x4000   // write, readable only
	PinADDRS Pins = 0x8000   // write, readable only
	PinRESET Pins = 0x10000  // write only
	PinWRITE Pins = 0x20000  // write only
	PinSCL   Pins = 0x400000 // read-only
	PinSDA   Pins = 0x800000 // read-only

	PinData Pins = 0xff000000
)

var pinNames = []struct {
	p    Pins
	name string
}{
	{PinERR, "ERR"},
	{PinPEMP, "PEMP"},
	{PinINT, "INT"},
	{PinSLCT, "SLCT"},
	{PinWAIT, "WAIT"},
	{PinDATAS, "DATAS"},
	{PinADDRS, "ADDRS"},
	{PinRESET, "RESET"},
	{PinWRITE, "WRITE"},
	{PinSCL, "SCL"},
	{PinSDA, "SDA"},
}

// Data returns the D0-D7 data bus bits.
func (p Pins) Data() byte {
	return byte((p & PinData) >> 24)
}

// Names returns the name of every set bit, data bus bits expanded as D0..D7.
func (p Pins) Names() []string {
	var out []string
	for _, n := range pinNames {
		if p&n.p != 0 {
			out = append(out, n.name)
		}
	}
	d := p.Data()
	for i := 0; i < 8; i++ {
		if d&(1<<uint(i)) != 0 {
			out = append(out, fmt.Sprintf("D%d", i))
		}
	}
	return out
}

func (p Pins) String() string {
	return "Pins[" + strings.Join(p.Names(), ",") + "]"
}

// Status is a decoded VendorI2CStatus reply.
type Status struct {
	Pins Pins
	// Extra is the 16 bit word following the pin state. Its meaning is
	// unknown.
	Extra uint16
}

func (s Status) String() string {
	return fmt.Sprintf("%s extra=0x%04x", s.Pins, s.Extra)
}

// DecodeStatus decodes a status reply. raw must hold at least 6 bytes, the
// chip sends 8.
func DecodeStatus(raw []byte) Status {
	return Status{
		Pins:  Pins(binary.BigEndian.Uint32(raw[0:4])),
		Extra: binary.BigEndian.Uint16(raw[4:6]),
	}
}
