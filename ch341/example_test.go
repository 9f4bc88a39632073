// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ch341_test

import (
	"fmt"
	"log"

	"github.com/GermanBionicSystems/usbi2c/ch341"
	"github.com/GermanBionicSystems/usbi2c/ch341/ch341test"
)

func Example() {
	// A real handle comes from ch341usb.Open. This one replays what a CH341
	// with a 24C02 at 0xa0 sends.
	cmd, err := ch341.EncodeEEPROMRead(0xa0, 0x10, 4)
	if err != nil {
		log.Fatal(err)
	}
	status := ch341test.IO{Op: ch341test.Control, Request: uint8(ch341.VendorI2CStatus), R: make([]byte, 8)}
	u := &ch341test.Playback{Ops: []ch341test.IO{
		{Op: ch341test.Control, Request: uint8(ch341.VendorVersion), R: []byte{0x30, 0x04}},
		status,
		{Op: ch341test.Write, W: ch341.EncodeSpeed(ch341.Speed100kHz)},
		status,
		{Op: ch341test.Write, W: cmd},
		status,
		{Op: ch341test.Read, R: []byte{0xde, 0xad, 0xbe, 0xef}},
	}}
	defer u.Close()

	d, err := ch341.New(u, &ch341.DefaultOpts)
	if err != nil {
		log.Fatal(err)
	}
	data, err := d.ReadEEPROM(0xa0, 0x10, 4)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("% x\n", data)
	// Output: de ad be ef
}
