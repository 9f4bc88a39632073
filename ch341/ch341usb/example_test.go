// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ch341usb_test

import (
	"fmt"
	"log"

	"github.com/GermanBionicSystems/usbi2c/ch341"
	"github.com/GermanBionicSystems/usbi2c/ch341/ch341usb"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

func Example() {
	// Make sure periph is initialized. This registers the CH341 bus when one
	// is connected.
	if _, err := host.Init(); err != nil {
		log.Fatal(err)
	}

	bus, err := i2creg.Open("CH341")
	if err != nil {
		log.Fatalf("failed to open I²C: %v", err)
	}
	defer bus.Close()

	// Read the temperature register of a TMP102.
	d := i2c.Dev{Bus: bus, Addr: 0x48}
	var b [2]byte
	if err := d.Tx([]byte{0x00}, b[:]); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("% x\n", b)
}

func ExampleOpen() {
	u, err := ch341usb.Open(&ch341usb.DefaultOpts)
	if err != nil {
		log.Fatal(err)
	}
	defer u.Close()

	opts := ch341.DefaultOpts
	opts.Speed = 400 * physic.KiloHertz
	d, err := ch341.New(u, &opts)
	if err != nil {
		log.Fatal(err)
	}

	found, err := d.Scan()
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Responses from i2c devices at: % x\n", found)

	// Read the first 128 bytes of a 24C02.
	data, err := d.ReadEEPROM(0xa0, 0, 128)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("% x\n", data)
}
