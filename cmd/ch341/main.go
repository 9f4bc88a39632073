// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// ch341 talks to I²C devices through a CH341 USB bridge.
//
// Scan the bus:
//
//	ch341 -scan
//
// Dump the first 256 bytes of a 24C02 EEPROM:
//
//	ch341 -dump 0xa0:0:256
//
// Read 2 bytes at register 0 of a 7 bit device through the periph i2c.Bus:
//
//	ch341 -read 0x48:0:2
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/GermanBionicSystems/usbi2c/ch341"
	"github.com/GermanBionicSystems/usbi2c/ch341/ch341usb"
	"github.com/GermanBionicSystems/usbi2c/scangrid"
	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

func mainImpl() error {
	speed := flag.Int("speed", 100, "I²C clock in kHz, rounded down to 20, 100, 400 or 750")
	verbose := flag.Bool("v", false, "debug logging")
	scan := flag.Bool("scan", false, "probe address bytes 0 to 249")
	grid := flag.Bool("grid", false, "with -scan, print an i2cdetect style grid")
	dump := flag.String("dump", "", "EEPROM dump as dev:offset:count, e.g. 0xa0:0:256")
	manual := flag.Bool("manual", false, "run the manual smoke test against an EEPROM at 0xa0")
	read := flag.String("read", "", "register read as addr:reg:count through i2creg")
	flag.Parse()
	if flag.NArg() != 0 {
		return errors.New("unexpected argument, try -help")
	}

	log := logrus.New()
	log.SetOutput(os.Stderr)
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	if *read != "" {
		return readReg(*read, *speed)
	}

	uopts := ch341usb.DefaultOpts
	uopts.Logger = log
	copts := ch341.DefaultOpts
	copts.Logger = log
	copts.Speed = physic.Frequency(*speed) * physic.KiloHertz
	b, err := ch341usb.OpenBus(&uopts, &copts)
	if err != nil {
		return err
	}
	defer b.Close()

	switch {
	case *scan:
		return runScan(b.Dev, *grid)
	case *dump != "":
		dev, off, n, err := parseDump(*dump)
		if err != nil {
			return err
		}
		data, err := b.ReadEEPROM(dev, off, n)
		if err != nil {
			return err
		}
		log.Infof("received: %d bytes", len(data))
		hexdump(off, data)
		return nil
	case *manual:
		return smokeTest(b.Dev)
	default:
		return errors.New("specify one of -scan, -dump, -manual or -read")
	}
}

func runScan(d *ch341.Dev, grid bool) error {
	if grid {
		g := scangrid.New(&scangrid.Opts{Limit: ch341.ScanLimit})
		if err := d.ScanFunc(g.Set); err != nil {
			return err
		}
		return g.Flush()
	}
	var found []byte
	err := d.ScanFunc(func(a byte, ack bool) {
		fmt.Printf("address: %d (%#x) is: %t\n", a, a, ack)
		if ack {
			found = append(found, a)
		}
	})
	if err != nil {
		return err
	}
	hex := make([]string, len(found))
	for i, a := range found {
		hex[i] = fmt.Sprintf("%#x", a)
	}
	fmt.Printf("Responses from i2c devices at: %v [%s]\n", found, strings.Join(hex, " "))
	return nil
}

// smokeTest sets the read pointer of an EEPROM at 0xa0 to 0 byte by byte
// and reads a block back.
func smokeTest(d *ch341.Dev) error {
	if err := d.Start(); err != nil {
		return err
	}
	for _, b := range []byte{0xa0, 0x00} {
		ack, err := d.WriteByteChecked(b)
		if err != nil {
			return err
		}
		fmt.Printf("write %#02x ack: %t\n", b, ack)
	}
	if err := d.Start(); err != nil {
		return err
	}
	ack, err := d.WriteByteChecked(0xa1)
	if err != nil {
		return err
	}
	fmt.Printf("write 0xa1 ack: %t\n", ack)
	data, err := d.ReadBlock(6)
	if err != nil {
		return err
	}
	fmt.Printf("% x\n", data)
	return d.Stop()
}

// readReg goes through the periph registry, as any periph device driver
// would.
func readReg(arg string, khz int) error {
	addr, reg, n, err := parseRead(arg)
	if err != nil {
		return err
	}
	if _, err := host.Init(); err != nil {
		return err
	}
	bus, err := i2creg.Open("CH341")
	if err != nil {
		return err
	}
	defer bus.Close()
	if err := bus.SetSpeed(physic.Frequency(khz) * physic.KiloHertz); err != nil {
		return err
	}
	dev := i2c.Dev{Bus: bus, Addr: addr}
	r := make([]byte, n)
	if err := dev.Tx([]byte{reg}, r); err != nil {
		return err
	}
	fmt.Printf("% x\n", r)
	return nil
}

func parseTriple(s string) ([3]int, error) {
	var v [3]int
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return v, fmt.Errorf("expected a:b:c, got %q", s)
	}
	for i, p := range parts {
		n, err := strconv.ParseInt(p, 0, 32)
		if err != nil {
			return v, fmt.Errorf("%q: %w", s, err)
		}
		v[i] = int(n)
	}
	return v, nil
}

// parseDump parses the -dump argument. The offset is checked by ReadEEPROM.
func parseDump(s string) (byte, int, int, error) {
	v, err := parseTriple(s)
	if err != nil {
		return 0, 0, 0, err
	}
	if v[0] < 0 || v[0] > 0xff {
		return 0, 0, 0, fmt.Errorf("-dump: device address %#x doesn't fit a byte", v[0])
	}
	if v[2] < 1 {
		return 0, 0, 0, fmt.Errorf("-dump: count must be at least 1, got %d", v[2])
	}
	return byte(v[0]), v[1], v[2], nil
}

// parseRead parses the -read argument.
func parseRead(s string) (uint16, byte, int, error) {
	v, err := parseTriple(s)
	if err != nil {
		return 0, 0, 0, err
	}
	if v[0] < 0 || v[0] > 0x7f {
		return 0, 0, 0, fmt.Errorf("-read: %#x is not a 7 bit address", v[0])
	}
	if v[1] < 0 || v[1] > 0xff {
		return 0, 0, 0, fmt.Errorf("-read: register %#x doesn't fit a byte", v[1])
	}
	if v[2] < 1 {
		return 0, 0, 0, fmt.Errorf("-read: count must be at least 1, got %d", v[2])
	}
	return uint16(v[0]), byte(v[1]), v[2], nil
}

func hexdump(off int, data []byte) {
	for i := 0; i < len(data); i += 16 {
		end := i + 16
		if end > len(data) {
			end = len(data)
		}
		fmt.Printf("%04x: % x\n", off+i, data[i:end])
	}
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "ch341: %s.\n", err)
		os.Exit(1)
	}
}
