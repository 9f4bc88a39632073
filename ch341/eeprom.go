// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ch341

import "fmt"

// ReadEEPROM reads n bytes starting at offset off from a 24Cxx EEPROM at
// device address byte dev (e.g. 0xa0).
//
// Offsets up to MaxEEPROMOffset (24C01 to 24C16) are supported; anything
// higher fails with ErrUnsupportedRange before any transfer.
//
// Reads of more than MaxChunk bytes are sent as a single multi block command
// and drained in as many bulk reads as the chip needs.
func (d *Dev) ReadEEPROM(dev byte, off, n int) ([]byte, error) {
	cmd, err := EncodeEEPROMRead(dev, off, n)
	if err != nil {
		return nil, err
	}
	d.Lock()
	defer d.Unlock()
	d.logStatus()
	if err := d.write(cmd); err != nil {
		return nil, err
	}
	d.logStatus()
	b := make([]byte, n)
	if n <= MaxChunk {
		got, err := d.u.ReadBulk(b)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTransport, err)
		}
		if got != n {
			return nil, fmt.Errorf("%w: read %d of %d bytes", ErrTransport, got, n)
		}
		return b, nil
	}
	if err := d.receive(b); err != nil {
		return nil, err
	}
	return b, nil
}

// receive fills r with consecutive bulk reads, each asking for what remains.
// The chip splits its reply in MaxChunk sized transfers on its own.
//
// d.maxEmpty consecutive empty reads abort with ErrStalled.
func (d *Dev) receive(r []byte) error {
	empty := 0
	for got := 0; got < len(r); {
		n, err := d.u.ReadBulk(r[got:])
		if err != nil {
			return fmt.Errorf("%w: after %d of %d bytes: %v", ErrTransport, got, len(r), err)
		}
		if n == 0 {
			if empty++; empty >= d.maxEmpty {
				return fmt.Errorf("%w: after %d of %d bytes", ErrStalled, got, len(r))
			}
			continue
		}
		empty = 0
		d.log.Debugf("ch341: received %d bytes, %d/%d", n, got+n, len(r))
		got += n
	}
	return nil
}

// logStatus logs the pin state. Failures are logged too, the status is only
// informational.
func (d *Dev) logStatus() {
	st, err := d.status()
	if err != nil {
		d.log.Debugf("ch341: i2c status: %v", err)
		return
	}
	d.log.Debugf("ch341: i2c status = %s", st)
}
