// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ch341

// ScanLimit is one past the last address byte probed by Scan.
const ScanLimit = 250

// Scan probes every address byte from 0 to ScanLimit-1 and returns the ones
// that were acknowledged, in ascending order.
//
// The address bytes include the read/write bit, so a 7 bit device at 0x50
// shows up as 0xa0 and usually 0xa1.
func (d *Dev) Scan() ([]byte, error) {
	var found []byte
	err := d.ScanFunc(func(a byte, ack bool) {
		if ack {
			found = append(found, a)
		}
	})
	return found, err
}

// ScanFunc probes like Scan and calls fn with every result.
//
// The first transport error aborts the scan and is returned.
func (d *Dev) ScanFunc(fn func(a byte, ack bool)) error {
	for a := 0; a < ScanLimit; a++ {
		ack, err := d.Probe(byte(a))
		if err != nil {
			return err
		}
		d.log.Debugf("ch341: address %d (%#x) is: %t", a, a, ack)
		fn(byte(a), ack)
	}
	return nil
}
