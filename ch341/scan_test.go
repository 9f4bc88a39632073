// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ch341

import (
	"errors"
	"testing"

	"github.com/GermanBionicSystems/usbi2c/ch341/ch341test"
	"github.com/google/go-cmp/cmp"
)

// scanOps returns the probe flow of a bus where only present acknowledges.
func scanOps(present ...byte) []ch341test.IO {
	var ops []ch341test.IO
	for a := 0; a < ScanLimit; a++ {
		reply := byte(0x80)
		for _, p := range present {
			if byte(a) == p {
				reply = 0x00
			}
		}
		ops = append(ops, wr(EncodeProbe(byte(a))...), rd(reply))
	}
	return ops
}

func TestScan(t *testing.T) {
	pb := ch341test.Playback{Ops: scanOps(0x57, 0x50)}
	defer pb.Close()
	d := newDev(&pb)
	got, err := d.Scan()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]byte{0x50, 0x57}, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestScanFunc(t *testing.T) {
	pb := ch341test.Playback{Ops: scanOps(0xa0)}
	defer pb.Close()
	d := newDev(&pb)
	var probed []byte
	acked := 0
	err := d.ScanFunc(func(a byte, ack bool) {
		probed = append(probed, a)
		if ack {
			acked++
		}
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(probed) != ScanLimit || probed[0] != 0 || probed[ScanLimit-1] != ScanLimit-1 {
		t.Fatalf("unexpected probe order: % x", probed)
	}
	if acked != 1 {
		t.Fatalf("expected 1 ack, got %d", acked)
	}
}

func TestScanAbort(t *testing.T) {
	ops := scanOps()[:7]
	ops = append(ops, ch341test.IO{Op: ch341test.Read, Err: errors.New("no device")})
	pb := ch341test.Playback{Ops: ops, DontPanic: true}
	d := newDev(&pb)
	found, err := d.Scan()
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
	if len(found) != 0 {
		t.Fatalf("unexpected result %v", found)
	}
	if err := pb.Close(); err != nil {
		t.Fatal(err)
	}
}
