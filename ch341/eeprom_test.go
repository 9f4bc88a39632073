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

func status() ch341test.IO {
	return ctrl(VendorI2CStatus, 0, 0xc0, 0, 0, 0, 0, 0, 0)
}

func seq(start, n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(start + i)
	}
	return b
}

func TestReadEEPROMSingleChunk(t *testing.T) {
	cmd, err := EncodeEEPROMRead(0xa0, 0x10, 6)
	if err != nil {
		t.Fatal(err)
	}
	pb := ch341test.Playback{Ops: []ch341test.IO{
		status(),
		wr(cmd...),
		status(),
		{Op: ch341test.Read, Len: 6, R: seq(0x10, 6)},
	}}
	defer pb.Close()
	d := newDev(&pb)
	got, err := d.ReadEEPROM(0xa0, 0x10, 6)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(seq(0x10, 6), got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestReadEEPROMMultiChunk(t *testing.T) {
	cmd, err := EncodeEEPROMRead(0xa0, 0, 65)
	if err != nil {
		t.Fatal(err)
	}
	pb := ch341test.Playback{Ops: []ch341test.IO{
		status(),
		wr(cmd...),
		status(),
		// Every read asks for what remains, the chip caps each at 32.
		{Op: ch341test.Read, Len: 65, R: seq(0, 32)},
		{Op: ch341test.Read, Len: 33, R: seq(32, 32)},
		{Op: ch341test.Read, Len: 1, R: seq(64, 1)},
	}}
	rec := ch341test.Record{USB: &pb}
	d := newDev(&rec)
	got, err := d.ReadEEPROM(0xa0, 0, 65)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(seq(0, 65), got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
	if err := pb.Close(); err != nil {
		t.Fatal(err)
	}
	reads := 0
	for _, io := range rec.Ops {
		if io.Op == ch341test.Read {
			reads++
		}
	}
	if reads < 2 {
		t.Fatalf("expected at least 2 bulk reads, got %d", reads)
	}
}

func TestReadEEPROMOffset(t *testing.T) {
	// Rejected before any I/O.
	pb := ch341test.Playback{DontPanic: true}
	d := newDev(&pb)
	if _, err := d.ReadEEPROM(0xa0, 0x800, 1); !errors.Is(err, ErrUnsupportedRange) {
		t.Fatalf("expected ErrUnsupportedRange, got %v", err)
	}
	if pb.Count != 0 {
		t.Fatalf("expected no I/O, got %d", pb.Count)
	}

	cmd, err := EncodeEEPROMRead(0xa0, 0x7ff, 1)
	if err != nil {
		t.Fatal(err)
	}
	pb = ch341test.Playback{Ops: []ch341test.IO{
		status(),
		wr(cmd...),
		status(),
		rd(0x5a),
	}}
	defer pb.Close()
	d = newDev(&pb)
	got, err := d.ReadEEPROM(0xa0, 0x7ff, 1)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]byte{0x5a}, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestReadEEPROMErrors(t *testing.T) {
	one, err := EncodeEEPROMRead(0xa0, 0, 4)
	if err != nil {
		t.Fatal(err)
	}
	many, err := EncodeEEPROMRead(0xa0, 0, 40)
	if err != nil {
		t.Fatal(err)
	}
	for _, test := range []struct {
		name      string
		n         int
		ops       []ch341test.IO
		expectErr error
	}{
		{
			name: "short write",
			n:    4,
			ops: []ch341test.IO{
				status(),
				{Op: ch341test.Write, W: one, Short: 4},
			},
			expectErr: ErrTransport,
		},
		{
			name: "short single chunk read",
			n:    4,
			ops: []ch341test.IO{
				status(),
				wr(one...),
				status(),
				rd(1, 2),
			},
			expectErr: ErrTransport,
		},
		{
			name: "read failure",
			n:    40,
			ops: []ch341test.IO{
				status(),
				wr(many...),
				status(),
				rd(seq(0, 32)...),
				{Op: ch341test.Read, Err: errors.New("timeout")},
			},
			expectErr: ErrTransport,
		},
		{
			name: "stalled",
			n:    40,
			ops: []ch341test.IO{
				status(),
				wr(many...),
				status(),
				rd(seq(0, 32)...),
				rd(),
				rd(),
				rd(),
			},
			expectErr: ErrStalled,
		},
		{
			name: "empty reads interleaved",
			n:    40,
			ops: []ch341test.IO{
				status(),
				wr(many...),
				status(),
				rd(),
				rd(seq(0, 32)...),
				rd(),
				rd(),
				rd(seq(32, 8)...),
			},
		},
		{
			name: "status failure is only logged",
			n:    4,
			ops: []ch341test.IO{
				{Op: ch341test.Control, Request: uint8(VendorI2CStatus), Err: errors.New("stall")},
				wr(one...),
				status(),
				rd(seq(0, 4)...),
			},
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			pb := ch341test.Playback{Ops: test.ops, DontPanic: true}
			d := newDev(&pb)
			_, err := d.ReadEEPROM(0xa0, 0, test.n)
			if !errors.Is(err, test.expectErr) {
				t.Fatalf("expected error: %v, got: %v", test.expectErr, err)
			}
			if err := pb.Close(); err != nil {
				t.Fatal(err)
			}
		})
	}
}
