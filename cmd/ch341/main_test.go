// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import "testing"

func TestParseTriple(t *testing.T) {
	for _, test := range []struct {
		in      string
		want    [3]int
		wantErr bool
	}{
		{in: "0xa0:0:256", want: [3]int{0xa0, 0, 256}},
		{in: "0x48:0x01:2", want: [3]int{0x48, 1, 2}},
		{in: "0xa0:0", wantErr: true},
		{in: "0xa0:zz:1", wantErr: true},
	} {
		got, err := parseTriple(test.in)
		if (err != nil) != test.wantErr {
			t.Fatalf("%q: unexpected error %v", test.in, err)
		}
		if !test.wantErr && got != test.want {
			t.Fatalf("%q: got %v, want %v", test.in, got, test.want)
		}
	}
}

func TestParseDump(t *testing.T) {
	dev, off, n, err := parseDump("0xa0:0x10:256")
	if err != nil {
		t.Fatal(err)
	}
	if dev != 0xa0 || off != 0x10 || n != 256 {
		t.Fatalf("got %#x %#x %d", dev, off, n)
	}
	for _, in := range []string{"0x1a0:0:1", "-1:0:1", "0xa0:0:0", "0xa0:0:-4", "0xa0:0"} {
		if _, _, _, err := parseDump(in); err == nil {
			t.Fatalf("%q: expected an error", in)
		}
	}
}

func TestParseRead(t *testing.T) {
	addr, reg, n, err := parseRead("0x48:1:2")
	if err != nil {
		t.Fatal(err)
	}
	if addr != 0x48 || reg != 1 || n != 2 {
		t.Fatalf("got %#x %#x %d", addr, reg, n)
	}
	for _, in := range []string{"0x48:0:-1", "0x48:0:0", "0x80:0:1", "0x48:0x100:1", "0x48:-1:1"} {
		if _, _, _, err := parseRead(in); err == nil {
			t.Fatalf("%q: expected an error", in)
		}
	}
}
