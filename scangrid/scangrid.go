// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package scangrid prints I²C probe results as an i2cdetect style grid on a
// terminal (stdout) using ANSI color codes.
package scangrid

import (
	"bytes"
	"fmt"
	"image/color"
	"io"

	"github.com/maruel/ansi256"
	"github.com/mattn/go-colorable"
)

// Opts represents the options available for this grid.
type Opts struct {
	// Limit is one past the last address byte shown. Defaults to 256.
	Limit   int
	Palette *ansi256.Palette
	// W defaults to a colorable stdout.
	W io.Writer

	_ struct{}
}

var (
	ackColor  = color.NRGBA{0, 200, 0, 255}
	nakColor  = color.NRGBA{60, 60, 60, 255}
	noneColor = color.NRGBA{0, 0, 0, 255}
)

// Grid accumulates probe results.
type Grid struct {
	w       io.Writer
	limit   int
	palette ansi256.Palette

	probed []bool
	acked  []bool
	buf    bytes.Buffer
}

// New returns a Grid that displays at the console.
func New(opts *Opts) *Grid {
	p := opts.Palette
	if p == nil {
		p = ansi256.Default
	}
	w := opts.W
	if w == nil {
		w = colorable.NewColorableStdout()
	}
	l := opts.Limit
	if l <= 0 || l > 256 {
		l = 256
	}
	return &Grid{
		w:       w,
		limit:   l,
		palette: *p,
		probed:  make([]bool, l),
		acked:   make([]bool, l),
	}
}

func (g *Grid) String() string {
	return "ScanGrid"
}

// Set records the probe result of address byte a. It has the signature
// expected by ch341.Dev.ScanFunc.
func (g *Grid) Set(a byte, ack bool) {
	if int(a) >= g.limit {
		return
	}
	g.probed[a] = true
	g.acked[a] = ack
}

// Acked returns the acknowledged address bytes in ascending order.
func (g *Grid) Acked() []byte {
	var out []byte
	for i, ok := range g.acked {
		if ok {
			out = append(out, byte(i))
		}
	}
	return out
}

// Flush writes the grid. Each row holds 16 address bytes; acknowledged ones
// are printed in hex over a colored block, the others as "--", and the ones
// never probed are left blank.
func (g *Grid) Flush() error {
	g.buf.Reset()
	_, _ = g.buf.WriteString("   ")
	for c := 0; c < 16; c++ {
		fmt.Fprintf(&g.buf, " %2x", c)
	}
	for a := 0; a < g.limit; a++ {
		if a%16 == 0 {
			fmt.Fprintf(&g.buf, "\033[0m\n%02x:", a)
		}
		c := noneColor
		cell := "  "
		switch {
		case g.acked[a]:
			c = ackColor
			cell = fmt.Sprintf("%02x", a)
		case g.probed[a]:
			c = nakColor
			cell = "--"
		}
		_, _ = io.WriteString(&g.buf, " "+g.palette.Block(c)+"\033[0m"+cell)
	}
	_, _ = g.buf.WriteString("\033[0m\n")
	_, err := g.buf.WriteTo(g.w)
	return err
}

var _ fmt.Stringer = &Grid{}
