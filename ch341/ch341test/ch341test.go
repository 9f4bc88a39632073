// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package ch341test is meant to be used to test drivers over a fake CH341
// USB handle.
package ch341test

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
)

// Op is the kind of USB transfer.
type Op int

// Transfer kinds.
const (
	Control Op = iota
	Write
	Read
)

func (o Op) String() string {
	switch o {
	case Control:
		return "Control"
	case Write:
		return "Write"
	case Read:
		return "Read"
	default:
		return fmt.Sprintf("Op(%d)", int(o))
	}
}

// IO registers the I/O that happened on either a real or fake USB handle.
type IO struct {
	Op Op
	// Request is the control request.
	Request uint8
	// W is the bulk out payload.
	W []byte
	// R is the data returned by a bulk in or control transfer.
	R []byte
	// Len is the buffer size of a bulk in transfer. On playback, zero means
	// any size.
	Len int
	// Short is withheld from the byte count reported by a playback write.
	Short int
	// Err is returned by the playback instead of doing the transfer.
	Err error
}

// USB mirrors ch341.USB.
type USB interface {
	Control(rType, request uint8, val, idx uint16, data []byte) (int, error)
	WriteBulk(b []byte) (int, error)
	ReadBulk(b []byte) (int, error)
}

// Record implements ch341.USB that records everything written to it.
//
// This can then be used to feed to Playback to do "replay" based unit tests.
type Record struct {
	sync.Mutex
	USB USB // USB can be nil if only writes are being recorded.
	Ops []IO
}

// Control implements ch341.USB.
func (r *Record) Control(rType, request uint8, val, idx uint16, data []byte) (int, error) {
	r.Lock()
	defer r.Unlock()
	io := IO{Op: Control, Request: request}
	if r.USB == nil {
		r.Ops = append(r.Ops, io)
		return 0, errors.New("ch341test: no USB to read from")
	}
	n, err := r.USB.Control(rType, request, val, idx, data)
	io.R = clone(data[:n])
	io.Err = err
	r.Ops = append(r.Ops, io)
	return n, err
}

// WriteBulk implements ch341.USB.
func (r *Record) WriteBulk(b []byte) (int, error) {
	r.Lock()
	defer r.Unlock()
	io := IO{Op: Write, W: clone(b)}
	if r.USB == nil {
		r.Ops = append(r.Ops, io)
		return len(b), nil
	}
	n, err := r.USB.WriteBulk(b)
	io.Short = len(b) - n
	io.Err = err
	r.Ops = append(r.Ops, io)
	return n, err
}

// ReadBulk implements ch341.USB.
func (r *Record) ReadBulk(b []byte) (int, error) {
	r.Lock()
	defer r.Unlock()
	io := IO{Op: Read, Len: len(b)}
	if r.USB == nil {
		r.Ops = append(r.Ops, io)
		return 0, errors.New("ch341test: no USB to read from")
	}
	n, err := r.USB.ReadBulk(b)
	io.R = clone(b[:n])
	io.Err = err
	r.Ops = append(r.Ops, io)
	return n, err
}

// Playback implements ch341.USB and plays back a recorded I/O flow.
//
// While "replay" type of unit tests are of limited value, they still present
// an easy way to do basic code coverage.
//
// Set DontPanic to true to return an error instead of panicking on an
// unexpected transfer.
type Playback struct {
	sync.Mutex
	Ops       []IO
	Count     int
	DontPanic bool
}

// Close verifies that all the expected Ops have been consumed.
func (p *Playback) Close() error {
	p.Lock()
	defer p.Unlock()
	if len(p.Ops) != p.Count {
		return p.errorf("ch341test: expected playback to be empty: I/O count %d; expected %d", p.Count, len(p.Ops))
	}
	return nil
}

// Control implements ch341.USB.
func (p *Playback) Control(rType, request uint8, val, idx uint16, data []byte) (int, error) {
	p.Lock()
	defer p.Unlock()
	io, err := p.next(Control)
	if err != nil {
		return 0, err
	}
	if io.Request != request {
		return 0, p.errorf("ch341test: unexpected control request %#02x (count #%d) expected %#02x", request, p.Count-1, io.Request)
	}
	if io.Err != nil {
		return 0, io.Err
	}
	if len(io.R) > len(data) {
		return 0, p.errorf("ch341test: control reply of %d bytes doesn't fit in %d (count #%d)", len(io.R), len(data), p.Count-1)
	}
	return copy(data, io.R), nil
}

// WriteBulk implements ch341.USB.
func (p *Playback) WriteBulk(b []byte) (int, error) {
	p.Lock()
	defer p.Unlock()
	io, err := p.next(Write)
	if err != nil {
		return 0, err
	}
	if !bytes.Equal(io.W, b) {
		return 0, p.errorf("ch341test: unexpected write (count #%d)\n got  % x\n want % x", p.Count-1, b, io.W)
	}
	if io.Err != nil {
		return 0, io.Err
	}
	return len(b) - io.Short, nil
}

// ReadBulk implements ch341.USB.
func (p *Playback) ReadBulk(b []byte) (int, error) {
	p.Lock()
	defer p.Unlock()
	io, err := p.next(Read)
	if err != nil {
		return 0, err
	}
	if io.Len != 0 && io.Len != len(b) {
		return 0, p.errorf("ch341test: unexpected read length %d (count #%d) expected %d", len(b), p.Count-1, io.Len)
	}
	if io.Err != nil {
		return 0, io.Err
	}
	if len(io.R) > len(b) {
		return 0, p.errorf("ch341test: read reply of %d bytes doesn't fit in %d (count #%d)", len(io.R), len(b), p.Count-1)
	}
	return copy(b, io.R), nil
}

func (p *Playback) next(op Op) (IO, error) {
	if p.Count >= len(p.Ops) {
		return IO{}, p.errorf("ch341test: unexpected %s (count #%d)", op, p.Count)
	}
	io := p.Ops[p.Count]
	p.Count++
	if io.Op != op {
		return IO{}, p.errorf("ch341test: unexpected %s (count #%d) expected %s", op, p.Count-1, io.Op)
	}
	return io, nil
}

func (p *Playback) errorf(format string, a ...interface{}) error {
	err := fmt.Errorf(format, a...)
	if !p.DontPanic {
		panic(err)
	}
	return err
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte{}, b...)
}
