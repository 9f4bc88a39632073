// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ch341

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

var (
	// ErrTransport is returned when a USB transfer fails or moves an
	// unexpected number of bytes. It is never retried.
	ErrTransport = errors.New("ch341: usb transfer failed")
	// ErrUnsupportedRange is returned when an EEPROM offset is above
	// MaxEEPROMOffset. No I/O is done.
	ErrUnsupportedRange = errors.New("ch341: address range unsupported")
	// ErrInvalidLength is returned for reads of less than one byte.
	ErrInvalidLength = errors.New("ch341: invalid length")
	// ErrNoAck is returned by Tx when the addressed device doesn't
	// acknowledge its address.
	ErrNoAck = errors.New("ch341: no acknowledge")
	// ErrAddressNotSupported is returned by Tx for 10 bit addresses.
	ErrAddressNotSupported = errors.New("ch341: 10-bit addressing not supported")
	// ErrStalled is returned when the chip keeps replying with empty reads
	// during a multi chunk transfer.
	ErrStalled = errors.New("ch341: device stalled")
)

// USB is an opened and configured CH341 handle.
//
// The handle is owned by the caller. Dev never opens, closes or resets it.
// Timeouts are the implementation's business; a timed out transfer must be
// reported as an error.
type USB interface {
	// Control performs a control transfer. Dev only uses vendor reads
	// (rType 0xc0).
	Control(rType, request uint8, val, idx uint16, data []byte) (int, error)
	// WriteBulk writes b to the bulk out endpoint.
	WriteBulk(b []byte) (int, error)
	// ReadBulk reads from the bulk in endpoint.
	ReadBulk(b []byte) (int, error)
}

// Logger receives the driver diagnostics. A logrus.FieldLogger satisfies
// it.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
}

// Opts contains options to pass to the constructor.
type Opts struct {
	// Speed is the initial bus clock. It is rounded down to a supported tier.
	// Zero leaves the chip as is.
	Speed physic.Frequency
	// MaxEmptyReads is the number of consecutive empty bulk reads tolerated
	// in a multi chunk read before giving up with ErrStalled.
	MaxEmptyReads int
	// Logger defaults to a discarding logrus logger.
	Logger Logger
}

// DefaultOpts is the recommended default options.
var DefaultOpts = Opts{
	Speed:         100 * physic.KiloHertz,
	MaxEmptyReads: 3,
}

// RequestTypeVendorRead is the bmRequestType of the vendor control reads.
const RequestTypeVendorRead = 0xc0

// New returns a CH341 bridge driver using the already opened handle u.
//
// It queries the chip version and pin state, logging both, then sets the
// clock speed.
//
// Dev implements i2c.Bus, so it can be used with any periph I²C device
// driver.
func New(u USB, opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	d := &Dev{u: u, maxEmpty: opts.MaxEmptyReads, log: opts.Logger}
	if d.maxEmpty <= 0 {
		d.maxEmpty = DefaultOpts.MaxEmptyReads
	}
	if d.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		d.log = l
	}
	major, minor, err := d.Version()
	if err != nil {
		return nil, err
	}
	d.log.Infof("ch341: vendor version = %d.%d (%x.%x)", major, minor, major, minor)
	st, err := d.Status()
	if err != nil {
		return nil, err
	}
	d.log.Debugf("ch341: i2c status = %s", st)
	if opts.Speed != 0 {
		if err := d.SetSpeed(opts.Speed); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Dev is a handle to a CH341 in I²C mode.
//
// All methods are synchronous and serialized; the chip's bus can't have two
// command sequences in flight.
type Dev struct {
	sync.Mutex // lock for the bus while a transaction is in progress
	u          USB
	maxEmpty   int
	log        Logger
}

func (d *Dev) String() string {
	return "CH341"
}

// Halt implements conn.Resource.
func (d *Dev) Halt() error {
	return nil
}

// Version returns the chip's vendor version.
func (d *Dev) Version() (byte, byte, error) {
	d.Lock()
	defer d.Unlock()
	var b [2]byte
	if err := d.vendorRead(VendorVersion, b[:]); err != nil {
		return 0, 0, err
	}
	return b[0], b[1], nil
}

// Status returns the current pin state. It is only informational.
func (d *Dev) Status() (Status, error) {
	d.Lock()
	defer d.Unlock()
	return d.status()
}

// SetSpeed implements i2c.Bus.
//
// f is rounded down to 20kHz, 100kHz, 400kHz or 750kHz.
func (d *Dev) SetSpeed(f physic.Frequency) error {
	return d.SetSpeedKHz(int(f / physic.KiloHertz))
}

// SetSpeedKHz sets the bus clock, rounding khz down to a supported tier.
func (d *Dev) SetSpeedKHz(khz int) error {
	s := SpeedFromKHz(khz)
	d.Lock()
	defer d.Unlock()
	d.log.Debugf("ch341: speed %dkHz -> %s", khz, s)
	return d.write(EncodeSpeed(s))
}

// Start issues a start condition. The chip doesn't reply.
func (d *Dev) Start() error {
	d.Lock()
	defer d.Unlock()
	return d.write(EncodeStart())
}

// Stop issues a stop condition. The chip doesn't reply.
//
// The stop is not reliable on real hardware: the bus is not guaranteed to be
// idle afterward. Callers needing that guarantee must check it, e.g. with a
// follow up Probe.
func (d *Dev) Stop() error {
	d.Lock()
	defer d.Unlock()
	return d.write(EncodeStop())
}

// Probe issues start, writes a and a stop. It returns true if a was
// acknowledged.
//
// a is the address byte as sent on the wire, read/write bit included.
func (d *Dev) Probe(a byte) (bool, error) {
	d.Lock()
	defer d.Unlock()
	return d.checked(EncodeProbe(a))
}

// WriteByteChecked writes b and returns true if it was acknowledged.
func (d *Dev) WriteByteChecked(b byte) (bool, error) {
	d.Lock()
	defer d.Unlock()
	return d.checked(EncodeWriteByte(b))
}

// ReadBlock reads one chunk from the bus and returns what the chip sent,
// which may be shorter or longer than n. At most MaxChunk bytes are read.
func (d *Dev) ReadBlock(n int) ([]byte, error) {
	d.Lock()
	defer d.Unlock()
	if err := d.write([]byte{byte(VendorI2C), byte(I2CIn), byte(I2CEnd)}); err != nil {
		return nil, err
	}
	b := make([]byte, MaxChunk)
	got, err := d.u.ReadBulk(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	d.log.Debugf("ch341: read block of %d bytes, asked %d: % x", got, n, b[:got])
	return b[:got], nil
}

// Tx implements i2c.Bus.
//
// The address is acknowledge checked before each phase; a NAK ends the
// transaction with a stop and returns ErrNoAck. Data bytes are not checked.
// Any other failure is followed by a best effort stop and the original
// error is returned. As with Stop, the bus may still not be idle.
func (d *Dev) Tx(addr uint16, w, r []byte) error {
	if addr > 0x7f {
		return fmt.Errorf("%w: %#x", ErrAddressNotSupported, addr)
	}
	d.Lock()
	defer d.Unlock()
	err := d.tx(byte(addr), w, r)
	if err != nil && !errors.Is(err, ErrNoAck) {
		if serr := d.write(EncodeStop()); serr != nil {
			d.log.Debugf("ch341: stop after failed transaction: %v", serr)
		}
	}
	return err
}

func (d *Dev) tx(addr byte, w, r []byte) error {
	if len(w) != 0 || len(r) == 0 {
		if err := d.address(addr << 1); err != nil {
			return err
		}
		for _, b := range EncodeWrite(w) {
			if err := d.write(b); err != nil {
				return err
			}
		}
	}
	if len(r) == 0 {
		return d.write(EncodeStop())
	}
	if err := d.address(addr<<1 | 1); err != nil {
		return err
	}
	if err := d.write(appendRead([]byte{byte(VendorI2C)}, len(r))); err != nil {
		return err
	}
	return d.receive(r)
}

//

// address sends a start and the address byte a, failing with ErrNoAck if
// it isn't acknowledged.
func (d *Dev) address(a byte) error {
	ack, err := d.checked([]byte{byte(VendorI2C), byte(I2CStart), byte(I2COut), a, byte(I2CEnd)})
	if err != nil {
		return err
	}
	if !ack {
		if err := d.write(EncodeStop()); err != nil {
			return err
		}
		return fmt.Errorf("%w: address byte %#02x", ErrNoAck, a)
	}
	return nil
}

// checked writes cmd and reads the single byte acknowledge reply.
func (d *Dev) checked(cmd []byte) (bool, error) {
	if err := d.write(cmd); err != nil {
		return false, err
	}
	var b [MaxChunk]byte
	n, err := d.u.ReadBulk(b[:])
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	if n != 1 {
		return false, fmt.Errorf("%w: got %d bytes, expected an ack byte", ErrTransport, n)
	}
	return isAck(b[0]), nil
}

// isAck interprets a reply byte; bit 7 clear means acknowledged.
func isAck(b byte) bool {
	return b&0x80 == 0
}

func (d *Dev) write(cmd []byte) error {
	d.log.Debugf("ch341: writing: % x", cmd)
	n, err := d.u.WriteBulk(cmd)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	if n != len(cmd) {
		return fmt.Errorf("%w: wrote %d of %d bytes", ErrTransport, n, len(cmd))
	}
	return nil
}

func (d *Dev) vendorRead(req VendorCmd, b []byte) error {
	n, err := d.u.Control(RequestTypeVendorRead, uint8(req), 0, 0, b)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrTransport, req, err)
	}
	if n != len(b) {
		return fmt.Errorf("%w: %s: got %d of %d bytes", ErrTransport, req, n, len(b))
	}
	return nil
}

func (d *Dev) status() (Status, error) {
	var b [8]byte
	if err := d.vendorRead(VendorI2CStatus, b[:]); err != nil {
		return Status{}, err
	}
	return DecodeStatus(b[:]), nil
}

var _ conn.Resource = &Dev{}
var _ i2c.Bus = &Dev{}
