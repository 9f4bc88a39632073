// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package ch341usb opens a CH341 through libusb and exposes it as a
// ch341.USB handle.
//
// Importing this package also registers a periph driver that makes the first
// CH341 available in i2creg under the name "CH341" once host.Init() ran.
package ch341usb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/gousb"
	"github.com/sirupsen/logrus"
)

// ErrDeviceNotFound is returned by Open when no USB device matches the
// vendor and product ids.
var ErrDeviceNotFound = errors.New("ch341usb: device not found")

// VID and PID of the CH341A in I²C/EPP/MEM mode.
const (
	VID = 0x1a86
	PID = 0x5512
)

// Opts contains options to pass to Open.
type Opts struct {
	VID, PID uint16
	// Config and Interface to claim. Endpoint is the number of both the bulk
	// out (0x02) and bulk in (0x82) endpoints.
	Config    int
	Interface int
	Endpoint  int
	// Timeout applies to every bulk and control transfer.
	Timeout time.Duration
	// Logger defaults to a discarding logrus logger.
	Logger logrus.FieldLogger
}

// DefaultOpts is the recommended default options.
var DefaultOpts = Opts{
	VID:       VID,
	PID:       PID,
	Config:    1,
	Interface: 0,
	Endpoint:  2,
	Timeout:   time.Second,
}

// usbContext is the part of *gousb.Context used here.
type usbContext interface {
	OpenDeviceWithVIDPID(vid, pid gousb.ID) (*gousb.Device, error)
	OpenDevices(opener func(desc *gousb.DeviceDesc) bool) ([]*gousb.Device, error)
	Close() error
}

// newContext initializes libusb. Replaced in tests.
var newContext = openContext

// openContext returns an error where gousb.NewContext panics, which it does
// when libusb can't be initialized.
func openContext() (ctx usbContext, err error) {
	defer func() {
		if r := recover(); r != nil {
			ctx = nil
			err = fmt.Errorf("ch341usb: libusb init: %v", r)
		}
	}()
	return gousb.NewContext(), nil
}

// Device is an opened CH341. It implements ch341.USB.
type Device struct {
	ctx     usbContext
	dev     *gousb.Device
	cfg     *gousb.Config
	intf    *gousb.Interface
	in      *gousb.InEndpoint
	out     *gousb.OutEndpoint
	timeout time.Duration
}

// Open finds the first device matching opts, detaches the kernel driver and
// claims its interface.
func Open(opts *Opts) (*Device, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	log := opts.Logger
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	ctx, err := newContext()
	if err != nil {
		return nil, err
	}
	d := &Device{ctx: ctx, timeout: opts.Timeout}
	if err := d.open(opts, log); err != nil {
		_ = d.Close()
		return nil, err
	}
	return d, nil
}

func (d *Device) open(opts *Opts, log logrus.FieldLogger) error {
	var err error
	d.dev, err = d.ctx.OpenDeviceWithVIDPID(gousb.ID(opts.VID), gousb.ID(opts.PID))
	if err != nil {
		return fmt.Errorf("ch341usb: opening %04x:%04x: %w", opts.VID, opts.PID, err)
	}
	if d.dev == nil {
		return fmt.Errorf("%w (%04x:%04x)", ErrDeviceNotFound, opts.VID, opts.PID)
	}
	desc := d.dev.Desc
	log.WithFields(logrus.Fields{
		"vid":     fmt.Sprintf("%04x", opts.VID),
		"pid":     fmt.Sprintf("%04x", opts.PID),
		"version": fmt.Sprintf("%d.%d", desc.Device.Major(), desc.Device.Minor()),
	}).Info("ch341usb: found device")
	if len(desc.Configs) != 1 {
		log.Warnf("ch341usb: expected a single configuration, got %d", len(desc.Configs))
	}
	log.Debugf("ch341usb: device protocol %d", desc.Protocol)
	if d.timeout > 0 {
		d.dev.ControlTimeout = d.timeout
	}
	if err := d.dev.SetAutoDetach(true); err != nil {
		return fmt.Errorf("ch341usb: auto detach: %w", err)
	}
	if d.cfg, err = d.dev.Config(opts.Config); err != nil {
		return fmt.Errorf("ch341usb: config %d: %w", opts.Config, err)
	}
	if d.intf, err = d.cfg.Interface(opts.Interface, 0); err != nil {
		return fmt.Errorf("ch341usb: interface %d: %w", opts.Interface, err)
	}
	if d.out, err = d.intf.OutEndpoint(opts.Endpoint); err != nil {
		return fmt.Errorf("ch341usb: out endpoint %d: %w", opts.Endpoint, err)
	}
	if d.in, err = d.intf.InEndpoint(opts.Endpoint); err != nil {
		return fmt.Errorf("ch341usb: in endpoint %d: %w", opts.Endpoint, err)
	}
	return nil
}

func (d *Device) String() string {
	if d.dev == nil {
		return "ch341usb(closed)"
	}
	return fmt.Sprintf("ch341usb(%s)", d.dev)
}

// Control implements ch341.USB.
func (d *Device) Control(rType, request uint8, val, idx uint16, data []byte) (int, error) {
	return d.dev.Control(rType, request, val, idx, data)
}

// WriteBulk implements ch341.USB.
func (d *Device) WriteBulk(b []byte) (int, error) {
	ctx, cancel := d.context()
	defer cancel()
	return d.out.WriteContext(ctx, b)
}

// ReadBulk implements ch341.USB.
func (d *Device) ReadBulk(b []byte) (int, error) {
	ctx, cancel := d.context()
	defer cancel()
	return d.in.ReadContext(ctx, b)
}

// Close releases the interface and closes the device.
func (d *Device) Close() error {
	var errs []error
	if d.intf != nil {
		d.intf.Close()
		d.intf = nil
	}
	if d.cfg != nil {
		errs = append(errs, d.cfg.Close())
		d.cfg = nil
	}
	if d.dev != nil {
		errs = append(errs, d.dev.Close())
		d.dev = nil
	}
	if d.ctx != nil {
		errs = append(errs, d.ctx.Close())
		d.ctx = nil
	}
	return errors.Join(errs...)
}

func (d *Device) context() (context.Context, context.CancelFunc) {
	if d.timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), d.timeout)
}
