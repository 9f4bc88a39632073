// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ch341usb

import (
	"errors"

	"github.com/GermanBionicSystems/usbi2c/ch341"
	"github.com/google/gousb"
	"periph.io/x/conn/v3/driver/driverreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
)

// Bus is a CH341 opened over libusb. It implements i2c.BusCloser.
type Bus struct {
	*ch341.Dev
	usb *Device
}

// OpenBus opens the USB device described by opts and initializes the bridge
// with chOpts. Either may be nil for the defaults.
func OpenBus(opts *Opts, chOpts *ch341.Opts) (*Bus, error) {
	u, err := Open(opts)
	if err != nil {
		return nil, err
	}
	d, err := ch341.New(u, chOpts)
	if err != nil {
		_ = u.Close()
		return nil, err
	}
	return &Bus{Dev: d, usb: u}, nil
}

// Close closes the USB device.
func (b *Bus) Close() error {
	b.Lock()
	defer b.Unlock()
	return b.usb.Close()
}

// driver registers the first CH341 found in i2creg.
type driver struct{}

func (d *driver) String() string {
	return "ch341"
}

func (d *driver) Prerequisites() []string {
	return nil
}

func (d *driver) After() []string {
	return nil
}

func (d *driver) Init() (bool, error) {
	found, err := present(DefaultOpts.VID, DefaultOpts.PID)
	if err != nil {
		return false, err
	}
	if !found {
		return false, errors.New("no CH341 connected")
	}
	opener := func() (i2c.BusCloser, error) {
		return OpenBus(&DefaultOpts, &ch341.DefaultOpts)
	}
	if err := i2creg.Register("CH341", []string{"ch341"}, -1, opener); err != nil {
		return true, err
	}
	return true, nil
}

// present enumerates the USB devices without opening any.
func present(vid, pid uint16) (bool, error) {
	ctx, err := newContext()
	if err != nil {
		return false, err
	}
	defer ctx.Close()
	found := false
	_, _ = ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if desc.Vendor == gousb.ID(vid) && desc.Product == gousb.ID(pid) {
			found = true
		}
		return false
	})
	return found, nil
}

func init() {
	driverreg.MustRegister(&drv)
}

var drv driver

var _ ch341.USB = &Device{}
var _ i2c.BusCloser = &Bus{}
