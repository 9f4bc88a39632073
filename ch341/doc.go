// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package ch341 drives the WCH CH341 USB to I²C bridge in I²C/EPP/MEM mode.
//
// The chip has no notion of I²C transactions. The host sends it buffers of
// sub-commands (start, stop, write n bytes, read n bytes) over a bulk
// endpoint, at most 32 bytes at a time, and reads back acknowledge bits or
// data. This package encodes those buffers, drains the replies and exposes
// the result as an i2c.Bus.
//
// The USB handle is provided by the caller, see package ch341usb for one
// based on libusb.
//
// # Known quirks
//
// The stop condition is not reliable. Don't assume the bus is idle after
// Stop; probe again when it matters.
//
// # More details
//
// The command set comes from ch341dll.h of the vendor SDK and from captures
// of the vendor DLL.
package ch341
