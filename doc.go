// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package usbi2c is a container for USB to I²C bridge drivers.
//
// The drivers implement periph's i2c.Bus so any periph device driver can be
// used through them.
package usbi2c
