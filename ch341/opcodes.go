// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ch341

import "fmt"

// VendorCmd selects the chip subsystem addressed by a control or bulk
// transfer.
type VendorCmd uint8

// Vendor commands. The names follow the ones used by the WCH vendor driver.
const (
	VendorReadReg    VendorCmd = 0x95
	VendorWriteReg   VendorCmd = 0x9a
	VendorSerial     VendorCmd = 0xa1
	VendorPrint      VendorCmd = 0xa3
	VendorModem      VendorCmd = 0xa4
	VendorMemWrite   VendorCmd = 0xa6 // mCH341_PARA_CMD_W0
	VendorMemRead    VendorCmd = 0xac // mCH341_PARA_CMD_R0
	VendorSPI        VendorCmd = 0xa8
	VendorSIO        VendorCmd = 0xa9
	VendorI2C        VendorCmd = 0xaa // first byte of every I²C command buffer
	VendorUIO        VendorCmd = 0xab
	VendorI2CStatus  VendorCmd = 0x52 // control read, 8 bytes of pin state
	VendorI2CCommand VendorCmd = 0x53
	VendorVersion    VendorCmd = 0x5f // control read, 2 bytes
)

func (v VendorCmd) String() string {
	switch v {
	case VendorReadReg:
		return "READ_REG"
	case VendorWriteReg:
		return "WRITE_REG"
	case VendorSerial:
		return "SERIAL"
	case VendorPrint:
		return "PRINT"
	case VendorModem:
		return "MODEM"
	case VendorMemWrite:
		return "MEMW"
	case VendorMemRead:
		return "MEMR"
	case VendorSPI:
		return "SPI"
	case VendorSIO:
		return "SIO"
	case VendorI2C:
		return "I2C"
	case VendorUIO:
		return "UIO"
	case VendorI2CStatus:
		return "I2C_STATUS"
	case VendorI2CCommand:
		return "I2C_COMMAND"
	case VendorVersion:
		return "VERSION"
	default:
		return fmt.Sprintf("VendorCmd(%#02x)", uint8(v))
	}
}

// I2CCmd is a sub-command placed in an I²C command buffer after VendorI2C.
//
// Some sub-commands carry an operand in their low bits: OUT and IN carry a
// byte count in bits 0-5, SET carries the speed selector in bits 0-1. US and
// MS carry a delay, they may be inserted after a STA.
type I2CCmd uint8

// I²C sub-commands, from ch341dll.h.
const (
	I2CStart I2CCmd = 0x74 // STA
	I2CStop  I2CCmd = 0x75 // STO
	I2COut   I2CCmd = 0x80 // OUT; OUT|0 writes a single byte and replies with its ack
	I2CIn    I2CCmd = 0xc0 // IN; IN|0 reads a single byte and NAKs it
	I2CSet   I2CCmd = 0x60 // SET; bit 7 SPI bit order, bit 2 SPI single/double
	I2CUs    I2CCmd = 0x40 // US; US|0 is ~260µs
	I2CMs    I2CCmd = 0x50 // MS; MS|0 is 250ms
	I2CDly   I2CCmd = 0x0f
	I2CEnd   I2CCmd = 0x00 // terminates every command buffer
)

func (c I2CCmd) String() string {
	switch c & 0xc0 {
	case I2COut:
		return fmt.Sprintf("OUT|%d", uint8(c&countMask))
	case I2CIn:
		return fmt.Sprintf("IN|%d", uint8(c&countMask))
	}
	switch c {
	case I2CStart:
		return "STA"
	case I2CStop:
		return "STO"
	case I2CDly:
		return "DLY"
	case I2CEnd:
		return "END"
	}
	switch c & 0xf0 {
	case I2CSet:
		return fmt.Sprintf("SET|%d", uint8(c&0x0f))
	case I2CUs:
		return fmt.Sprintf("US|%d", uint8(c&0x0f))
	case I2CMs:
		return fmt.Sprintf("MS|%d", uint8(c&0x0f))
	}
	return fmt.Sprintf("I2CCmd(%#02x)", uint8(c))
}

// MaxChunk is the largest number of bytes the chip ingests or replies with in
// a single bulk transaction. It is a hardware limit.
const MaxChunk = 32

// MaxEEPROMOffset is the highest EEPROM byte offset reachable with a one byte
// sub-address plus three block bits in the device address, i.e. 24C16.
const MaxEEPROMOffset = 0x7ff

const (
	countMask = 0x3f
	// maxWriteBlock keeps [VendorI2C, OUT|n, n bytes..., END] within
	// MaxChunk.
	maxWriteBlock = MaxChunk - 3
)

// Speed is the I²C clock speed selector embedded in a SET command.
type Speed uint8

// Supported clock speeds.
const (
	Speed20kHz  Speed = 0
	Speed100kHz Speed = 1
	Speed400kHz Speed = 2
	Speed750kHz Speed = 3
)

func (s Speed) String() string {
	switch s {
	case Speed20kHz:
		return "20kHz"
	case Speed100kHz:
		return "100kHz"
	case Speed400kHz:
		return "400kHz"
	case Speed750kHz:
		return "750kHz"
	default:
		return fmt.Sprintf("Speed(%d)", uint8(s))
	}
}

// SpeedFromKHz rounds khz down to the nearest supported tier. Anything under
// 100kHz selects 20kHz.
//
// 20 and 100 are accurate. 400 is not entirely square. 750 is closer to 1MHz
// while clocking bytes but slower around acks and starts.
func SpeedFromKHz(khz int) Speed {
	switch {
	case khz < 100:
		return Speed20kHz
	case khz < 400:
		return Speed100kHz
	case khz < 750:
		return Speed400kHz
	default:
		return Speed750kHz
	}
}

// EncodeSpeed returns the command selecting clock speed s.
func EncodeSpeed(s Speed) []byte {
	return []byte{byte(VendorI2C), byte(I2CSet) | byte(s&3), byte(I2CEnd)}
}

// EncodeStart returns the command issuing a start condition.
func EncodeStart() []byte {
	return []byte{byte(VendorI2C), byte(I2CStart), byte(I2CEnd)}
}

// EncodeStop returns the command issuing a stop condition.
func EncodeStop() []byte {
	return []byte{byte(VendorI2C), byte(I2CStop), byte(I2CEnd)}
}

// EncodeWriteByte returns the command writing b to the bus. The chip replies
// with one byte holding the acknowledge bit.
func EncodeWriteByte(b byte) []byte {
	return []byte{byte(VendorI2C), byte(I2COut), b, byte(I2CEnd)}
}

// EncodeProbe returns a start, a single byte write of a and a stop. The chip
// replies with one byte holding the acknowledge bit of a.
func EncodeProbe(a byte) []byte {
	return []byte{byte(VendorI2C), byte(I2CStart), byte(I2COut), a, byte(I2CStop), byte(I2CEnd)}
}

// EncodeReadSetup returns the command reading n bytes, 1 <= n <= MaxChunk,
// followed by a stop. All bytes but the last are acknowledged.
func EncodeReadSetup(n int) ([]byte, error) {
	if n < 1 || n > MaxChunk {
		return nil, fmt.Errorf("%w: read of %d bytes in one chunk", ErrInvalidLength, n)
	}
	return appendRead([]byte{byte(VendorI2C)}, n), nil
}

// EncodeEEPROMRead returns the command performing a random address read of n
// bytes at offset off of a 24Cxx EEPROM at device address byte dev.
//
// Offset bits 8-10 go into bits 1-3 of the device address byte, the low byte
// is sent as the sub-address. When n exceeds MaxChunk the result spans
// several 32 byte blocks, each continuation block starting with VendorI2C.
func EncodeEEPROMRead(dev byte, off, n int) ([]byte, error) {
	if off < 0 || off > MaxEEPROMOffset {
		return nil, fmt.Errorf("%w: offset %#x", ErrUnsupportedRange, off)
	}
	if n < 1 {
		return nil, fmt.Errorf("%w: read of %d bytes", ErrInvalidLength, n)
	}
	cmd := []byte{
		byte(VendorI2C),
		byte(I2CStart),
		byte(I2COut) | 2, dev | byte(off>>7)&0x0e, byte(off),
		byte(I2CStart),
		byte(I2COut) | 1, dev | 1,
	}
	return appendRead(cmd, n), nil
}

// EncodeWrite returns the blocks writing data to the bus without checking
// acknowledges.
func EncodeWrite(data []byte) [][]byte {
	var out [][]byte
	for len(data) != 0 {
		k := len(data)
		if k > maxWriteBlock {
			k = maxWriteBlock
		}
		b := make([]byte, 0, k+3)
		b = append(b, byte(VendorI2C), byte(I2COut)|byte(k))
		b = append(b, data[:k]...)
		b = append(b, byte(I2CEnd))
		out = append(out, b)
		data = data[k:]
	}
	return out
}

// appendRead appends the IN sub-commands reading n bytes then a stop to cmd,
// which must be a buffer started with VendorI2C.
//
// The chip consumes commands in 32 byte blocks. Every block but the last
// reads MaxChunk acknowledged bytes and is zero padded up to the block
// boundary. The last block reads the remainder, NAKing its last byte.
func appendRead(cmd []byte, n int) []byte {
	for n > MaxChunk {
		cmd = append(cmd, byte(I2CIn)|MaxChunk)
		cmd = pad(cmd)
		cmd = append(cmd, byte(VendorI2C))
		n -= MaxChunk
	}
	if n > 1 {
		cmd = append(cmd, byte(I2CIn)|byte(n-1))
	}
	return append(cmd, byte(I2CIn), byte(I2CStop), byte(I2CEnd))
}

// pad zero fills b up to the next MaxChunk boundary.
func pad(b []byte) []byte {
	if r := len(b) % MaxChunk; r != 0 {
		b = append(b, make([]byte, MaxChunk-r)...)
	}
	return b
}
