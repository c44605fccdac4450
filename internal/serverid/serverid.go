// Package serverid implements the 8-/9-byte ServerID binary identity
// shared by SML registers and M-Bus/wM-Bus long headers: a
// medium class, a 3-letter manufacturer code packed 5 bits per letter,
// a little-endian device serial, a protocol version and a medium byte.
package serverid

import (
	"fmt"

	"github.com/solostec/smf-gateway/internal/gwerr"
)

// ID is the decoded form of a server identity. Round-trips through
// Decode/Encode are bit-exact and the printable form is stable.
type ID struct {
	MediumClass byte   // byte 0: wired vs wireless medium class
	Manufacturer uint16 // bytes 1-2, packed 5-bit-per-letter code
	Serial       uint32 // bytes 3-6, little-endian device serial
	Version      byte   // byte 7
	Medium       byte   // byte 8
}

// PackManufacturer packs a 3-letter ASCII manufacturer code into the
// 16-bit form used on the wire: ((c1-64)<<10)|((c2-64)<<5)|(c3-64).
func PackManufacturer(code string) (uint16, error) {
	if len(code) != 3 {
		return 0, fmt.Errorf("serverid: manufacturer code must be 3 letters: %w", gwerr.ErrConfig)
	}
	var v uint16
	for i := 0; i < 3; i++ {
		c := code[i]
		if c < 'A' || c > 'Z' {
			return 0, fmt.Errorf("serverid: manufacturer code %q not uppercase ASCII: %w", code, gwerr.ErrConfig)
		}
		v |= uint16(c-64) << (10 - 5*i)
	}
	return v, nil
}

// UnpackManufacturer reverses PackManufacturer.
func UnpackManufacturer(v uint16) string {
	b := make([]byte, 3)
	b[0] = byte((v>>10)&0x1f) + 64
	b[1] = byte((v>>5)&0x1f) + 64
	b[2] = byte(v&0x1f) + 64
	return string(b)
}

// Encode renders the canonical 9-byte wire form: medium class,
// manufacturer (big-endian u16), serial (little-endian u32), version,
// medium.
func (id ID) Encode() []byte {
	buf := make([]byte, 9)
	buf[0] = id.MediumClass
	buf[1] = byte(id.Manufacturer >> 8)
	buf[2] = byte(id.Manufacturer)
	buf[3] = byte(id.Serial)
	buf[4] = byte(id.Serial >> 8)
	buf[5] = byte(id.Serial >> 16)
	buf[6] = byte(id.Serial >> 24)
	buf[7] = id.Version
	buf[8] = id.Medium
	return buf
}

// Decode accepts either the 9-byte form (with a leading medium-class
// byte) or the bare 8-byte form (manufacturer/serial/version/medium
// only, medium class left zero), as produced directly from an M-Bus
// long header.
func Decode(buf []byte) (ID, error) {
	switch len(buf) {
	case 9:
		return ID{
			MediumClass:  buf[0],
			Manufacturer: uint16(buf[1])<<8 | uint16(buf[2]),
			Serial:       uint32(buf[3]) | uint32(buf[4])<<8 | uint32(buf[5])<<16 | uint32(buf[6])<<24,
			Version:      buf[7],
			Medium:       buf[8],
		}, nil
	case 8:
		return ID{
			Manufacturer: uint16(buf[0])<<8 | uint16(buf[1]),
			Serial:       uint32(buf[2]) | uint32(buf[3])<<8 | uint32(buf[4])<<16 | uint32(buf[5])<<24,
			Version:      buf[6],
			Medium:       buf[7],
		}, nil
	default:
		return ID{}, fmt.Errorf("serverid: need 8 or 9 bytes, got %d: %w", len(buf), gwerr.ErrFrame)
	}
}

// FromMBusLongHeader builds a ServerID from the fields of an M-Bus
// long header, which carries serial before manufacturer —
// the opposite field order from the ServerID wire form.
func FromMBusLongHeader(serial uint32, manufacturer uint16, version, medium byte) ID {
	return ID{
		MediumClass:  mediumClassOf(medium),
		Manufacturer: manufacturer,
		Serial:       serial,
		Version:      version,
		Medium:       medium,
	}
}

// mediumClassOf derives the wired/wireless medium class from an M-Bus
// medium byte: the medium bytes 0x07, 0x0C, 0x0F, 0x16 and 0x1D map to
// wireless (1), everything else to wired (0).
func mediumClassOf(medium byte) byte {
	switch medium {
	case 0x07, 0x0C, 0x0F, 0x16, 0x1D:
		return 1
	default:
		return 0
	}
}

// String renders the stable hex-segmented printable form, e.g.
// "01-a815-74314504-01-02"; server-IDs are hex-encoded buffers.
func (id ID) String() string {
	return fmt.Sprintf("%02x-%04x-%08x-%02x-%02x",
		id.MediumClass, id.Manufacturer, id.Serial, id.Version, id.Medium)
}
