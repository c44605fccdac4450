// Package mbus implements the M-Bus / wireless M-Bus link-layer frame
// parser, variable-data-block decoder and wM-Bus AES decryptor.
package mbus

import (
	"fmt"

	"github.com/solostec/smf-gateway/internal/gwerr"
)

const (
	ack        byte = 0xE5
	startShort byte = 0x10
	startLong  byte = 0x68
	stopOctet  byte = 0x16
)

// Kind distinguishes the three link-layer frame shapes.
type Kind int

const (
	KindAck Kind = iota
	KindShort
	KindLong
)

// Frame is one parsed link-layer M-Bus frame. UserData holds the
// application-layer octets following the CI field for long frames.
type Frame struct {
	Kind     Kind
	Control  byte
	Address  byte
	CI       byte
	UserData []byte
}

// ParseFrame recognises a frame by its first octet and validates its
// checksum, returning the frame and the number of bytes consumed.
func ParseFrame(buf []byte) (Frame, int, error) {
	if len(buf) == 0 {
		return Frame{}, 0, fmt.Errorf("mbus: empty buffer: %w", gwerr.ErrFrame)
	}

	switch buf[0] {
	case ack:
		return Frame{Kind: KindAck}, 1, nil

	case startShort:
		if len(buf) < 5 {
			return Frame{}, 0, fmt.Errorf("mbus: truncated short frame: %w", gwerr.ErrFrame)
		}
		c, a, cs, stop := buf[1], buf[2], buf[3], buf[4]
		if stop != stopOctet {
			return Frame{}, 0, fmt.Errorf("mbus: short frame missing stop octet: %w", gwerr.ErrFrame)
		}
		if cs != checksum8(buf[1:3]) {
			return Frame{}, 0, fmt.Errorf("mbus: short frame checksum mismatch: %w", gwerr.ErrChecksum)
		}
		return Frame{Kind: KindShort, Control: c, Address: a}, 5, nil

	case startLong:
		if len(buf) < 6 {
			return Frame{}, 0, fmt.Errorf("mbus: truncated long frame header: %w", gwerr.ErrFrame)
		}
		l1, l2 := buf[1], buf[2]
		if l1 != l2 {
			return Frame{}, 0, fmt.Errorf("mbus: long frame length bytes disagree: %w", gwerr.ErrFrame)
		}
		if buf[3] != startLong {
			return Frame{}, 0, fmt.Errorf("mbus: long frame missing second start octet: %w", gwerr.ErrFrame)
		}
		length := int(l1)
		if length == 0 {
			return Frame{}, 0, fmt.Errorf("mbus: long frame length byte 0 rejected: %w", gwerr.ErrFrame)
		}
		if length < 3 {
			return Frame{}, 0, fmt.Errorf("mbus: long frame too short for C/A/CI: %w", gwerr.ErrFrame)
		}
		total := 4 + length + 2
		if len(buf) < total {
			return Frame{}, 0, fmt.Errorf("mbus: truncated long frame body: %w", gwerr.ErrFrame)
		}
		body := buf[4 : 4+length]
		cs := buf[4+length]
		stop := buf[4+length+1]
		if stop != stopOctet {
			return Frame{}, 0, fmt.Errorf("mbus: long frame missing stop octet: %w", gwerr.ErrFrame)
		}
		if cs != checksum8(body) {
			return Frame{}, 0, fmt.Errorf("mbus: long frame checksum mismatch: %w", gwerr.ErrChecksum)
		}
		return Frame{
			Kind:     KindLong,
			Control:  body[0],
			Address:  body[1],
			CI:       body[2],
			UserData: body[3:],
		}, total, nil

	default:
		return Frame{}, 0, fmt.Errorf("mbus: unrecognised start octet %#x: %w", buf[0], gwerr.ErrFrame)
	}
}

// checksum8 is the 8-bit arithmetic sum of buf, modulo 256.
func checksum8(buf []byte) byte {
	var sum byte
	for _, b := range buf {
		sum += b
	}
	return sum
}
