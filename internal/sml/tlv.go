// Package sml implements the SML (Smart Message Language) codec: a
// length-prefixed TLV tokenizer, message-envelope assembly with CRC16
// validation, OBIS-addressed tree navigation and attention-code
// dispatch.
package sml

import (
	"fmt"

	"github.com/solostec/smf-gateway/internal/gwerr"
)

// TLV type nibbles: the top 4 bits of a TL byte select the
// value kind; the low nibble carries a length of 0-14 directly, or the
// sentinel 15 to mean "read a variable-length continuation" (DESIGN.md
// records this as the resolution of the wire format's informally
// described "continuation bit" scheme).
const (
	typeBinary   byte = 0x0
	typeBoolean  byte = 0x4
	typeInteger  byte = 0x5
	typeUnsigned byte = 0x6
	typeList     byte = 0x7
	typeOptional byte = 0x8

	shortLengthMax = 14
	lengthOverflow = 0x0F
)

// listFrame is one entry of the growable stack used to reduce nested
// LIST values without recursion: each frame tracks how many elements
// remain and the accumulator built so far.
type listFrame struct {
	remaining int
	items     []any
}

// Decode parses exactly one TLV value — possibly a deeply nested
// LIST — starting at buf[0]. It returns the decoded value (nil,
// []byte, bool, int64, uint64 or []any), the number of bytes
// consumed, and any error.
func Decode(buf []byte) (value any, consumed int, err error) {
	var stack []*listFrame
	pos := 0
	done := false

	push := func(v any) {
		for len(stack) > 0 {
			top := stack[len(stack)-1]
			top.items = append(top.items, v)
			top.remaining--
			if top.remaining > 0 {
				return
			}
			stack = stack[:len(stack)-1]
			v = top.items
		}
		value = v
		consumed = pos
		done = true
	}

	for !done {
		if pos >= len(buf) {
			return nil, 0, fmt.Errorf("sml: truncated TLV stream: %w", gwerr.ErrFrame)
		}
		typ, length, tlLen, terr := decodeTL(buf[pos:])
		if terr != nil {
			return nil, 0, terr
		}
		pos += tlLen

		switch typ {
		case typeList:
			if length == 0 {
				// SML LIST of size 0 is an empty tuple, not omitted.
				push([]any{})
			} else {
				stack = append(stack, &listFrame{remaining: length})
			}
		case typeOptional:
			push(nil)
		case typeBinary:
			if pos+length > len(buf) {
				return nil, 0, fmt.Errorf("sml: truncated BINARY value: %w", gwerr.ErrFrame)
			}
			v := append([]byte(nil), buf[pos:pos+length]...)
			pos += length
			push(v)
		case typeBoolean:
			if length != 1 || pos+1 > len(buf) {
				return nil, 0, fmt.Errorf("sml: malformed BOOLEAN: %w", gwerr.ErrFrame)
			}
			v := buf[pos] != 0
			pos++
			push(v)
		case typeInteger:
			if length < 1 || length > 8 || pos+length > len(buf) {
				return nil, 0, fmt.Errorf("sml: malformed INTEGER: %w", gwerr.ErrFrame)
			}
			v := decodeSignedLE(buf[pos : pos+length])
			pos += length
			push(v)
		case typeUnsigned:
			if length < 1 || length > 8 || pos+length > len(buf) {
				return nil, 0, fmt.Errorf("sml: malformed UNSIGNED: %w", gwerr.ErrFrame)
			}
			v := decodeUnsignedLE(buf[pos : pos+length])
			pos += length
			push(v)
		default:
			return nil, 0, fmt.Errorf("sml: unknown TLV type %#x: %w", typ, gwerr.ErrFrame)
		}
	}
	return value, consumed, nil
}

// decodeTL reads one TL byte (and any continuation bytes) from buf,
// returning the type, the decoded length, and the number of bytes the
// TL field itself occupied.
func decodeTL(buf []byte) (typ byte, length int, tlLen int, err error) {
	if len(buf) == 0 {
		return 0, 0, 0, fmt.Errorf("sml: empty TL field: %w", gwerr.ErrFrame)
	}
	b0 := buf[0]
	typ = (b0 >> 4) & 0x0F
	low := int(b0 & 0x0F)
	if low <= shortLengthMax {
		return typ, low, 1, nil
	}

	// Continuation: each following byte carries 7 length bits,
	// high bit set means "more bytes follow".
	pos := 1
	length = 0
	shift := uint(0)
	for {
		if pos >= len(buf) {
			return 0, 0, 0, fmt.Errorf("sml: truncated length continuation: %w", gwerr.ErrFrame)
		}
		b := buf[pos]
		length |= int(b&0x7F) << shift
		pos++
		if b&0x80 == 0 {
			break
		}
		shift += 7
	}
	return typ, length, pos, nil
}

func decodeUnsignedLE(b []byte) uint64 {
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = (v << 8) | uint64(b[i])
	}
	return v
}

func decodeSignedLE(b []byte) int64 {
	v := decodeUnsignedLE(b)
	bits := uint(len(b)) * 8
	signBit := uint64(1) << (bits - 1)
	if v&signBit != 0 {
		v |= ^uint64(0) << bits
	}
	return int64(v)
}
