package mbus

import (
	"fmt"

	"github.com/solostec/smf-gateway/internal/gwerr"
	"github.com/solostec/smf-gateway/internal/serverid"
)

// longHeaderLen is the fixed length of an M-Bus long header: serial
// (4) + manufacturer (2) + version (1) + medium (1) + access-no (1) +
// status (1) + signature (2).
const longHeaderLen = 12

// LongHeader is the decoded secondary address block of a long-header
// M-Bus frame.
type LongHeader struct {
	ServerID  serverid.ID
	AccessNo  byte
	Status    byte
	Signature uint16
}

// DecodeLongHeader reads a 12-byte long header from the front of buf
// and returns it along with the remaining application payload.
func DecodeLongHeader(buf []byte) (LongHeader, []byte, error) {
	if len(buf) < longHeaderLen {
		return LongHeader{}, nil, fmt.Errorf("mbus: truncated long header: %w", gwerr.ErrFrame)
	}
	serial := uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24
	manufacturer := uint16(buf[4]) | uint16(buf[5])<<8
	version := buf[6]
	medium := buf[7]
	accessNo := buf[8]
	status := buf[9]
	signature := uint16(buf[10]) | uint16(buf[11])<<8

	return LongHeader{
		ServerID:  serverid.FromMBusLongHeader(serial, manufacturer, version, medium),
		AccessNo:  accessNo,
		Status:    status,
		Signature: signature,
	}, buf[longHeaderLen:], nil
}
