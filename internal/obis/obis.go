// Package obis implements the OBIS (Object Identification System)
// register code used as a map key and tree-path element throughout the
// metering stack: SML registers, M-Bus derived addresses, profile
// selectors and report filters.
package obis

import (
	"bytes"
	"fmt"
)

// Code is a 6-octet register address (A-B:C.D.E*F). Equality and
// ordering are lexicographic over the 6 bytes.
type Code [6]byte

// New builds a Code from its six components.
func New(a, b, c, d, e, f byte) Code {
	return Code{a, b, c, d, e, f}
}

// FromBytes copies a 6-byte slice into a Code. It panics if buf is not
// exactly 6 bytes long — callers are expected to validate frame length
// before calling this.
func FromBytes(buf []byte) Code {
	var c Code
	if len(buf) != 6 {
		panic(fmt.Sprintf("obis: FromBytes needs 6 bytes, got %d", len(buf)))
	}
	copy(c[:], buf)
	return c
}

// Bytes returns the 6-octet wire representation.
func (c Code) Bytes() []byte {
	return c[:]
}

// Equal reports whether two codes are byte-identical.
func (c Code) Equal(o Code) bool {
	return c == o
}

// Less orders codes lexicographically over their 6 bytes, matching the
// invariant that OBIS equality/ordering is lexicographic.
func (c Code) Less(o Code) bool {
	return bytes.Compare(c[:], o[:]) < 0
}

// String renders the canonical "A-B:C.D.E*F" form.
func (c Code) String() string {
	return fmt.Sprintf("%d-%d:%d.%d.%d*%d", c[0], c[1], c[2], c[3], c[4], c[5])
}

// Well-known attention codes, each a fixed 6-octet OBIS
// value paired with a human-readable name.
var (
	AttentionOK             = New(0, 0, 97, 97, 0, 0)
	AttentionUnknownError   = New(0, 0, 97, 97, 1, 0)
	AttentionNotAuthorized  = New(0, 0, 97, 97, 2, 0)
	AttentionCannotWrite    = New(0, 0, 97, 97, 3, 0)
	AttentionJobIsRunning   = New(0, 0, 97, 97, 4, 0)
	AttentionUnknownObis    = New(0, 0, 97, 97, 5, 0)
	AttentionOutOfRange     = New(0, 0, 97, 97, 6, 0)
	AttentionUnknownAccount = New(0, 0, 97, 97, 7, 0)
)

var attentionNames = map[Code]string{
	AttentionOK:             "OK",
	AttentionUnknownError:   "UNKNOWN_ERROR",
	AttentionNotAuthorized:  "NOT_AUTHORIZED",
	AttentionCannotWrite:    "CANNOT_WRITE",
	AttentionJobIsRunning:   "JOB_IS_RUNNING",
	AttentionUnknownObis:    "UNKNOWN_OBIS_CODE",
	AttentionOutOfRange:     "OUT_OF_RANGE",
	AttentionUnknownAccount: "UNKNOWN_ACCOUNT",
}

// AttentionName returns the human-readable name for a known attention
// code, or "" if c is not one of the fixed attention codes.
func AttentionName(c Code) string {
	return attentionNames[c]
}

// Profile OBIS codes selecting a time granularity.
var (
	Profile1Minute  = New(81, 81, 11, 6, 0, 255)
	Profile15Minute = New(81, 81, 11, 6, 1, 255)
	Profile60Minute = New(81, 81, 11, 6, 2, 255)
	Profile24Hour   = New(81, 81, 11, 6, 3, 255)
	ProfileMonthly  = New(81, 81, 11, 6, 4, 255)
	ProfileYearly   = New(81, 81, 11, 6, 5, 255)
)
