package mbus

import "testing"

func TestParseFrameAck(t *testing.T) {
	f, n, err := ParseFrame([]byte{0xE5, 0xFF})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if n != 1 || f.Kind != KindAck {
		t.Fatalf("unexpected ack frame: %+v, consumed=%d", f, n)
	}
}

func TestParseFrameShortRoundTrip(t *testing.T) {
	c, a := byte(0x53), byte(0x01)
	buf := []byte{startShort, c, a, checksum8([]byte{c, a}), stopOctet}
	f, n, err := ParseFrame(buf)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if n != len(buf) || f.Kind != KindShort || f.Control != c || f.Address != a {
		t.Fatalf("unexpected short frame: %+v", f)
	}
}

func TestParseFrameShortBadChecksum(t *testing.T) {
	buf := []byte{startShort, 0x53, 0x01, 0x00, stopOctet}
	if _, _, err := ParseFrame(buf); err == nil {
		t.Fatalf("expected checksum error")
	}
}

func TestParseFrameLongRejectsZeroLength(t *testing.T) {
	buf := []byte{startLong, 0x00, 0x00, startLong, 0x00, stopOctet}
	if _, _, err := ParseFrame(buf); err == nil {
		t.Fatalf("expected error for zero-length long frame")
	}
}

func TestParseFrameLongRoundTrip(t *testing.T) {
	body := []byte{0x08, 0x01, CILongHeader, 0xAA, 0xBB}
	buf := []byte{startLong, byte(len(body)), byte(len(body)), startLong}
	buf = append(buf, body...)
	buf = append(buf, checksum8(body), stopOctet)

	f, n, err := ParseFrame(buf)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if n != len(buf) {
		t.Fatalf("expected to consume %d bytes, got %d", len(buf), n)
	}
	if f.Kind != KindLong || f.Control != 0x08 || f.Address != 0x01 || f.CI != CILongHeader {
		t.Fatalf("unexpected long frame: %+v", f)
	}
	if string(f.UserData) != string([]byte{0xAA, 0xBB}) {
		t.Fatalf("unexpected user data: %x", f.UserData)
	}
}
