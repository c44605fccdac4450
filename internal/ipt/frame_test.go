package ipt

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	body := []byte("SCSSGSWPull8")
	wire := Encode(CmdLoginReq, 0x01, body)

	var got []Frame
	f := NewFramer(func(fr Frame) { got = append(got, fr) }, func(err error) { t.Fatalf("unexpected error: %v", err) })
	f.Feed(wire)

	if len(got) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(got))
	}
	if got[0].Command != CmdLoginReq || got[0].Sequence != 0x01 || !bytes.Equal(got[0].Body, body) {
		t.Fatalf("decoded frame mismatch: %+v", got[0])
	}
}

func TestEncodeDecodeEscapedBody(t *testing.T) {
	body := []byte{0x01, EscapeOctet, 0x02, EscapeOctet, EscapeOctet, 0x03}
	wire := Encode(CmdTransferPushDataReq, 0x02, body)

	var got []Frame
	f := NewFramer(func(fr Frame) { got = append(got, fr) }, func(err error) { t.Fatalf("unexpected error: %v", err) })
	f.Feed(wire)

	if len(got) != 1 || !bytes.Equal(got[0].Body, body) {
		t.Fatalf("escaped body round-trip failed: %+v", got)
	}
}

func TestFramerRejectsShortLength(t *testing.T) {
	var header [headerLen]byte
	header[4] = 2 // length < headerLen
	wire := append([]byte{EscapeOctet}, header[:]...)

	var gotErr error
	f := NewFramer(func(Frame) { t.Fatalf("should not emit a frame") }, func(err error) { gotErr = err })
	f.Feed(wire)

	if gotErr == nil {
		t.Fatalf("expected FrameError for undersized length")
	}
}

func TestFramerHandlesSplitFeed(t *testing.T) {
	body := []byte("hello")
	wire := Encode(CmdWatchdogReq, 0x09, body)

	var got []Frame
	f := NewFramer(func(fr Frame) { got = append(got, fr) }, func(err error) { t.Fatalf("unexpected error: %v", err) })
	for _, b := range wire {
		f.Feed([]byte{b})
	}

	if len(got) != 1 || !bytes.Equal(got[0].Body, body) {
		t.Fatalf("split feed failed: %+v", got)
	}
}

func TestFramerZeroLengthBody(t *testing.T) {
	wire := Encode(CmdCloseConnectionReq, 0x00, nil)

	var got []Frame
	f := NewFramer(func(fr Frame) { got = append(got, fr) }, func(err error) { t.Fatalf("unexpected error: %v", err) })
	f.Feed(wire)

	if len(got) != 1 || len(got[0].Body) != 0 {
		t.Fatalf("expected single zero-length frame, got %+v", got)
	}
}
