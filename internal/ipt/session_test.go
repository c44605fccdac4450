package ipt

import (
	"testing"
)

func fixedChecker(account, password string) func(string, string) bool {
	return func(a, p string) bool { return a == account && p == password }
}

func TestLoginHappyPath(t *testing.T) {
	var written [][]byte
	s := NewSession("peer:1", func(b []byte) error {
		written = append(written, b)
		return nil
	}, nil)

	req := LoginRequest{
		Scrambled: true,
		Account:   "SCSSGSWPull8",
		Password:  "SCSSGSWPull2014",
	}
	req.Key[31] = 1

	result := s.Login(req, fixedChecker("SCSSGSWPull8", "SCSSGSWPull2014"))

	if !result.Success {
		t.Fatalf("expected login success")
	}
	if result.Watchdog != DefaultWatchdog {
		t.Fatalf("expected default watchdog, got %s", result.Watchdog)
	}
	if s.State() != StateAuthenticated {
		t.Fatalf("expected AUTHENTICATED, got %s", s.State())
	}

	seq := s.NextSequence()
	if seq != 0 {
		t.Fatalf("expected first allocated sequence 0, got %d", seq)
	}
	body := EncodeLoginResponse(LoginResponse{Code: ResponseSuccess, Watchdog: 15})
	if err := s.EmitFrame(CmdLoginRes, seq, body); err != nil {
		t.Fatalf("emit: %v", err)
	}

	got, err := DecodeLoginResponse(mustDecodeFrame(t, written[0]).Body)
	if err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Code != ResponseSuccess || got.Watchdog != 15 {
		t.Fatalf("unexpected response: %+v", got)
	}
}

func TestLoginFailureShutsDownSession(t *testing.T) {
	var shutdownReason error
	s := NewSession("peer:2", func([]byte) error { return nil }, func(err error) { shutdownReason = err })

	result := s.Login(LoginRequest{Account: "bad", Password: "wrong"}, fixedChecker("good", "right"))
	if result.Success {
		t.Fatalf("expected login failure")
	}
	if s.State() != StateShutdown {
		t.Fatalf("expected SHUTDOWN, got %s", s.State())
	}
	if shutdownReason == nil {
		t.Fatalf("expected shutdown reason to be recorded")
	}
}

func TestSequenceAllocationWrapsSkippingZero(t *testing.T) {
	s := NewSession("peer:3", func([]byte) error { return nil }, nil)
	s.nextSeq = 0xFF
	if got := s.NextSequence(); got != 0xFF {
		t.Fatalf("expected 0xFF, got %#x", got)
	}
	if got := s.NextSequence(); got != 1 {
		t.Fatalf("expected wrap to 1 (skip 0), got %#x", got)
	}
}

// mustDecodeFrame decodes exactly one frame out of a raw wire buffer
// for assertions in these tests.
func mustDecodeFrame(t *testing.T, wire []byte) Frame {
	t.Helper()
	var got Frame
	found := false
	f := NewFramer(func(fr Frame) { got = fr; found = true }, func(err error) { t.Fatalf("framer error: %v", err) })
	f.Feed(wire)
	if !found {
		t.Fatalf("no frame decoded from %d bytes", len(wire))
	}
	return got
}
