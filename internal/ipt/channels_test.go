package ipt

import "testing"

func TestOpenPushChannel(t *testing.T) {
	m := NewManager()
	owner := NewSession("master-client", func([]byte) error { return nil }, nil)

	if err := m.RegisterTarget(owner, "power@solostec", 0, 0); err != nil {
		t.Fatalf("register target: %v", err)
	}

	ch, err := m.OpenPushChannel(owner, "power@solostec")
	if err != nil {
		t.Fatalf("open push channel: %v", err)
	}
	if ch.ID < 1 || ch.SourceID < 1 {
		t.Fatalf("expected channel/source ids >= 1, got %+v", ch)
	}
	if ch.PacketSize != DefaultPacketSize {
		t.Fatalf("expected packet size %d, got %d", DefaultPacketSize, ch.PacketSize)
	}
}

func TestOpenPushChannelUnknownTarget(t *testing.T) {
	m := NewManager()
	if _, err := m.OpenPushChannel(nil, "nope"); err == nil {
		t.Fatalf("expected error for unknown target")
	}
}

func TestClosePushChannelIsIdempotent(t *testing.T) {
	m := NewManager()
	owner := NewSession("s", func([]byte) error { return nil }, nil)
	_ = m.RegisterTarget(owner, "t", 0, 0)
	ch, _ := m.OpenPushChannel(owner, "t")

	if err := m.ClosePushChannel(ch.ID); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := m.ClosePushChannel(ch.ID); err != nil {
		t.Fatalf("second close should be a no-op, got: %v", err)
	}
	if _, ok := m.Channel(ch.ID); ok {
		t.Fatalf("channel should be gone after close")
	}
}

func TestTransferPushDataUnreachableWhenTargetGone(t *testing.T) {
	m := NewManager()
	owner := NewSession("s", func([]byte) error { return nil }, nil)
	_ = m.RegisterTarget(owner, "t", 0, 0)
	ch, _ := m.OpenPushChannel(owner, "t")

	_ = m.DeregisterTarget(owner, "t")

	if err := m.TransferPushData(ch.ID, []byte("payload")); err == nil {
		t.Fatalf("expected unreachable error after target removal")
	}
}
