package ipt

import (
	"bytes"
	"testing"
)

func loginKey() [32]byte {
	var k [32]byte
	k[31] = 1
	return k
}

func TestScramblerRoundTrip(t *testing.T) {
	key := loginKey()
	enc := NewScrambler(key)
	dec := NewScrambler(key)

	plain := []byte("SCSSGSWPull8:SCSSGSWPull2014:open-push-channel")
	scrambled := enc.TransformBuf(bytes.Clone(plain))
	recovered := dec.TransformBuf(bytes.Clone(scrambled))

	if !bytes.Equal(plain, recovered) {
		t.Fatalf("round trip failed: got %q want %q", recovered, plain)
	}
	if bytes.Equal(plain, scrambled) {
		t.Fatalf("scrambled buffer should differ from plaintext")
	}
}

func TestScramblerResetRestartsPosition(t *testing.T) {
	key := loginKey()
	s := NewScrambler(key)
	first := s.Transform('A')

	s.Reset(key)
	second := s.Transform('A')

	if first != second {
		t.Fatalf("reset did not restart position: %x != %x", first, second)
	}
}

func TestScramblerRequiresSamePosition(t *testing.T) {
	key := loginKey()
	enc := NewScrambler(key)
	dec := NewScrambler(key)

	plain := []byte("hello world")
	scrambled := enc.TransformBuf(bytes.Clone(plain))

	// decoder skips ahead one octet: positions are no longer aligned
	dec.Transform(0)
	recovered := dec.TransformBuf(bytes.Clone(scrambled))

	if bytes.Equal(plain, recovered) {
		t.Fatalf("expected mismatch when positions are not aligned")
	}
}
