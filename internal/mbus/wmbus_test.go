package mbus

import (
	"crypto/aes"
	"crypto/cipher"
	"testing"

	"github.com/solostec/smf-gateway/internal/serverid"
)

// scenario 4: server 01-e61e-13090016-3c-07, mode 5, access-no 0x2A.
// After decrypt, first two payload bytes are 2F 2F; VDB yields two
// records.
func TestDecodeLongHeaderFrameMode5Decrypt(t *testing.T) {
	key := [16]byte{0x51, 0x72, 0x89, 0x10, 0xE6, 0x6D, 0x83, 0xF8, 0x51, 0x72, 0x89, 0x10, 0xE6, 0x6D, 0x83, 0xF8}
	const accessNo = 0x2A

	serial := uint32(0x13090016)
	manufacturer := uint16(0xe61e)
	version := byte(0x3c)
	medium := byte(0x07)

	id := serverid.FromMBusLongHeader(serial, manufacturer, version, medium)
	if got, want := id.String(), "01-e61e-13090016-3c-07"; got != want {
		t.Fatalf("server id = %q, want %q", got, want)
	}

	plaintext := []byte{
		0x2F, 0x2F, // decrypt marker
		0x04, 0x03, 0x78, 0x56, 0x34, 0x12, // record 1: Wh, raw 0x12345678
		0x03, 0x29, 0x01, 0x02, 0x03, // record 2: W, raw 0x030201
		0x0F,       // terminator
		0x00, 0x00, // pad to a 16-byte block
	}

	block, err := aes.NewCipher(key[:])
	if err != nil {
		t.Fatalf("aes setup: %v", err)
	}
	iv := DeriveIV(id, accessNo)
	ciphertext := make([]byte, len(plaintext))
	cipher.NewCBCEncrypter(block, iv[:]).CryptBlocks(ciphertext, plaintext)

	longHeader := []byte{
		byte(serial), byte(serial >> 8), byte(serial >> 16), byte(serial >> 24),
		byte(manufacturer), byte(manufacturer >> 8),
		version, medium,
		accessNo,
		0x00,       // status
		0x00, 0x00, // signature
	}

	frame := Frame{
		Kind:     KindLong,
		CI:       CILongHeaderEncrypted,
		UserData: append(longHeader, ciphertext...),
	}

	ks := NewKeyStore()
	ks.Set(id, key)

	readout, err := DecodeLongHeaderFrame(frame, Mode5, ks)
	if err != nil {
		t.Fatalf("decode long header frame: %v", err)
	}
	if !readout.Encrypted || !readout.Decrypted {
		t.Fatalf("expected encrypted+decrypted readout, got %+v", readout)
	}
	if readout.Header.ServerID.String() != "01-e61e-13090016-3c-07" {
		t.Fatalf("unexpected server id: %s", readout.Header.ServerID)
	}
	if len(readout.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(readout.Records))
	}
	if readout.Records[0].Unit != "Wh" || readout.Records[1].Unit != "W" {
		t.Fatalf("unexpected records: %+v", readout.Records)
	}
}

func TestDecodeLongHeaderFrameNoKeyConfigured(t *testing.T) {
	id := serverid.FromMBusLongHeader(1, 2, 3, 0x07)
	longHeader := []byte{1, 0, 0, 0, 2, 0, 3, 0x07, 0x2A, 0, 0, 0}
	frame := Frame{
		Kind:     KindLong,
		CI:       CILongHeaderEncrypted,
		UserData: append(longHeader, make([]byte, 16)...),
	}

	readout, err := DecodeLongHeaderFrame(frame, Mode5, NewKeyStore())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !readout.Encrypted || readout.Decrypted {
		t.Fatalf("expected raw-flagged unencrypted-read readout, got %+v", readout)
	}
	if readout.RawPayload == nil {
		t.Fatalf("expected raw payload to be preserved")
	}
	_ = id
}

func TestDecryptRejectsWrongKey(t *testing.T) {
	id := serverid.FromMBusLongHeader(1, 2, 3, 0x07)
	ciphertext := make([]byte, 16)
	var key [16]byte
	if _, err := Decrypt(Mode5, ciphertext, key, id, 0); err == nil {
		t.Fatalf("expected decrypt error for all-zero plaintext without 2F 2F marker")
	}
}
