package serverid

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	id := ID{
		MediumClass:  1,
		Manufacturer: 0xa815,
		Serial:       0x74314504,
		Version:      1,
		Medium:       2,
	}
	decoded, err := Decode(id.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded != id {
		t.Fatalf("round-trip mismatch: got %+v want %+v", decoded, id)
	}
}

func TestDecode8ByteForm(t *testing.T) {
	id := ID{Manufacturer: 0xa815, Serial: 0x74314504, Version: 1, Medium: 2}
	buf := id.Encode()[1:] // drop medium-class byte
	decoded, err := Decode(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded != id {
		t.Fatalf("mismatch: got %+v want %+v", decoded, id)
	}
}

func TestDecodeRejectsBadLength(t *testing.T) {
	if _, err := Decode(make([]byte, 7)); err == nil {
		t.Fatalf("expected error for 7-byte buffer")
	}
}

func TestManufacturerPackRoundTrip(t *testing.T) {
	v, err := PackManufacturer("ABC")
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	if got := UnpackManufacturer(v); got != "ABC" {
		t.Fatalf("got %q want ABC", got)
	}
}

func TestStringFormat(t *testing.T) {
	id := ID{MediumClass: 1, Manufacturer: 0xa815, Serial: 0x74314504, Version: 1, Medium: 2}
	if got, want := id.String(), "01-a815-74314504-01-02"; got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}
