package mbus

import "testing"

func TestReadVDBTwoInstantaneousRecords(t *testing.T) {
	buf := []byte{
		0x04, 0x03, 0x78, 0x56, 0x34, 0x12, // DIF=4-byte int, VIF=Wh exp0, value=0x12345678
		0x03, 0x29, 0x01, 0x02, 0x03, // DIF=3-byte int, VIF=W exp-2, value=0x030201
		0x0F, // terminator
	}
	records, err := ReadVDB(buf)
	if err != nil {
		t.Fatalf("read vdb: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Unit != "Wh" || records[0].Raw != 0x12345678 || records[0].Scaler != 0 {
		t.Fatalf("unexpected record 0: %+v", records[0])
	}
	if records[1].Unit != "W" || records[1].Raw != 0x030201 || records[1].Scaler != -2 {
		t.Fatalf("unexpected record 1: %+v", records[1])
	}
}

func TestReadVDBStopsAtTerminator(t *testing.T) {
	buf := []byte{0x1F, 0x04, 0x03, 0x01, 0x02, 0x03, 0x04}
	records, err := ReadVDB(buf)
	if err != nil {
		t.Fatalf("read vdb: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records, got %d", len(records))
	}
}

func TestReadVDBLVARLength(t *testing.T) {
	buf := []byte{
		0x0D, 0x00, 0x03, // DIF=LVAR, VIF=Wh exp-3, lvar-length=3
		0x01, 0x02, 0x03,
		0x0F,
	}
	records, err := ReadVDB(buf)
	if err != nil {
		t.Fatalf("read vdb: %v", err)
	}
	if len(records) != 1 || records[0].Raw != 0x030201 {
		t.Fatalf("unexpected records: %+v", records)
	}
}

func TestReadVDBTruncatedValueErrors(t *testing.T) {
	buf := []byte{0x04, 0x03, 0x01, 0x02}
	if _, err := ReadVDB(buf); err == nil {
		t.Fatalf("expected truncated value error")
	}
}

func TestReadVDBFunctionAndStorageBits(t *testing.T) {
	buf := []byte{
		0x54, 0x03, 0x44, 0x33, 0x22, 0x11, // DIF=0101_0100: storage=1, function=max, 4-byte int; VIF=Wh exp0
		0x0F,
	}
	records, err := ReadVDB(buf)
	if err != nil {
		t.Fatalf("read vdb: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	r := records[0]
	if r.Function != FunctionMaximum {
		t.Fatalf("expected function=Maximum, got %v", r.Function)
	}
	if r.Storage != 1 {
		t.Fatalf("expected storage=1, got %d", r.Storage)
	}
	if r.Raw != 0x11223344 {
		t.Fatalf("unexpected raw value: %#x", r.Raw)
	}
}
