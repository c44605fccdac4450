package repository

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/solostec/smf-gateway/internal/obis"
	"github.com/solostec/smf-gateway/internal/serverid"
	"github.com/solostec/smf-gateway/pkg/log"
)

func setupReadoutRepo(t *testing.T) *ReadoutRepository {
	t.Helper()
	log.SetLogLevel("warn")
	dbfile := filepath.Join(t.TempDir(), "readout.db")
	if err := MigrateDB("sqlite3", dbfile); err != nil {
		t.Fatalf("MigrateDB: %v", err)
	}
	Connect("sqlite3", dbfile)
	return GetReadoutRepository()
}

func TestGetOrCreateMeterIsIdempotent(t *testing.T) {
	repo := setupReadoutRepo(t)
	id := serverid.FromMBusLongHeader(0x13090016, 0xe61e, 0x3c, 0x07)

	first, err := repo.GetOrCreateMeter(id, "wmbus")
	if err != nil {
		t.Fatalf("GetOrCreateMeter: %v", err)
	}
	second, err := repo.GetOrCreateMeter(id, "wmbus")
	if err != nil {
		t.Fatalf("GetOrCreateMeter (second): %v", err)
	}
	if first != second {
		t.Fatalf("expected same meter id, got %d and %d", first, second)
	}
}

func TestInsertReadoutAndQuerySlots(t *testing.T) {
	repo := setupReadoutRepo(t)
	id := serverid.FromMBusLongHeader(0x13090016, 0xe61e, 0x3c, 0x07)
	meterID, err := repo.GetOrCreateMeter(id, "wmbus")
	if err != nil {
		t.Fatalf("GetOrCreateMeter: %v", err)
	}

	code := obis.New(1, 0, 1, 8, 0, 255)
	base := time.Date(2022, 7, 19, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		ro := Readout{
			MeterID: meterID,
			ActTime: base.Add(time.Duration(i) * 15 * time.Minute),
			Source:  "mbus",
			Raw:     []byte{0x01, 0x02},
			Values: []Value{
				{OBIS: code, Raw: int64(1000 + i), Scaler: -1, Unit: "Wh"},
			},
		}
		if _, err := repo.InsertReadout(ro); err != nil {
			t.Fatalf("InsertReadout %d: %v", i, err)
		}
	}

	slots, err := repo.QuerySlots(meterID, code, base, base.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("QuerySlots: %v", err)
	}
	if len(slots) != 3 {
		t.Fatalf("expected 3 slots, got %d", len(slots))
	}
	if slots[0].Raw != 1000 || slots[2].Raw != 1002 {
		t.Fatalf("unexpected slot values: %+v", slots)
	}
}

func TestTransactionBatchesReadoutInserts(t *testing.T) {
	repo := setupReadoutRepo(t)
	id := serverid.FromMBusLongHeader(0x13090016, 0xe61e, 0x3c, 0x07)
	meterID, err := repo.GetOrCreateMeter(id, "wmbus")
	if err != nil {
		t.Fatalf("GetOrCreateMeter: %v", err)
	}

	tx, err := repo.TransactionInit()
	if err != nil {
		t.Fatalf("TransactionInit: %v", err)
	}

	code := obis.New(1, 0, 1, 8, 0, 255)
	actTime := time.Date(2022, 7, 19, 1, 0, 0, 0, time.UTC)
	readoutID, err := repo.TransactionAdd(tx, Readout{MeterID: meterID, ActTime: actTime, Source: "mbus"})
	if err != nil {
		t.Fatalf("TransactionAdd: %v", err)
	}
	if err := repo.TransactionAddValue(tx, readoutID, Value{OBIS: code, Raw: 42, Scaler: 0, Unit: "Wh"}); err != nil {
		t.Fatalf("TransactionAddValue: %v", err)
	}
	if err := repo.TransactionEnd(tx); err != nil {
		t.Fatalf("TransactionEnd: %v", err)
	}

	slots, err := repo.QuerySlots(meterID, code, actTime, actTime.Add(time.Minute))
	if err != nil {
		t.Fatalf("QuerySlots: %v", err)
	}
	if len(slots) != 1 || slots[0].Raw != 42 {
		t.Fatalf("unexpected slots after transaction: %+v", slots)
	}
}
