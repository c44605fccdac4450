package intake

import (
	"path/filepath"
	"testing"

	"github.com/solostec/smf-gateway/internal/cachestore"
	"github.com/solostec/smf-gateway/internal/mbus"
	"github.com/solostec/smf-gateway/internal/repository"
	"github.com/solostec/smf-gateway/pkg/log"
)

// buildLongFrame assembles a complete, checksummed M-Bus long frame
// carrying an unencrypted long header followed by one VDB record (the
// first record wmbus_test.go uses) and a terminator, the same wire
// shape wmbus_test.go exercises at the decoder layer one level down.
func buildLongFrame(t *testing.T) []byte {
	t.Helper()
	longHeader := []byte{
		0x16, 0x00, 0x09, 0x13, // serial 0x13090016 LE
		0x1e, 0xe6, // manufacturer
		0x3c, // version
		0x07, // medium
		0x2A, // access no
		0x00, // status
		0x00, 0x00, // signature
	}
	records := []byte{
		0x04, 0x03, 0x78, 0x56, 0x34, 0x12, // Wh, raw 0x12345678
		0x0F, // terminator
	}
	body := append([]byte{mbus.CILongHeader}, longHeader...)
	body = append(body, records...)

	ctrl, addr := byte(0x08), byte(0x01)
	payload := append([]byte{ctrl, addr}, body...)

	var sum byte
	for _, b := range payload {
		sum += b
	}

	buf := []byte{0x68, byte(len(payload)), byte(len(payload)), 0x68}
	buf = append(buf, payload...)
	buf = append(buf, sum, 0x16)
	return buf
}

func setupPipeline(t *testing.T) (*Pipeline, *repository.ReadoutRepository, *cachestore.Table) {
	t.Helper()
	log.SetLogLevel("warn")
	dbfile := filepath.Join(t.TempDir(), "intake.db")
	if err := repository.MigrateDB("sqlite3", dbfile); err != nil {
		t.Fatalf("MigrateDB: %v", err)
	}
	repository.Connect("sqlite3", dbfile)
	repo := repository.GetReadoutRepository()

	store := cachestore.NewStore()
	live, err := store.CreateTable(LiveReadoutTable)
	if err != nil {
		t.Fatalf("CreateTable: %v", err)
	}

	p := NewPipeline(repo, live, mbus.NewKeyStore(), mbus.ModeNone, "gateway-test")
	return p, repo, live
}

func TestPipelineFeedPersistsReadoutAndMirrorsLiveRow(t *testing.T) {
	p, repo, live := setupPipeline(t)

	p.Feed(buildLongFrame(t))

	meters, err := repo.ListMeters()
	if err != nil {
		t.Fatalf("ListMeters: %v", err)
	}
	if len(meters) != 1 {
		t.Fatalf("expected 1 meter, got %d", len(meters))
	}
	if meters[0].ServerID != "01-e61e-13090016-3c-07" {
		t.Fatalf("unexpected server id: %s", meters[0].ServerID)
	}

	row, ok := live.Lookup([]any{"01-e61e-13090016-3c-07"})
	if !ok {
		t.Fatal("expected a live row to be mirrored")
	}
	if row.Values["source"] != "mbus" {
		t.Fatalf("unexpected live row: %+v", row.Values)
	}
}

func TestPipelineFeedIgnoresNonLongFrames(t *testing.T) {
	p, repo, _ := setupPipeline(t)

	p.Feed([]byte{0xE5}) // ack frame, no decodable content

	meters, err := repo.ListMeters()
	if err != nil {
		t.Fatalf("ListMeters: %v", err)
	}
	if len(meters) != 0 {
		t.Fatalf("expected no meters from a non-long frame, got %d", len(meters))
	}
}
