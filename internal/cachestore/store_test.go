package cachestore

import "testing"

type recorder struct {
	inserts int
	updates int
	erases  int
	clears  int
	lastRow Row
}

func (r *recorder) OnInsert(table string, row Row, origin string) { r.inserts++; r.lastRow = row }
func (r *recorder) OnUpdate(table string, row Row, origin string) { r.updates++; r.lastRow = row }
func (r *recorder) OnErase(table string, key []any, origin string) { r.erases++ }
func (r *recorder) OnClear(table string, origin string)            { r.clears++ }

func deviceMeta() Meta {
	return Meta{
		Name:    "device",
		Columns: []Column{{Name: "id", Type: "string"}, {Name: "status", Type: "string"}},
		PKCount: 1,
	}
}

func TestInsertLookupMergeErase(t *testing.T) {
	s := NewStore()
	tbl, err := s.CreateTable(deviceMeta())
	if err != nil {
		t.Fatalf("create table: %v", err)
	}
	rec := &recorder{}
	tbl.Subscribe(rec)

	if _, err := tbl.Insert([]any{"dev-1"}, map[string]any{"status": "online"}, 0, "tag-a"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if rec.inserts != 1 {
		t.Fatalf("expected 1 insert notification, got %d", rec.inserts)
	}

	row, ok := tbl.Lookup([]any{"dev-1"})
	if !ok || row.Values["status"] != "online" {
		t.Fatalf("unexpected lookup: %+v, ok=%v", row, ok)
	}

	if _, err := tbl.Merge([]any{"dev-1"}, map[string]any{"status": "offline"}, "tag-a"); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if rec.updates != 1 {
		t.Fatalf("expected 1 update notification, got %d", rec.updates)
	}
	row, _ = tbl.Lookup([]any{"dev-1"})
	if row.Values["status"] != "offline" {
		t.Fatalf("merge did not apply: %+v", row)
	}
	if row.Gen <= 1 {
		t.Fatalf("expected generation to advance past insert, got %d", row.Gen)
	}

	if err := tbl.Erase([]any{"dev-1"}, "tag-a"); err != nil {
		t.Fatalf("erase: %v", err)
	}
	if rec.erases != 1 {
		t.Fatalf("expected 1 erase notification, got %d", rec.erases)
	}
	if _, ok := tbl.Lookup([]any{"dev-1"}); ok {
		t.Fatalf("expected row gone after erase")
	}
}

func TestMergeUnknownRowErrors(t *testing.T) {
	s := NewStore()
	tbl, _ := s.CreateTable(deviceMeta())
	if _, err := tbl.Merge([]any{"nope"}, map[string]any{"status": "x"}, "t"); err == nil {
		t.Fatalf("expected error merging into unknown row")
	}
}

func TestEraseUnknownKeyIsNoOp(t *testing.T) {
	s := NewStore()
	tbl, _ := s.CreateTable(deviceMeta())
	if err := tbl.Erase([]any{"nope"}, "t"); err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
}

func TestInsertAutoAssignsMonotoneKeys(t *testing.T) {
	s := NewStore()
	tbl, _ := s.CreateTable(Meta{
		Name:    "sysmsg",
		Columns: []Column{{Name: "id", Type: "uint"}, {Name: "text", Type: "string"}},
		PKCount: 1,
		Auto:    true,
	})

	r1, err := tbl.InsertAuto(map[string]any{"text": "first"}, "sys")
	if err != nil {
		t.Fatalf("insert auto: %v", err)
	}
	r2, err := tbl.InsertAuto(map[string]any{"text": "second"}, "sys")
	if err != nil {
		t.Fatalf("insert auto: %v", err)
	}
	if r1.Key[0] == r2.Key[0] {
		t.Fatalf("expected distinct auto keys, got %v and %v", r1.Key, r2.Key)
	}
}

func TestInsertAutoRejectedOnNonAutoTable(t *testing.T) {
	s := NewStore()
	tbl, _ := s.CreateTable(deviceMeta())
	if _, err := tbl.InsertAuto(map[string]any{"status": "x"}, "t"); err == nil {
		t.Fatalf("expected error on non-auto table")
	}
}

func TestClearRemovesAllRowsAndNotifies(t *testing.T) {
	s := NewStore()
	tbl, _ := s.CreateTable(deviceMeta())
	rec := &recorder{}
	tbl.Subscribe(rec)

	_, _ = tbl.Insert([]any{"a"}, map[string]any{"status": "x"}, 0, "t")
	_, _ = tbl.Insert([]any{"b"}, map[string]any{"status": "x"}, 0, "t")
	tbl.Clear("t")

	if rec.clears != 1 {
		t.Fatalf("expected 1 clear notification, got %d", rec.clears)
	}
	count := 0
	tbl.Loop(func(Row) bool { count++; return true })
	if count != 0 {
		t.Fatalf("expected empty table after clear, got %d rows", count)
	}
}

func TestLoopStopsEarly(t *testing.T) {
	s := NewStore()
	tbl, _ := s.CreateTable(deviceMeta())
	for i := 0; i < 5; i++ {
		_, _ = tbl.Insert([]any{string(rune('a' + i))}, map[string]any{"status": "x"}, 0, "t")
	}
	seen := 0
	tbl.Loop(func(Row) bool {
		seen++
		return seen < 2
	})
	if seen != 2 {
		t.Fatalf("expected loop to stop after 2 rows, saw %d", seen)
	}
}

func TestCreateTableRejectsDuplicateName(t *testing.T) {
	s := NewStore()
	if _, err := s.CreateTable(deviceMeta()); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := s.CreateTable(deviceMeta()); err == nil {
		t.Fatalf("expected duplicate table name error")
	}
}
