package clusterbus

import (
	"testing"

	"github.com/solostec/smf-gateway/internal/cachestore"
	"github.com/solostec/smf-gateway/internal/ipt"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, *cachestore.Store) {
	t.Helper()
	store := cachestore.NewStore()
	if _, err := store.CreateTable(cachestore.Meta{
		Name:    "device",
		Columns: []cachestore.Column{{Name: "id", Type: "string"}, {Name: "status", Type: "string"}},
		PKCount: 1,
	}); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	sessions, err := NewSessionRegistry(store)
	if err != nil {
		t.Fatalf("NewSessionRegistry: %v", err)
	}
	d := NewDispatcher(nil, store, sessions, ipt.NewManager(), "master")
	return d, store
}

func TestDispatcherHandleInsertAndUpdate(t *testing.T) {
	d, store := newTestDispatcher(t)

	d.Handle("gateway.master", Envelope{
		Verb:   VerbDBReqInsert,
		Origin: "peer-1",
		Payload: map[string]any{
			"table": "device",
			"key":   []any{"dev-1"},
			"data":  map[string]any{"status": "ok"},
		},
	})

	tbl, _ := store.Table("device")
	row, ok := tbl.Lookup([]any{"dev-1"})
	if !ok || row.Values["status"] != "ok" {
		t.Fatalf("expected inserted row, got %+v ok=%v", row, ok)
	}

	d.Handle("gateway.master", Envelope{
		Verb:   VerbDBReqUpdate,
		Origin: "peer-1",
		Payload: map[string]any{
			"table": "device",
			"key":   []any{"dev-1"},
			"data":  map[string]any{"status": "degraded"},
		},
	})
	row, _ = tbl.Lookup([]any{"dev-1"})
	if row.Values["status"] != "degraded" {
		t.Fatalf("expected updated row, got %+v", row)
	}
}

func TestDispatcherHandleRemoveAndClear(t *testing.T) {
	d, store := newTestDispatcher(t)
	tbl, _ := store.Table("device")
	if _, err := tbl.Insert([]any{"dev-1"}, map[string]any{"status": "ok"}, 0, "seed"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	d.Handle("gateway.master", Envelope{
		Verb:    VerbDBReqRemove,
		Origin:  "peer-1",
		Payload: map[string]any{"table": "device", "key": []any{"dev-1"}},
	})
	if _, ok := tbl.Lookup([]any{"dev-1"}); ok {
		t.Fatal("expected row removed")
	}

	if _, err := tbl.Insert([]any{"dev-2"}, map[string]any{"status": "ok"}, 0, "seed"); err != nil {
		t.Fatalf("seed2: %v", err)
	}
	d.Handle("gateway.master", Envelope{
		Verb:    VerbDBReqClear,
		Origin:  "peer-1",
		Payload: map[string]any{"table": "device"},
	})
	if _, ok := tbl.Lookup([]any{"dev-2"}); ok {
		t.Fatal("expected table cleared")
	}
}

func TestDispatcherHandlePtyRegisterAndDeregister(t *testing.T) {
	d, store := newTestDispatcher(t)

	d.Handle("gateway.master", Envelope{
		Verb:    VerbPtyReqRegister,
		Origin:  "peer-1",
		Payload: map[string]any{"name": "lmn0"},
	})
	pty, _ := store.Table(TablePty)
	if _, ok := pty.Lookup([]any{"lmn0"}); !ok {
		t.Fatal("expected pty row registered")
	}

	d.Handle("gateway.master", Envelope{
		Verb:    VerbPtyReqDeregister,
		Origin:  "peer-1",
		Payload: map[string]any{"name": "lmn0"},
	})
	if _, ok := pty.Lookup([]any{"lmn0"}); ok {
		t.Fatal("expected pty row deregistered")
	}
}

func TestDispatcherHandleBackupInvokesConfiguredFunc(t *testing.T) {
	d, _ := newTestDispatcher(t)
	called := false
	d.Backup = func() error { called = true; return nil }
	d.Handle("gateway.master", Envelope{Verb: VerbCfgReqBackup, Origin: "peer-1"})
	if !called {
		t.Fatal("expected Backup to be invoked")
	}
}

func TestDispatcherHandleBackupWithoutTargetDoesNotPanic(t *testing.T) {
	d, _ := newTestDispatcher(t)
	d.Handle("gateway.master", Envelope{Verb: VerbCfgReqBackup, Origin: "peer-1"})
}
