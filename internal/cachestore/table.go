// Package cachestore implements the in-memory cache-store: a named
// set of typed tables with generation-tracked rows, notification
// slots and an auto-table key generator. Rows are addressed by a
// fixed-width primary key rather than an arbitrary-depth selector.
package cachestore

import (
	"fmt"
	"strings"
	"sync"

	"github.com/solostec/smf-gateway/internal/gwerr"
)

// Column describes one table column by name and logical type.
type Column struct {
	Name string
	Type string // "string", "int", "uint", "float", "time", "bytes", "any"
}

// Meta is a table's schema: its columns and how many leading columns
// form the primary key.
type Meta struct {
	Name    string
	Columns []Column
	PKCount int
	Auto    bool // auto-tables maintain a monotone key generator
}

// Row is one stored record, keyed by its first PKCount column values.
type Row struct {
	Key    []any
	Values map[string]any
	Gen    uint64
}

// Table is a single named table: a map of rows guarded by one
// read-write mutex, the same per-node locking shape
// internal/memorystore.Level uses for its children map.
type Table struct {
	meta Meta
	mu   sync.RWMutex
	rows map[string]*Row

	nextGen     uint64
	nextAutoKey uint64

	slotMu sync.Mutex
	slots  []NotifySlot
}

func newTable(meta Meta) *Table {
	return &Table{
		meta: meta,
		rows: make(map[string]*Row),
	}
}

// Meta returns the table's schema.
func (t *Table) Meta() Meta {
	return t.meta
}

// keyString renders a primary key as a stable map key.
func keyString(key []any) string {
	parts := make([]string, len(key))
	for i, k := range key {
		parts[i] = fmt.Sprint(k)
	}
	return strings.Join(parts, "\x1f")
}

func (t *Table) validateKey(key []any) error {
	if len(key) != t.meta.PKCount {
		return fmt.Errorf("cachestore: table %q expects %d key columns, got %d: %w",
			t.meta.Name, t.meta.PKCount, len(key), gwerr.ErrConfig)
	}
	return nil
}
