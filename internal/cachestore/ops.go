package cachestore

import (
	"fmt"
	"maps"

	"github.com/solostec/smf-gateway/internal/gwerr"
)

// Insert adds or replaces a row at key. gen, if zero, is assigned the
// table's next generation value; rows are never inserted with a
// generation older than what the table has already issued.
func (t *Table) Insert(key []any, values map[string]any, gen uint64, origin string) (Row, error) {
	if err := t.validateKey(key); err != nil {
		return Row{}, err
	}
	t.mu.Lock()
	if gen == 0 || gen <= t.nextGen {
		t.nextGen++
		gen = t.nextGen
	} else {
		t.nextGen = gen
	}
	row := &Row{Key: append([]any(nil), key...), Values: maps.Clone(values), Gen: gen}
	t.rows[keyString(key)] = row
	out := *row
	// Notify while still holding the write lock so concurrent writers
	// can't deliver their notifications out of generation order: within
	// a table, mutations are totally ordered and subscribers see the
	// same order.
	t.notifyInsert(out, origin)
	t.mu.Unlock()
	return out, nil
}

// InsertAuto inserts values under a freshly generated key for an
// auto-table — the monotone key generator reserves for
// sysMsg and uplink tables.
func (t *Table) InsertAuto(values map[string]any, origin string) (Row, error) {
	if !t.meta.Auto {
		return Row{}, fmt.Errorf("cachestore: table %q is not an auto-table: %w", t.meta.Name, gwerr.ErrConfig)
	}
	t.mu.Lock()
	t.nextAutoKey++
	autoKey := t.nextAutoKey
	t.mu.Unlock()

	return t.Insert([]any{autoKey}, values, 0, origin)
}

// Merge partially updates the row at key, applying patch attribute by
// attribute. It is an error to
// merge into a key that doesn't exist.
func (t *Table) Merge(key []any, patch map[string]any, origin string) (Row, error) {
	if err := t.validateKey(key); err != nil {
		return Row{}, err
	}
	ks := keyString(key)

	t.mu.Lock()
	row, ok := t.rows[ks]
	if !ok {
		t.mu.Unlock()
		return Row{}, fmt.Errorf("cachestore: merge into unknown row in %q: %w", t.meta.Name, gwerr.ErrResourceNotFound)
	}
	t.nextGen++
	merged := &Row{Key: row.Key, Values: maps.Clone(row.Values), Gen: t.nextGen}
	if merged.Values == nil {
		merged.Values = make(map[string]any)
	}
	maps.Copy(merged.Values, patch)
	t.rows[ks] = merged
	out := *merged
	t.notifyUpdate(out, origin)
	t.mu.Unlock()
	return out, nil
}

// Erase removes the row at key. Erasing a missing key is a no-op.
func (t *Table) Erase(key []any, origin string) error {
	if err := t.validateKey(key); err != nil {
		return err
	}
	ks := keyString(key)
	t.mu.Lock()
	if _, ok := t.rows[ks]; !ok {
		t.mu.Unlock()
		return nil
	}
	delete(t.rows, ks)
	t.notifyErase(key, origin)
	t.mu.Unlock()
	return nil
}

// Clear removes every row in the table.
func (t *Table) Clear(origin string) {
	t.mu.Lock()
	t.rows = make(map[string]*Row)
	t.notifyClear(origin)
	t.mu.Unlock()
}

// Lookup returns the row at key, if present.
func (t *Table) Lookup(key []any) (Row, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	row, ok := t.rows[keyString(key)]
	if !ok {
		return Row{}, false
	}
	return *row, true
}

// Loop calls fn for every row in the table, in indeterminate order,
// stopping early if fn returns false. A snapshot of row pointers is
// taken under the lock so fn can take as long as it needs without
// blocking writers.
func (t *Table) Loop(fn func(Row) bool) {
	t.mu.RLock()
	rows := make([]*Row, 0, len(t.rows))
	for _, row := range t.rows {
		rows = append(rows, row)
	}
	t.mu.RUnlock()

	for _, row := range rows {
		if !fn(*row) {
			return
		}
	}
}
