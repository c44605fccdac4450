package cachestore

// NotifySlot is the four-overload notification interface:
// insert, update, erase and clear, each carrying the origin tag so
// consumers — chiefly the cluster bus — can suppress a subscriber's own
// changes.
type NotifySlot interface {
	OnInsert(table string, row Row, origin string)
	OnUpdate(table string, row Row, origin string)
	OnErase(table string, key []any, origin string)
	OnClear(table string, origin string)
}

// Subscribe registers slot to receive every notification this table
// emits.
func (t *Table) Subscribe(slot NotifySlot) {
	t.slotMu.Lock()
	defer t.slotMu.Unlock()
	t.slots = append(t.slots, slot)
}

// SnapshotAndSubscribe atomically captures every current row and
// registers slot for future deltas under the table's single write
// lock, so no insert racing the subscription attempt can be missed or
// double-delivered: subscribers see the full snapshot before any live
// delta.
func (t *Table) SnapshotAndSubscribe(slot NotifySlot) []Row {
	t.mu.Lock()
	defer t.mu.Unlock()
	rows := make([]Row, 0, len(t.rows))
	for _, row := range t.rows {
		rows = append(rows, *row)
	}
	t.slotMu.Lock()
	t.slots = append(t.slots, slot)
	t.slotMu.Unlock()
	return rows
}

// Unsubscribe removes a previously registered slot.
func (t *Table) Unsubscribe(slot NotifySlot) {
	t.slotMu.Lock()
	defer t.slotMu.Unlock()
	for i, s := range t.slots {
		if s == slot {
			t.slots = append(t.slots[:i], t.slots[i+1:]...)
			return
		}
	}
}

func (t *Table) notifyInsert(row Row, origin string) {
	t.slotMu.Lock()
	slots := append([]NotifySlot(nil), t.slots...)
	t.slotMu.Unlock()
	for _, s := range slots {
		s.OnInsert(t.meta.Name, row, origin)
	}
}

func (t *Table) notifyUpdate(row Row, origin string) {
	t.slotMu.Lock()
	slots := append([]NotifySlot(nil), t.slots...)
	t.slotMu.Unlock()
	for _, s := range slots {
		s.OnUpdate(t.meta.Name, row, origin)
	}
}

func (t *Table) notifyErase(key []any, origin string) {
	t.slotMu.Lock()
	slots := append([]NotifySlot(nil), t.slots...)
	t.slotMu.Unlock()
	for _, s := range slots {
		s.OnErase(t.meta.Name, key, origin)
	}
}

func (t *Table) notifyClear(origin string) {
	t.slotMu.Lock()
	slots := append([]NotifySlot(nil), t.slots...)
	t.slotMu.Unlock()
	for _, s := range slots {
		s.OnClear(t.meta.Name, origin)
	}
}
