package clusterbus

import "github.com/solostec/smf-gateway/internal/cachestore"

// Subscriber bridges one cache-store table to a cluster-bus peer.
// Subscribe replays the table's current rows as db.res.insert
// envelopes, emits the trx marker, then forwards live deltas — never
// the peer's own writes back, which are suppressed by matching origin
// against tag.
type Subscriber struct {
	tag   string
	emit  func(env Envelope)
	table *cachestore.Table
}

// Subscribe registers a peer (identified by tag) against tbl and
// returns the live Subscriber. The snapshot and the subscription
// registration happen under the table's single write lock
// (SnapshotAndSubscribe), so a row inserted concurrently with this
// call is delivered exactly once, either in the snapshot or as the
// first delta, never both and never neither.
func Subscribe(tbl *cachestore.Table, tag string, emit func(env Envelope)) *Subscriber {
	s := &Subscriber{tag: tag, emit: emit, table: tbl}

	rows := tbl.SnapshotAndSubscribe(s)
	for _, row := range rows {
		emit(Envelope{
			Verb: VerbDBResInsert,
			Payload: map[string]any{
				"table": tbl.Meta().Name,
				"key":   row.Key,
				"data":  row.Values,
				"gen":   row.Gen,
			},
		})
	}
	emit(Envelope{Verb: VerbDBResSubscribeTrx, Payload: map[string]any{"table": tbl.Meta().Name}})

	return s
}

// Unsubscribe stops delivery of further deltas.
func (s *Subscriber) Unsubscribe() {
	s.table.Unsubscribe(s)
}

func (s *Subscriber) OnInsert(table string, row cachestore.Row, origin string) {
	s.deliver(VerbDBResInsert, table, row, origin)
}

func (s *Subscriber) OnUpdate(table string, row cachestore.Row, origin string) {
	s.deliver(VerbDBResUpdate, table, row, origin)
}

func (s *Subscriber) OnErase(table string, key []any, origin string) {
	if origin == s.tag {
		return
	}
	s.emit(Envelope{Verb: VerbDBResRemove, Payload: map[string]any{"table": table, "key": key}})
}

func (s *Subscriber) OnClear(table string, origin string) {
	if origin == s.tag {
		return
	}
	s.emit(Envelope{Verb: VerbDBResClear, Payload: map[string]any{"table": table}})
}

func (s *Subscriber) deliver(verb, table string, row cachestore.Row, origin string) {
	if origin == s.tag {
		return
	}
	s.emit(Envelope{
		Verb:    verb,
		Payload: map[string]any{"table": table, "key": row.Key, "data": row.Values, "gen": row.Gen},
	})
}
