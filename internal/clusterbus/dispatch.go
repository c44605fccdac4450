package clusterbus

import (
	"github.com/solostec/smf-gateway/internal/cachestore"
	"github.com/solostec/smf-gateway/internal/ipt"
	"github.com/solostec/smf-gateway/pkg/log"
)

// replySubject is the per-peer subject a response/notification for tag
// is published on. Every envelope already carries an origin tag for
// echo suppression; the dispatcher reuses that
// same tag as the addressing key for unicast replies, so a peer need
// only subscribe to one subject to receive both its own request
// replies and any table deltas it's subscribed to.
func replySubject(tag string) string { return "gateway.peer." + tag }

// Dispatcher routes incoming envelopes across the db.*/pty.*/
// cluster.*/cfg.* verbs to the cache store, the push-channel manager
// and the session registry. One Dispatcher serves one master process.
type Dispatcher struct {
	bus      *Bus
	store    *cachestore.Store
	sessions *SessionRegistry
	channels *ipt.Manager
	origin   string

	// Backup is invoked for cfg.req.backup; nil means backups aren't
	// configured on this instance.
	Backup func() error

	// Operators verifies human pty operator logins on
	// cluster.req.login; nil means every login is accepted purely on
	// the strength of its tag, as before this field existed.
	Operators *OperatorAuth
}

// NewDispatcher builds a dispatcher publishing its own table mutations
// and replies under origin (so its own echo is suppressed by peers
// using the same tag convention).
func NewDispatcher(bus *Bus, store *cachestore.Store, sessions *SessionRegistry, channels *ipt.Manager, origin string) *Dispatcher {
	return &Dispatcher{bus: bus, store: store, sessions: sessions, channels: channels, origin: origin}
}

// Handle processes one decoded envelope received on subject.
func (d *Dispatcher) Handle(subject string, env Envelope) {
	switch env.Verb {
	case VerbDBReqSubscribe:
		d.handleSubscribe(env)
	case VerbDBReqInsert:
		d.handleInsert(env)
	case VerbDBReqInsertAuto:
		d.handleInsertAuto(env)
	case VerbDBReqUpdate:
		d.handleUpdate(env)
	case VerbDBReqRemove:
		d.handleRemove(env)
	case VerbDBReqClear:
		d.handleClear(env)
	case VerbClusterReqLogin:
		d.handleLogin(env)
	case VerbClusterReqPing:
		d.handlePing(env)
	case VerbPtyReqRegister:
		d.handlePtyRegister(env)
	case VerbPtyReqDeregister:
		d.handlePtyDeregister(env)
	case VerbPtyReqOpenChannel:
		d.handlePtyOpenChannel(env)
	case VerbPtyReqCloseChannel:
		d.handlePtyCloseChannel(env)
	case VerbPtyReqTransferData:
		d.handlePtyTransferData(env)
	case VerbCfgReqBackup:
		d.handleBackup(env)
	default:
		log.Warnf("clusterbus: no handler for verb %q on %q", env.Verb, subject)
	}
}

func (d *Dispatcher) table(env Envelope) (*cachestore.Table, string, bool) {
	name, _ := env.Payload["table"].(string)
	tbl, ok := d.store.Table(name)
	if !ok {
		log.Warnf("clusterbus: unknown table %q requested by %q", name, env.Origin)
	}
	return tbl, name, ok
}

func anySlice(v any) []any {
	s, _ := v.([]any)
	return s
}

func stringMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func (d *Dispatcher) handleSubscribe(env Envelope) {
	tbl, _, ok := d.table(env)
	if !ok {
		return
	}
	Subscribe(tbl, env.Origin, func(out Envelope) {
		out.Origin = d.origin
		if err := d.bus.Publish(replySubject(env.Origin), out); err != nil {
			log.Warnf("clusterbus: publish subscribe reply to %q: %v", env.Origin, err)
		}
	})
}

func (d *Dispatcher) handleInsert(env Envelope) {
	tbl, _, ok := d.table(env)
	if !ok {
		return
	}
	var gen uint64
	if g, ok := env.Payload["gen"].(float64); ok {
		gen = uint64(g)
	}
	if _, err := tbl.Insert(anySlice(env.Payload["key"]), stringMap(env.Payload["data"]), gen, env.Origin); err != nil {
		log.Warnf("clusterbus: insert into %v failed: %v", env.Payload["table"], err)
	}
}

func (d *Dispatcher) handleInsertAuto(env Envelope) {
	tbl, _, ok := d.table(env)
	if !ok {
		return
	}
	if _, err := tbl.InsertAuto(stringMap(env.Payload["data"]), env.Origin); err != nil {
		log.Warnf("clusterbus: insert-auto into %v failed: %v", env.Payload["table"], err)
	}
}

func (d *Dispatcher) handleUpdate(env Envelope) {
	tbl, _, ok := d.table(env)
	if !ok {
		return
	}
	if _, err := tbl.Merge(anySlice(env.Payload["key"]), stringMap(env.Payload["data"]), env.Origin); err != nil {
		log.Warnf("clusterbus: update of %v failed: %v", env.Payload["table"], err)
	}
}

func (d *Dispatcher) handleRemove(env Envelope) {
	tbl, _, ok := d.table(env)
	if !ok {
		return
	}
	if err := tbl.Erase(anySlice(env.Payload["key"]), env.Origin); err != nil {
		log.Warnf("clusterbus: remove from %v failed: %v", env.Payload["table"], err)
	}
}

func (d *Dispatcher) handleClear(env Envelope) {
	tbl, _, ok := d.table(env)
	if !ok {
		return
	}
	tbl.Clear(env.Origin)
}

func (d *Dispatcher) handleLogin(env Envelope) {
	account, _ := env.Payload["account"].(string)
	nodeName, _ := env.Payload["node"].(string)
	tag := env.Origin

	if d.Operators != nil {
		password, _ := env.Payload["password"].(string)
		issued, _, err := d.Operators.Login(account, password)
		if err != nil {
			resp := Envelope{Verb: VerbClusterResLogin, Origin: d.origin, Payload: map[string]any{
				"success": false, "error": err.Error(),
			}}
			if pubErr := d.bus.Publish(replySubject(env.Origin), resp); pubErr != nil {
				log.Warnf("clusterbus: publish login reply to %q: %v", env.Origin, pubErr)
			}
			return
		}
		tag = issued
	}

	err := d.sessions.Login(env.Origin, account, tag, nodeName)
	resp := Envelope{Verb: VerbClusterResLogin, Origin: d.origin, Payload: map[string]any{"success": err == nil, "tag": tag}}
	if err != nil {
		resp.Payload["error"] = err.Error()
	}
	if pubErr := d.bus.Publish(replySubject(env.Origin), resp); pubErr != nil {
		log.Warnf("clusterbus: publish login reply to %q: %v", env.Origin, pubErr)
	}
}

func (d *Dispatcher) handlePing(env Envelope) {
	resp := Envelope{Verb: VerbClusterResPing, Origin: d.origin, Payload: map[string]any{}}
	if err := d.bus.Publish(replySubject(env.Origin), resp); err != nil {
		log.Warnf("clusterbus: publish ping reply to %q: %v", env.Origin, err)
	}
}

func (d *Dispatcher) handlePtyRegister(env Envelope) {
	name, _ := env.Payload["name"].(string)
	if err := d.sessions.RegisterPty(name, env.Origin); err != nil {
		log.Warnf("clusterbus: pty register %q failed: %v", name, err)
	}
}

func (d *Dispatcher) handlePtyDeregister(env Envelope) {
	name, _ := env.Payload["name"].(string)
	if err := d.sessions.DeregisterPty(name, env.Origin); err != nil {
		log.Warnf("clusterbus: pty deregister %q failed: %v", name, err)
	}
}

func (d *Dispatcher) handlePtyOpenChannel(env Envelope) {
	target, _ := env.Payload["target"].(string)
	ch, err := d.channels.OpenPushChannel(nil, target)
	if err != nil {
		log.Warnf("clusterbus: open push channel to %q failed: %v", target, err)
		return
	}
	resp := Envelope{Verb: VerbPtyReqOpenChannel, Origin: d.origin, Payload: map[string]any{"channel": ch.ID}}
	if err := d.bus.Publish(replySubject(env.Origin), resp); err != nil {
		log.Warnf("clusterbus: publish open-channel reply to %q: %v", env.Origin, err)
	}
}

func (d *Dispatcher) handlePtyCloseChannel(env Envelope) {
	id, _ := env.Payload["channel"].(float64)
	if err := d.channels.ClosePushChannel(uint32(id)); err != nil {
		log.Warnf("clusterbus: close push channel %v failed: %v", id, err)
	}
}

func (d *Dispatcher) handlePtyTransferData(env Envelope) {
	id, _ := env.Payload["channel"].(float64)
	data, _ := env.Payload["data"].(string)
	if err := d.channels.TransferPushData(uint32(id), []byte(data)); err != nil {
		log.Warnf("clusterbus: transfer push data on channel %v failed: %v", id, err)
	}
}

func (d *Dispatcher) handleBackup(env Envelope) {
	if d.Backup == nil {
		log.Warn("clusterbus: backup requested but no backup target is configured")
		return
	}
	if err := d.Backup(); err != nil {
		log.Errorf("clusterbus: backup failed: %v", err)
		return
	}
	log.Info("clusterbus: backup completed")
}
