package clusterbus

import "github.com/solostec/smf-gateway/internal/cachestore"

// Table names for the two registries every master node keeps: the set
// of logged-in peers, and the pty (ipt session/channel) resources each
// one owns.
const (
	TableClusterSession = "cluster-session"
	TablePty            = "pty"
)

// SessionRegistry tracks logged-in cluster peers and the pty resources
// they've registered, as ordinary cache-store tables rather than a
// bespoke map — so the existing subscribe/notify machinery already
// gives "who's online" and "who owns this pty" the same replication
// and snapshot-then-delta semantics as any other table.
type SessionRegistry struct {
	sessions *cachestore.Table
	pty      *cachestore.Table
}

// NewSessionRegistry creates the cluster-session and pty tables on
// store.
func NewSessionRegistry(store *cachestore.Store) (*SessionRegistry, error) {
	sessions, err := store.CreateTable(cachestore.Meta{
		Name: TableClusterSession,
		Columns: []cachestore.Column{
			{Name: "peer", Type: "string"},
			{Name: "account", Type: "string"},
			{Name: "tag", Type: "string"},
			{Name: "nodeName", Type: "string"},
		},
		PKCount: 1,
	})
	if err != nil {
		return nil, err
	}
	pty, err := store.CreateTable(cachestore.Meta{
		Name: TablePty,
		Columns: []cachestore.Column{
			{Name: "name", Type: "string"},
			{Name: "peer", Type: "string"},
		},
		PKCount: 1,
	})
	if err != nil {
		return nil, err
	}
	return &SessionRegistry{sessions: sessions, pty: pty}, nil
}

func (r *SessionRegistry) Sessions() *cachestore.Table { return r.sessions }
func (r *SessionRegistry) Pty() *cachestore.Table       { return r.pty }

// Login records peer as logged in under tag.
func (r *SessionRegistry) Login(peer, account, tag, nodeName string) error {
	_, err := r.sessions.Insert([]any{peer},
		map[string]any{"account": account, "tag": tag, "nodeName": nodeName}, 0, tag)
	return err
}

// RegisterPty records that peer owns the pty resource name.
func (r *SessionRegistry) RegisterPty(name, peer string) error {
	_, err := r.pty.Insert([]any{name}, map[string]any{"peer": peer}, 0, peer)
	return err
}

// DeregisterPty releases ownership of a pty resource explicitly
// (pty.req.deregister), independent of disconnect.
func (r *SessionRegistry) DeregisterPty(name, peer string) error {
	return r.pty.Erase([]any{name}, peer)
}

// RemovePeer implements the cancellation rule: on TCP
// disconnect, the master removes the peer's cluster-session row and
// every pty row it owns. Both erasures flow through the cache store's
// own notification slots, so remaining subscribers see the removals
// as ordinary db.res.remove deltas — no separate broadcast path is
// needed.
func (r *SessionRegistry) RemovePeer(peer string) {
	_ = r.sessions.Erase([]any{peer}, peer)

	var owned []string
	r.pty.Loop(func(row cachestore.Row) bool {
		if p, _ := row.Values["peer"].(string); p == peer {
			owned = append(owned, row.Key[0].(string))
		}
		return true
	})
	for _, name := range owned {
		_ = r.pty.Erase([]any{name}, peer)
	}
}
