package clusterbus

import "github.com/solostec/smf-gateway/internal/cachestore"

// GatewayConsistency enforces cross-table rule: inserting
// a meter row whose "gateway" attribute names a gateway with no
// existing row creates a gateway-IEC placeholder; removing the last
// meter referencing a gateway removes that placeholder. The cache
// store itself has no notion of cross-table relationships (by
// design — see internal/cachestore's ledger entry), so this lives
// here as a session-handler concern atop two plain tables.
type GatewayConsistency struct {
	meters   *cachestore.Table
	gateways *cachestore.Table
}

// NewGatewayConsistency subscribes to meters and starts enforcing the
// placeholder rule for rows inserted or removed from here on.
func NewGatewayConsistency(meters, gateways *cachestore.Table) *GatewayConsistency {
	g := &GatewayConsistency{meters: meters, gateways: gateways}
	meters.Subscribe(g)
	return g
}

func (g *GatewayConsistency) OnInsert(table string, row cachestore.Row, origin string) {
	gw, _ := row.Values["gateway"].(string)
	if gw == "" {
		return
	}
	if _, ok := g.gateways.Lookup([]any{gw}); !ok {
		_, _ = g.gateways.Insert([]any{gw}, map[string]any{"placeholder": true, "kind": "gateway-IEC"}, 0, origin)
	}
}

func (g *GatewayConsistency) OnUpdate(table string, row cachestore.Row, origin string) {
	g.OnInsert(table, row, origin)
}

// OnErase and OnClear can't tell which gateway lost a meter from the
// key alone (the gateway attribute lived on the row, which is now
// gone), so both fall back to a full reconciliation scan.
func (g *GatewayConsistency) OnErase(table string, key []any, origin string) {
	g.reconcile(origin)
}

func (g *GatewayConsistency) OnClear(table string, origin string) {
	g.reconcile(origin)
}

func (g *GatewayConsistency) reconcile(origin string) {
	live := make(map[string]bool)
	g.meters.Loop(func(row cachestore.Row) bool {
		if gw, _ := row.Values["gateway"].(string); gw != "" {
			live[gw] = true
		}
		return true
	})
	var stale [][]any
	g.gateways.Loop(func(row cachestore.Row) bool {
		gw, _ := row.Key[0].(string)
		if row.Values["placeholder"] == true && !live[gw] {
			stale = append(stale, row.Key)
		}
		return true
	})
	for _, key := range stale {
		_ = g.gateways.Erase(key, origin)
	}
}
