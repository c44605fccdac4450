// Package intake wires the serial LMN port(s) and the cluster bus
// together with the readout decoders and persistence: bytes fanned out
// of an lmn.Port are framed as M-Bus telegrams, decrypted if wM-Bus
// encrypted, decoded into OBIS-addressed values, stored, and mirrored
// into a live "readout" cache-store table so cluster subscribers see
// new data without polling the database.
package intake

import (
	"fmt"
	"time"

	"github.com/solostec/smf-gateway/internal/cachestore"
	"github.com/solostec/smf-gateway/internal/mbus"
	"github.com/solostec/smf-gateway/internal/metrics"
	"github.com/solostec/smf-gateway/internal/repository"
	"github.com/solostec/smf-gateway/internal/serverid"
	"github.com/solostec/smf-gateway/pkg/log"
)

// LiveReadoutTable is the cachestore schema mirroring the most recent
// readout per meter, keyed by server id string.
var LiveReadoutTable = cachestore.Meta{
	Name: "readout-live",
	Columns: []Column{
		{Name: "server_id", Type: "string"},
		{Name: "act_time", Type: "time"},
		{Name: "source", Type: "string"},
	},
	PKCount: 1,
}

// Column is a local alias kept for readability in LiveReadoutTable's
// literal; it is cachestore.Column under the hood.
type Column = cachestore.Column

// Pipeline decodes bytes fanned out of one or more lmn.Port instances
// into persisted readouts, publishing each one onto the live table.
type Pipeline struct {
	repo    *repository.ReadoutRepository
	live    *cachestore.Table
	keys    *mbus.KeyStore
	mode    mbus.EncryptionMode
	origin  string
	medium  string
}

// NewPipeline builds a decode/persist pipeline. origin identifies this
// gateway process as a cache-store mutation origin so its own deltas
// are suppressed on its own cluster-bus subscription.
func NewPipeline(repo *repository.ReadoutRepository, live *cachestore.Table, keys *mbus.KeyStore, mode mbus.EncryptionMode, origin string) *Pipeline {
	return &Pipeline{repo: repo, live: live, keys: keys, mode: mode, origin: origin}
}

// Feed consumes one chunk of bytes read from a port, which is expected
// to hold exactly one M-Bus link-layer frame (the caller, typically
// lmn's fan-out of one read() per telegram on an RS-485 LMN line, is
// responsible for telegram boundaries).
func (p *Pipeline) Feed(buf []byte) {
	frame, _, err := mbus.ParseFrame(buf)
	if err != nil {
		metrics.FrameErrors.WithLabelValues("mbus").Inc()
		log.Warnf("intake: discarding unparseable frame: %v", err)
		return
	}
	if frame.Kind != mbus.KindLong {
		return
	}

	readout, err := mbus.DecodeLongHeaderFrame(frame, p.mode, p.keys)
	if err != nil {
		metrics.FrameErrors.WithLabelValues("mbus").Inc()
		log.Warnf("intake: decode failed for frame from address %d: %v", frame.Address, err)
		return
	}

	if err := p.store(readout.Header.ServerID, readout, buf); err != nil {
		log.Errorf("intake: persisting readout failed: %v", err)
		return
	}
	metrics.ReadoutsPersisted.WithLabelValues("mbus").Inc()
}

func (p *Pipeline) store(id serverid.ID, ro mbus.Readout, raw []byte) error {
	meterID, err := p.repo.GetOrCreateMeter(id, fmt.Sprintf("%d", id.Medium))
	if err != nil {
		return err
	}

	values := make([]repository.Value, 0, len(ro.Records))
	for _, r := range ro.Records {
		values = append(values, repository.Value{
			OBIS: r.OBIS, Raw: r.Raw, Scaler: r.Scaler, Unit: r.Unit,
		})
	}

	now := time.Now().UTC()
	if _, err := p.repo.InsertReadout(repository.Readout{
		MeterID: meterID, ActTime: now, Source: "mbus", Status: uint32(ro.Header.Status), Raw: raw, Values: values,
	}); err != nil {
		return err
	}

	if p.live != nil {
		if _, err := p.live.Insert([]any{id.String()}, map[string]any{
			"act_time": now, "source": "mbus",
		}, 0, p.origin); err != nil {
			return fmt.Errorf("intake: mirror live row: %w", err)
		}
	}
	return nil
}
