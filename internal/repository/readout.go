package repository

import (
	"fmt"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/solostec/smf-gateway/internal/obis"
	"github.com/solostec/smf-gateway/internal/serverid"
	"github.com/solostec/smf-gateway/pkg/log"
)

// ReadoutRepository persists meters and the readouts collected from
// them: a sync.Once singleton wrapping *sqlx.DB plus a squirrel
// statement cache.
type ReadoutRepository struct {
	DB *sqlx.DB

	stmtCache *sq.StmtCache
}

var (
	readoutRepoOnce     sync.Once
	readoutRepoInstance *ReadoutRepository
)

// GetReadoutRepository returns the process-wide repository singleton.
func GetReadoutRepository() *ReadoutRepository {
	readoutRepoOnce.Do(func() {
		db := GetConnection()
		readoutRepoInstance = &ReadoutRepository{
			DB:        db.DB,
			stmtCache: sq.NewStmtCache(db.DB),
		}
	})
	return readoutRepoInstance
}

// Value is one OBIS-addressed measurement within a Readout.
type Value struct {
	OBIS   obis.Code
	Raw    int64
	Scaler int8
	Unit   string
}

// Readout is one decoded SML or M-Bus telegram ready for persistence.
type Readout struct {
	ID      int64
	MeterID int64
	ActTime time.Time
	Source  string // "sml" or "mbus"
	Status  uint32
	Raw     []byte
	Values  []Value
}

// GetOrCreateMeter looks up the meter row for id, creating one if this
// is the first time this server ID has been seen.
func (r *ReadoutRepository) GetOrCreateMeter(id serverid.ID, medium string) (int64, error) {
	serverIDStr := id.String()

	var meterID int64
	err := sq.Select("id").From("meter").Where(sq.Eq{"server_id": serverIDStr}).
		RunWith(r.stmtCache).QueryRow().Scan(&meterID)
	if err == nil {
		return meterID, nil
	}

	res, err := sq.Insert("meter").Columns("server_id", "medium").Values(serverIDStr, medium).
		RunWith(r.stmtCache).Exec()
	if err != nil {
		return 0, fmt.Errorf("repository: create meter %s: %w", serverIDStr, err)
	}
	meterID, err = res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("repository: read meter id for %s: %w", serverIDStr, err)
	}
	return meterID, nil
}

// InsertReadout persists one readout and its values inside a single
// transaction: either the whole telegram lands, or none of it does.
func (r *ReadoutRepository) InsertReadout(ro Readout) (int64, error) {
	tx, err := r.DB.Beginx()
	if err != nil {
		return 0, fmt.Errorf("repository: begin readout transaction: %w", err)
	}

	res, err := tx.Exec(
		`INSERT INTO readout (meter_id, act_time, source, status, raw) VALUES (?, ?, ?, ?, ?)`,
		ro.MeterID, ro.ActTime.Unix(), ro.Source, ro.Status, ro.Raw,
	)
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("repository: insert readout: %w", err)
	}
	readoutID, err := res.LastInsertId()
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("repository: read readout id: %w", err)
	}

	for _, v := range ro.Values {
		if _, err := tx.Exec(
			`INSERT INTO readout_data (readout_id, obis, raw_value, scaler, unit) VALUES (?, ?, ?, ?, ?)`,
			readoutID, v.OBIS.String(), v.Raw, v.Scaler, v.Unit,
		); err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("repository: insert readout_data: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		log.Warnf("repository: commit readout for meter %d failed: %v", ro.MeterID, err)
		return 0, err
	}
	return readoutID, nil
}

// QuerySlots returns every (act_time, raw_value, scaler) sample for
// meterID and obisCode within [from, to), ordered by act_time. This is
// the feed internal/report draws its profile slots from.
func (r *ReadoutRepository) QuerySlots(meterID int64, obisCode obis.Code, from, to time.Time) ([]Slot, error) {
	rows, err := sq.Select("readout.act_time", "readout.status", "readout_data.raw_value", "readout_data.scaler", "readout_data.unit").
		From("readout").
		Join("readout_data ON readout_data.readout_id = readout.id").
		Where(sq.Eq{"readout.meter_id": meterID, "readout_data.obis": obisCode.String()}).
		Where(sq.GtOrEq{"readout.act_time": from.Unix()}).
		Where(sq.Lt{"readout.act_time": to.Unix()}).
		OrderBy("readout.act_time ASC").
		RunWith(r.stmtCache).Query()
	if err != nil {
		return nil, fmt.Errorf("repository: query slots: %w", err)
	}
	defer rows.Close()

	var out []Slot
	for rows.Next() {
		var s Slot
		var actTime int64
		if err := rows.Scan(&actTime, &s.Status, &s.Raw, &s.Scaler, &s.Unit); err != nil {
			return nil, fmt.Errorf("repository: scan slot: %w", err)
		}
		s.Time = time.Unix(actTime, 0).UTC()
		out = append(out, s)
	}
	return out, rows.Err()
}

// Slot is one sample of a profile feed.
type Slot struct {
	Time   time.Time
	Raw    int64
	Scaler int8
	Unit   string
	Status uint32
}

// Meter is one row of the meter table.
type Meter struct {
	ID       int64
	ServerID string
	Medium   string
	Gateway  string
}

// ListMeters returns every known meter, for report generation to loop
// over.
func (r *ReadoutRepository) ListMeters() ([]Meter, error) {
	rows, err := sq.Select("id", "server_id", "medium", "gateway").From("meter").
		RunWith(r.stmtCache).Query()
	if err != nil {
		return nil, fmt.Errorf("repository: list meters: %w", err)
	}
	defer rows.Close()

	var out []Meter
	for rows.Next() {
		var m Meter
		if err := rows.Scan(&m.ID, &m.ServerID, &m.Medium, &m.Gateway); err != nil {
			return nil, fmt.Errorf("repository: scan meter: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
