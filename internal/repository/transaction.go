package repository

import (
	"github.com/jmoiron/sqlx"

	"github.com/solostec/smf-gateway/pkg/log"
)

// Transaction batches many readout inserts into one SQL transaction.
// Readouts arrive in bursts (a push channel flushing many meters at
// once), and bundling inserts into one transaction speeds up sqlite
// "A LOT".
type Transaction struct {
	tx        *sqlx.Tx
	readouts  *sqlx.NamedStmt
}

const namedReadoutInsert = `
INSERT INTO readout (meter_id, act_time, source, raw)
VALUES (:meter_id, :act_time, :source, :raw)`

func (r *ReadoutRepository) TransactionInit() (*Transaction, error) {
	t := new(Transaction)
	var err error
	t.tx, err = r.DB.Beginx()
	if err != nil {
		log.Warn("repository: error while bundling readout transaction")
		return nil, err
	}

	t.readouts, err = t.tx.PrepareNamed(namedReadoutInsert)
	if err != nil {
		log.Warn("repository: error while preparing named readout insert")
		return nil, err
	}
	return t, nil
}

func (r *ReadoutRepository) TransactionCommit(t *Transaction) error {
	if t.tx != nil {
		if err := t.tx.Commit(); err != nil {
			log.Warn("repository: error while committing readout transaction")
			return err
		}
	}

	var err error
	t.tx, err = r.DB.Beginx()
	if err != nil {
		log.Warn("repository: error while re-opening readout transaction")
		return err
	}
	t.readouts = t.tx.NamedStmt(t.readouts)
	return nil
}

func (r *ReadoutRepository) TransactionEnd(t *Transaction) error {
	if err := t.tx.Commit(); err != nil {
		log.Warn("repository: error while ending readout transaction")
		return err
	}
	return nil
}

// TransactionAdd inserts one readout row (without its values — those
// are added separately via TransactionAddValue once the readout id is
// known) within the open transaction.
func (r *ReadoutRepository) TransactionAdd(t *Transaction, ro Readout) (int64, error) {
	res, err := t.readouts.Exec(map[string]any{
		"meter_id": ro.MeterID,
		"act_time": ro.ActTime.Unix(),
		"source":   ro.Source,
		"raw":      ro.Raw,
	})
	if err != nil {
		log.Errorf("repository: error while adding readout for meter %d: %v", ro.MeterID, err)
		return 0, err
	}
	return res.LastInsertId()
}

func (r *ReadoutRepository) TransactionAddValue(t *Transaction, readoutID int64, v Value) error {
	if _, err := t.tx.Exec(
		`INSERT INTO readout_data (readout_id, obis, raw_value, scaler, unit) VALUES (?, ?, ?, ?, ?)`,
		readoutID, v.OBIS.String(), v.Raw, v.Scaler, v.Unit,
	); err != nil {
		log.Errorf("repository: error while adding readout value for readout %d: %v", readoutID, err)
		return err
	}
	return nil
}
