package mbus

import (
	"fmt"

	"github.com/solostec/smf-gateway/internal/gwerr"
	"github.com/solostec/smf-gateway/internal/obis"
)

const (
	difExtension  byte = 0x80
	difTerminator1 byte = 0x0F
	difTerminator2 byte = 0x1F
	difLVAR       byte = 0x0D
)

// Function is the DIF function field.
type Function byte

const (
	FunctionInstantaneous Function = iota
	FunctionMaximum
	FunctionMinimum
	FunctionError
)

// Record is one decoded variable-data-block entry.
type Record struct {
	OBIS     obis.Code
	Function Function
	Storage  uint32
	Raw      int64
	Scaler   int8
	Unit     string
}

// ReadVDB decodes a variable-data-block, consuming records until buf
// is exhausted or a terminator DIF (0x0F/0x1F) is seen.
// Unknown VIFEs do not abort the frame — the chain is consumed and the
// base VIF of the final extension byte wins.
func ReadVDB(buf []byte) ([]Record, error) {
	var records []Record
	pos := 0

	for pos < len(buf) {
		dif := buf[pos]
		if dif == difTerminator1 || dif == difTerminator2 {
			break
		}
		pos++

		function := Function((dif >> 4) & 0x3)
		storage := uint32((dif >> 6) & 0x1)
		dataField := dif & 0x0F

		for dif&difExtension != 0 {
			if pos >= len(buf) {
				return nil, fmt.Errorf("mbus: truncated DIFE chain: %w", gwerr.ErrFrame)
			}
			dif = buf[pos]
			pos++
			storage = (storage << 4) | uint32(dif&0x0F)
		}

		if pos >= len(buf) {
			return nil, fmt.Errorf("mbus: truncated VIF: %w", gwerr.ErrFrame)
		}
		vif := buf[pos]
		pos++
		for vif&difExtension != 0 {
			if pos >= len(buf) {
				return nil, fmt.Errorf("mbus: truncated VIFE chain: %w", gwerr.ErrFrame)
			}
			vif = buf[pos]
			pos++
		}

		length, lvar := dataFieldLength(dataField)
		if lvar {
			if pos >= len(buf) {
				return nil, fmt.Errorf("mbus: truncated LVAR length byte: %w", gwerr.ErrFrame)
			}
			length = int(buf[pos])
			pos++
		}
		if pos+length > len(buf) {
			return nil, fmt.Errorf("mbus: truncated value field: %w", gwerr.ErrFrame)
		}
		raw := decodeUnsignedLE(buf[pos : pos+length])
		pos += length

		quantity, scaler := decodeVIF(vif)
		records = append(records, Record{
			OBIS:     quantityOBIS(quantity, storage),
			Function: function,
			Storage:  storage,
			Raw:      raw,
			Scaler:   scaler,
			Unit:     quantity,
		})
	}
	return records, nil
}

// dataFieldLength maps a DIF data-field nibble to a value width in
// bytes. The BCD-coded variants are read back as their packed byte
// width rather than decoded digit-by-digit (spec doesn't require BCD
// interpretation downstream of the raw value).
func dataFieldLength(df byte) (length int, variable bool) {
	switch df {
	case 0x0:
		return 0, false
	case 0x1, 0x9:
		return 1, false
	case 0x2, 0xA:
		return 2, false
	case 0x3, 0xB:
		return 3, false
	case 0x4, 0x5, 0xC:
		return 4, false
	case 0x6, 0xE:
		return 6, false
	case 0x7:
		return 8, false
	case 0x8:
		return 0, false
	case difLVAR:
		return 0, true
	default:
		return 0, false
	}
}

// decodeVIF maps a base VIF byte (extension bit already stripped) to a
// physical quantity and scaling exponent. The table groups VIF codes
// in blocks of 8 sharing a quantity with an increasing power-of-ten
// exponent, the same structure EN 13757-3's VIF table uses.
func decodeVIF(vif byte) (quantity string, scaler int8) {
	code := vif & 0x7F
	group := code &^ 0x07
	exp := int8(code & 0x07)
	switch group {
	case 0x00:
		return "Wh", exp - 3
	case 0x08:
		return "J", exp - 3
	case 0x10:
		return "m3", exp - 6
	case 0x18:
		return "kg", exp - 3
	case 0x28:
		return "W", exp - 3
	case 0x38:
		return "m3/h", exp - 6
	case 0x58:
		return "C", exp - 3
	default:
		return "unknown", 0
	}
}

// quantityOBIS maps a decoded quantity to a representative OBIS code,
// following the usual electricity/gas/heat/water register groupings
// rather than a single pinned mapping table.
func quantityOBIS(quantity string, storage uint32) obis.Code {
	s := byte(storage)
	switch quantity {
	case "Wh":
		return obis.New(1, 0, 1, 8, s, 255)
	case "W":
		return obis.New(1, 0, 1, 7, s, 255)
	case "m3":
		return obis.New(7, 0, 1, 8, s, 255)
	case "m3/h":
		return obis.New(7, 0, 1, 7, s, 255)
	case "kg":
		return obis.New(8, 0, 1, 8, s, 255)
	case "C":
		return obis.New(9, 0, 1, 8, s, 255)
	default:
		return obis.New(0, 0, 0, 0, s, 255)
	}
}

func decodeUnsignedLE(b []byte) int64 {
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = (v << 8) | uint64(b[i])
	}
	return int64(v)
}
