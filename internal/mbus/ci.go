package mbus

// CI-field values selecting the application-layer shape:
// no header, short header, long header (plain or mode-5/7 encrypted),
// alarm and manufacturer-specific payloads.
const (
	CINoHeader             byte = 0x78
	CIShortHeader          byte = 0x7A
	CILongHeader           byte = 0x72
	CILongHeaderEncrypted  byte = 0x7C
	CIAlarm                byte = 0x87
	CIManufacturerSpecific byte = 0xA2
)

// ApplicationLayerShape classifies a CI-field value. An unrecognised
// CI is reported as "unknown" — callers parse such frames as
// headerless payload per edge cases.
func ApplicationLayerShape(ci byte) string {
	switch ci {
	case CINoHeader:
		return "no-header"
	case CIShortHeader:
		return "short-header"
	case CILongHeader, CILongHeaderEncrypted:
		return "long-header"
	case CIAlarm:
		return "alarm"
	case CIManufacturerSpecific:
		return "manufacturer-specific"
	default:
		return "unknown"
	}
}

// Encrypted reports whether ci designates mode-5/7 encrypted payload.
func Encrypted(ci byte) bool {
	return ci == CILongHeaderEncrypted
}
