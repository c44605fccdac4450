package report

import (
	"encoding/csv"
	"fmt"
	"io"
)

// WriteGapCSV renders rows in gap.cpp's emit_data layout: one line per
// meter, one column per slot, "time#slot" when present, "[time]" when
// missing. Stdlib encoding/csv — no third-party CSV writer appears
// anywhere in the pack, so this is exactly the kind of ambient
// component idiomatically left on the standard library.
func WriteGapCSV(w io.Writer, rows []GapRow) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	for _, row := range rows {
		record := make([]string, 0, len(row.Slots)+1)
		record = append(record, row.ServerID)
		for _, s := range row.Slots {
			if s.Present {
				record = append(record, fmt.Sprintf("%s#%d", s.Time.Format("2006-01-02T15:04:05"), s.Index))
			} else {
				record = append(record, fmt.Sprintf("[%s]", s.Time.Format("2006-01-02T15:04:05")))
			}
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("report: write gap csv row: %w", err)
		}
	}
	return cw.Error()
}
