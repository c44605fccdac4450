package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/solostec/smf-gateway/internal/obis"
)

// StandardRow is one timestamp's worth of register values for a
// single meter — the simpler, non-gap/non-feed report variant: one row
// per timestamp, one column per OBIS register, sorted for a stable
// header.
type StandardRow struct {
	Time   time.Time
	Values map[obis.Code]int64
}

// WriteStandardCSV writes header "time,<reg1>,<reg2>,..." followed by
// one row per entry in rows, in the order given. regs fixes the column
// set; columns are ordered by OBIS code, not by their order in regs. A
// row missing a register leaves that cell blank.
func WriteStandardCSV(w io.Writer, regs []obis.Code, rows []StandardRow) error {
	sorted := append([]obis.Code(nil), regs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Less(sorted[j]) })

	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := make([]string, 0, len(sorted)+1)
	header = append(header, "time")
	for _, r := range sorted {
		header = append(header, r.String())
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("report: write standard csv header: %w", err)
	}

	for _, row := range rows {
		record := make([]string, 0, len(sorted)+1)
		record = append(record, row.Time.Format(time.RFC3339))
		for _, r := range sorted {
			if v, ok := row.Values[r]; ok {
				record = append(record, fmt.Sprintf("%d", v))
			} else {
				record = append(record, "")
			}
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("report: write standard csv row: %w", err)
		}
	}
	return cw.Error()
}
