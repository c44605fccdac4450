package report

import (
	"time"

	"github.com/solostec/smf-gateway/internal/obis"
)

// GapSlot is one slot in a gap row: either the timestamp the reading
// actually landed at, or the slot's own aligned timestamp if nothing
// was recorded there — mirrors gap.cpp's emit_data, which prints
// "time#slot" for a present entry and "[time]" for a missing one.
type GapSlot struct {
	Index   int64
	Time    time.Time
	Present bool
}

// GapRow is one meter's presence/absence pattern across a gap
// report's slot range.
type GapRow struct {
	ServerID string
	Slots    []GapSlot
}

// Missing returns just the absent slots, in slot order.
func (row GapRow) Missing() []GapSlot {
	var out []GapSlot
	for _, s := range row.Slots {
		if !s.Present {
			out = append(out, s)
		}
	}
	return out
}

// Gap computes, for each meter in readings, which of count slots
// starting at start are present and which are missing. readings maps
// server ID to the readout timestamps observed for that meter within
// the covered window.
func Gap(profile obis.Code, start time.Time, count int, readings map[string][]time.Time) ([]GapRow, error) {
	startSlot, err := ToSlot(start, profile)
	if err != nil {
		return nil, err
	}

	rows := make([]GapRow, 0, len(readings))
	for serverID, times := range readings {
		present := make(map[int64]time.Time, len(times))
		for _, t := range times {
			slot, err := ToSlot(t, profile)
			if err != nil {
				return nil, err
			}
			present[slot] = t
		}

		row := GapRow{ServerID: serverID, Slots: make([]GapSlot, 0, count)}
		for i := 0; i < count; i++ {
			slot := startSlot + int64(i)
			if t, ok := present[slot]; ok {
				row.Slots = append(row.Slots, GapSlot{Index: slot, Time: t, Present: true})
				continue
			}
			aligned, err := FromSlot(slot, profile)
			if err != nil {
				return nil, err
			}
			row.Slots = append(row.Slots, GapSlot{Index: slot, Time: aligned, Present: false})
		}
		rows = append(rows, row)
	}
	return rows, nil
}
