package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/solostec/smf-gateway/internal/obis"
	"github.com/solostec/smf-gateway/internal/repository"
)

// FeedHeader is the LPEx feed report's column header, written once per
// file after the optional version line.
var FeedHeader = []string{
	"Datum", "Zeit", "Kundennummer", "Kundenname", "eindeutigeKDNr",
	"GEId", "GEKANr", "KALINr", "Linie", "eindeutigeLINr", "ZPB",
	"Kennzahl", "Einheit", "Wandlerfaktor", "MPDauer", "Werte",
}

// FeedVersion is the optional first line identifying the LPEx export
// format.
var FeedVersion = []string{"LPEX V2.0"}

// granularityLabel names a profile's slot width the way a feed report
// file name does, mirroring utility.cpp's get_prefix.
func granularityLabel(profile obis.Code) (string, error) {
	switch profile {
	case obis.Profile1Minute:
		return "1min", nil
	case obis.Profile15Minute:
		return "15min", nil
	case obis.Profile60Minute:
		return "1h", nil
	case obis.Profile24Hour:
		return "1d", nil
	default:
		return "", fmt.Errorf("report: profile %s has no feed report granularity label", profile)
	}
}

// AlignToPeriod floors t to the start of its profile slot.
func AlignToPeriod(t time.Time, profile obis.Code) (time.Time, error) {
	slot, err := ToSlot(t, profile)
	if err != nil {
		return time.Time{}, err
	}
	return FromSlot(slot, profile)
}

// feedFileName builds the per-meter, per-period feed report name:
// {prefix}-{granularity}-{meter}_{YYYYMMDDTHHMM}.csv
func feedFileName(prefix string, profile obis.Code, serverID string, periodStart time.Time) (string, error) {
	label, err := granularityLabel(profile)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s-%s_%s.csv", prefix, label, serverID, periodStart.Format("20060102T1504")), nil
}

// FeedRegisterSeries is one meter/register's slot-indexed samples
// within a single reporting period, at most one period's worth of
// rows (the buffering bound the algorithm requires).
type FeedRegisterSeries struct {
	Register obis.Code
	Unit     string
	Samples  map[int64]repository.Slot
}

// collectFeedSeries fetches, for one meter, every register's samples
// in [from, to), keyed by slot index within profile. Registers with no
// samples in range are omitted.
func collectFeedSeries(repo *repository.ReadoutRepository, meterID int64, registers []obis.Code, profile obis.Code, from, to time.Time) ([]FeedRegisterSeries, error) {
	var out []FeedRegisterSeries
	for _, reg := range registers {
		slots, err := repo.QuerySlots(meterID, reg, from, to)
		if err != nil {
			return nil, fmt.Errorf("report: query feed slots for register %s: %w", reg, err)
		}
		if len(slots) == 0 {
			continue
		}
		series := FeedRegisterSeries{Register: reg, Unit: slots[0].Unit, Samples: make(map[int64]repository.Slot, len(slots))}
		for _, s := range slots {
			idx, err := ToSlot(s.Time, profile)
			if err != nil {
				return nil, err
			}
			series.Samples[idx] = s
		}
		out = append(out, series)
	}
	return out, nil
}

// GenerateFeedReport implements the LPEx feed algorithm: a period-
// aligned slot grid, per-(meter, register) buffering bounded to one
// period, a CSV file per meter flushed at every period boundary, and
// paired (advance, status) cells per slot. Ported from
// feed::generate_report/generate_feed.
//
// registers is the set of OBIS codes this report covers; profile fixes
// the slot granularity. The run covers [align(now-backtrack), now),
// one file per meter for every period that produced data.
func GenerateFeedReport(repo *repository.ReadoutRepository, root, prefix string, profile obis.Code, registers []obis.Code, now time.Time, backtrack time.Duration) ([]string, error) {
	granularity, err := Granularity(profile)
	if err != nil {
		return nil, err
	}
	start, err := AlignToPeriod(now.Add(-backtrack), profile)
	if err != nil {
		return nil, err
	}

	meters, err := repo.ListMeters()
	if err != nil {
		return nil, fmt.Errorf("report: list meters: %w", err)
	}

	var written []string
	for periodStart := start; periodStart.Before(now); periodStart = periodStart.Add(granularity) {
		periodEnd := periodStart.Add(granularity)
		idxStart, err := ToSlot(periodStart, profile)
		if err != nil {
			return nil, err
		}
		idxEnd, err := ToSlot(periodEnd, profile)
		if err != nil {
			return nil, err
		}

		// The last slot in range needs its successor (idxEnd) present
		// to compute an advance, so the query window reaches one
		// granularity past periodEnd.
		for _, meter := range meters {
			series, err := collectFeedSeries(repo, meter.ID, registers, profile, periodStart, periodEnd.Add(granularity))
			if err != nil {
				return nil, err
			}
			if len(series) == 0 {
				continue
			}

			name, err := feedFileName(prefix, profile, meter.ServerID, periodStart)
			if err != nil {
				return nil, err
			}
			path := filepath.Join(root, name)
			path, err = writeFeedFile(path, meter.ServerID, series, idxStart, idxEnd, int(granularity.Minutes()))
			if err != nil {
				return nil, err
			}
			written = append(written, path)
		}
	}
	return written, nil
}

func writeFeedFile(path, serverID string, series []FeedRegisterSeries, idxStart, idxEnd int64, periodMinutes int) (string, error) {
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("report: create feed report file: %w", err)
	}
	werr := WriteFeedReport(f, serverID, series, idxStart, idxEnd, periodMinutes)
	cerr := f.Close()
	if werr != nil {
		return "", werr
	}
	if cerr != nil {
		return "", fmt.Errorf("report: close feed report file: %w", cerr)
	}
	return path, nil
}

// WriteFeedReport writes one meter's LPEx feed lines: a version line,
// a header line, then one line per register in series. Each line
// carries the period's timestamp, blank customer columns (this
// gateway has no customer table; GEId still identifies the meter),
// the register, its unit, a fixed conversion factor of 1, the
// measuring period in minutes, and a (advance, status) pair per slot
// in [idxStart, idxEnd).
func WriteFeedReport(w io.Writer, serverID string, series []FeedRegisterSeries, idxStart, idxEnd int64, periodMinutes int) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(FeedVersion); err != nil {
		return fmt.Errorf("report: write feed version line: %w", err)
	}
	if err := cw.Write(FeedHeader); err != nil {
		return fmt.Errorf("report: write feed header: %w", err)
	}

	for _, reg := range series {
		first, ok := reg.Samples[idxStart]
		if !ok {
			first = earliestSample(reg.Samples)
		}

		record := make([]string, 0, 15+2*int(idxEnd-idxStart))
		record = append(record,
			first.Time.Format("02.01.06"), first.Time.Format("15:04:05"), // Datum, Zeit
			"", "", "", // Kundennummer, Kundenname, eindeutigeKDNr
			serverID, // GEId
			"", "", "", "", // GEKANr, KALINr, Linie, eindeutigeLINr
			"", // ZPB
			reg.Register.String(), reg.Unit,
			"1", // Wandlerfaktor
			strconv.Itoa(periodMinutes),
		)

		for idx := idxStart; idx < idxEnd; idx++ {
			pos0, ok0 := reg.Samples[idx]
			pos1, ok1 := reg.Samples[idx+1]
			if ok0 && ok1 {
				record = append(record, strconv.FormatInt(pos1.Raw-pos0.Raw, 10), statusField(pos0.Status))
			} else {
				record = append(record, "", "")
			}
		}

		if err := cw.Write(record); err != nil {
			return fmt.Errorf("report: write feed register row: %w", err)
		}
	}
	return cw.Error()
}

// earliestSample returns the sample with the lowest slot index,
// breaking the tie deterministically when idxStart itself has no
// sample (e.g. the register's series starts mid-period).
func earliestSample(samples map[int64]repository.Slot) repository.Slot {
	var best int64
	var first repository.Slot
	init := false
	for idx, s := range samples {
		if !init || idx < best {
			best, first, init = idx, s, true
		}
	}
	return first
}

// statusField hex-pads status to 5 digits when non-zero, decimal
// otherwise.
func statusField(status uint32) string {
	if status == 0 {
		return "0"
	}
	return fmt.Sprintf("%05x", status)
}
