package report

import (
	"strings"
	"testing"
	"time"

	"github.com/solostec/smf-gateway/internal/obis"
	"github.com/solostec/smf-gateway/internal/repository"
)

// TestWriteFeedReportSlotGridAdvance covers the algorithm's core
// requirement: the advance is the difference between consecutive slots
// on the period's fixed grid, not between consecutive stored readings.
// A register with a reading missing from the middle slot must still
// report a present pair only where both grid neighbors exist.
func TestWriteFeedReportSlotGridAdvance(t *testing.T) {
	profile := obis.Profile15Minute
	periodStart := time.Date(2022, 7, 19, 0, 0, 0, 0, time.UTC)
	idxStart, err := ToSlot(periodStart, profile)
	if err != nil {
		t.Fatalf("ToSlot: %v", err)
	}
	idxEnd := idxStart + 3

	series := []FeedRegisterSeries{
		{
			Register: obis.New(1, 0, 1, 8, 0, 255),
			Unit:     "Wh",
			Samples: map[int64]repository.Slot{
				idxStart:     {Time: periodStart, Raw: 1000, Status: 0},
				idxStart + 1: {Time: periodStart.Add(15 * time.Minute), Raw: 1040, Status: 0x02},
				// idxStart+2 deliberately missing: no advance can be computed
				// for the (idxStart+1, idxStart+2) or (idxStart+2, idxStart+3) pairs.
				idxStart + 3: {Time: periodStart.Add(45 * time.Minute), Raw: 1120, Status: 0},
			},
		},
	}

	var sb strings.Builder
	if err := WriteFeedReport(&sb, "meter-A", series, idxStart, idxEnd, 15); err != nil {
		t.Fatalf("WriteFeedReport: %v", err)
	}
	out := sb.String()

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected version, header and one data line, got %d: %q", len(lines), out)
	}
	if lines[0] != strings.Join(FeedVersion, ",") {
		t.Fatalf("expected version line %q, got %q", FeedVersion, lines[0])
	}

	data := lines[2]
	if !strings.Contains(data, "meter-A") {
		t.Fatalf("expected GEId meter-A in data row, got %q", data)
	}
	if !strings.Contains(data, "40,0") {
		t.Fatalf("expected advance 40 paired with the first slot's status 0, got %q", data)
	}
	if !strings.Contains(data, ",,,,") {
		t.Fatalf("expected blank slot pair for the gap, got %q", data)
	}
}

// TestWriteFeedReportHexPadsNonZeroStatus checks the status cell format:
// decimal 0 when clear, five hex digits otherwise.
func TestWriteFeedReportHexPadsNonZeroStatus(t *testing.T) {
	if got := statusField(0); got != "0" {
		t.Fatalf("expected status 0, got %q", got)
	}
	if got := statusField(0xAB); got != "000ab" {
		t.Fatalf("expected hex-padded status, got %q", got)
	}
}

func TestFeedFileNameFormat(t *testing.T) {
	periodStart := time.Date(2022, 7, 19, 0, 15, 0, 0, time.UTC)
	name, err := feedFileName("lpex", obis.Profile15Minute, "srv-1", periodStart)
	if err != nil {
		t.Fatalf("feedFileName: %v", err)
	}
	want := "lpex-15min-srv-1_20220719T0015.csv"
	if name != want {
		t.Fatalf("expected %q, got %q", want, name)
	}
}

func TestAlignToPeriodFloorsToSlotStart(t *testing.T) {
	in := time.Date(2022, 7, 19, 0, 7, 30, 0, time.UTC)
	aligned, err := AlignToPeriod(in, obis.Profile15Minute)
	if err != nil {
		t.Fatalf("AlignToPeriod: %v", err)
	}
	want := time.Date(2022, 7, 19, 0, 0, 0, 0, time.UTC)
	if !aligned.Equal(want) {
		t.Fatalf("expected %v, got %v", want, aligned)
	}
}

func TestEarliestSamplePicksLowestSlot(t *testing.T) {
	samples := map[int64]repository.Slot{
		10: {Raw: 100},
		7:  {Raw: 70},
		12: {Raw: 120},
	}
	got := earliestSample(samples)
	if got.Raw != 70 {
		t.Fatalf("expected the slot-7 sample (Raw=70), got %+v", got)
	}
}
