package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/solostec/smf-gateway/internal/obis"
	"github.com/solostec/smf-gateway/internal/repository"
	"github.com/solostec/smf-gateway/pkg/log"
)

// GenerateGapReport collects every meter's readouts for profile across
// [start, start+count*granularity) and writes one gap CSV file under
// root, mirroring gap.cpp's generate_gap/collect_report/emit_data
// pipeline.
func GenerateGapReport(repo *repository.ReadoutRepository, root string, profile obis.Code, code obis.Code, start time.Time, count int) (string, error) {
	meters, err := repo.ListMeters()
	if err != nil {
		return "", fmt.Errorf("report: list meters: %w", err)
	}

	g, err := Granularity(profile)
	if err != nil {
		return "", err
	}
	end := start.Add(time.Duration(count) * g)

	readings := make(map[string][]time.Time, len(meters))
	for _, m := range meters {
		slots, err := repo.QuerySlots(m.ID, code, start, end)
		if err != nil {
			return "", fmt.Errorf("report: query slots for meter %s: %w", m.ServerID, err)
		}
		times := make([]time.Time, len(slots))
		for i, s := range slots {
			times[i] = s.Time
		}
		readings[m.ServerID] = times
	}

	rows, err := Gap(profile, start, count, readings)
	if err != nil {
		return "", err
	}

	name := fmt.Sprintf("gap_%s_%s.csv", profile.String(), start.Format("20060102T150405"))
	path := filepath.Join(root, name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("report: create gap report file: %w", err)
	}
	defer f.Close()

	if err := WriteGapCSV(f, rows); err != nil {
		return "", err
	}
	log.Infof("report: wrote gap report %s with %d meter rows", path, len(rows))
	return path, nil
}

// Scheduler periodically runs report generation, using the same
// gocron.Scheduler plus gocron.DailyJob/NewAtTimes registration shape
// as other periodic maintenance tasks, generalized to report
// generation tasks.
type Scheduler struct {
	sched gocron.Scheduler
}

// NewScheduler creates a stopped scheduler; call Start to run it.
func NewScheduler() (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("report: create scheduler: %w", err)
	}
	return &Scheduler{sched: s}, nil
}

// RegisterDailyGapReport schedules a gap report run once a day at
// hh:mm, covering the preceding backtrack window.
func (s *Scheduler) RegisterDailyGapReport(repo *repository.ReadoutRepository, root string, profile, code obis.Code, hh, mm int, backtrack time.Duration) error {
	_, err := s.sched.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(uint(hh), uint(mm), 0))),
		gocron.NewTask(func() {
			now := time.Now().UTC()
			start := now.Add(-backtrack)
			count, err := SlotCount(profile, backtrack)
			if err != nil {
				log.Warnf("report: gap schedule for %s: %v", profile, err)
				return
			}
			if _, err := GenerateGapReport(repo, root, profile, code, start, count); err != nil {
				log.Errorf("report: gap report generation failed: %v", err)
			}
		}),
	)
	if err != nil {
		return fmt.Errorf("report: register gap report job: %w", err)
	}
	return nil
}

// RegisterDailyFeedReport schedules an LPEx feed report run once a day
// at hh:mm, covering the preceding backtrack window across registers.
func (s *Scheduler) RegisterDailyFeedReport(repo *repository.ReadoutRepository, root, prefix string, profile obis.Code, registers []obis.Code, hh, mm int, backtrack time.Duration) error {
	_, err := s.sched.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(uint(hh), uint(mm), 0))),
		gocron.NewTask(func() {
			now := time.Now().UTC()
			written, err := GenerateFeedReport(repo, root, prefix, profile, registers, now, backtrack)
			if err != nil {
				log.Errorf("report: feed report generation failed: %v", err)
				return
			}
			log.Infof("report: wrote %d feed report files", len(written))
		}),
	)
	if err != nil {
		return fmt.Errorf("report: register feed report job: %w", err)
	}
	return nil
}

func (s *Scheduler) Start() { s.sched.Start() }

func (s *Scheduler) Shutdown() error { return s.sched.Shutdown() }
