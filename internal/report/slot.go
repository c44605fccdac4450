// Package report generates gap and feed reports over recorded
// readouts: a fixed-granularity slot index per profile, presence/
// absence reporting across a time window, and per-slot value advance
// between consecutive cumulative readings.
package report

import (
	"fmt"
	"time"

	"github.com/solostec/smf-gateway/internal/obis"
)

// Granularity returns the fixed slot duration for profile. Monthly and
// yearly profiles have no fixed slot width (a month is not a constant
// number of seconds), so this returns an error for them rather than a
// wrong answer.
func Granularity(profile obis.Code) (time.Duration, error) {
	switch profile {
	case obis.Profile1Minute:
		return time.Minute, nil
	case obis.Profile15Minute:
		return 15 * time.Minute, nil
	case obis.Profile60Minute:
		return time.Hour, nil
	case obis.Profile24Hour:
		return 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("report: profile %s has no fixed slot granularity", profile)
	}
}

// ToSlot converts t to its slot index within profile's granularity,
// counted from the Unix epoch.
func ToSlot(t time.Time, profile obis.Code) (int64, error) {
	g, err := Granularity(profile)
	if err != nil {
		return 0, err
	}
	return t.UTC().Unix() / int64(g.Seconds()), nil
}

// FromSlot converts a slot index back to its aligned UTC timestamp.
func FromSlot(slot int64, profile obis.Code) (time.Time, error) {
	g, err := Granularity(profile)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(slot*int64(g.Seconds()), 0).UTC(), nil
}

// SlotCount returns how many of profile's slots fit within span,
// rounding down.
func SlotCount(profile obis.Code, span time.Duration) (int, error) {
	g, err := Granularity(profile)
	if err != nil {
		return 0, err
	}
	return int(span / g), nil
}
