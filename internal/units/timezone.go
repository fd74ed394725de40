package units

import (
	"fmt"
	"time"
)

// LoadLocation resolves a tz database name. "" and "UTC" are UTC.
func LoadLocation(tz string) (*time.Location, error) {
	if tz == "" || tz == "UTC" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %s: %w", tz, err)
	}
	return loc, nil
}

// HourStart returns the start of the wall-clock hour containing t in loc.
// A nil loc is UTC. Zones with sub-hour offsets bucket on their own local
// hour, not the UTC one.
func HourStart(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	l := t.In(loc)
	return time.Date(l.Year(), l.Month(), l.Day(), l.Hour(), 0, 0, 0, loc)
}
