package evidence

import (
	"sort"
	"time"

	"github.com/banshee-data/violation.report/internal/speed"
	"github.com/banshee-data/violation.report/internal/units"
	"github.com/banshee-data/violation.report/internal/violations"
)

// HourCount is the number of violations starting in one local hour.
type HourCount struct {
	Hour  time.Time `json:"hour"`
	Count int       `json:"count"`
}

// Stats summarises a set of artifacts for dashboards and reports.
type Stats struct {
	Total  int                     `json:"total"`
	ByKind map[violations.Kind]int `json:"by_kind"`
	Hourly []HourCount             `json:"hourly"`
	// Speeds summarises measured speeds of overspeeding artifacts (m/s).
	Speeds speed.Summary `json:"speeds"`
}

// ComputeStats counts artifacts per kind and per hour in loc. Hours without
// violations are omitted; Hourly is ascending.
func ComputeStats(artifacts []Artifact, loc *time.Location) Stats {
	if loc == nil {
		loc = time.UTC
	}
	s := Stats{ByKind: make(map[violations.Kind]int, len(violations.AllKinds))}
	for _, k := range violations.AllKinds {
		s.ByKind[k] = 0
	}

	hours := make(map[time.Time]int)
	var speeds []float64
	for _, a := range artifacts {
		s.Total++
		s.ByKind[a.Kind]++
		h := units.HourStart(a.Timestamp, loc)
		hours[h]++
		if a.Kind == violations.KindOverspeeding && a.SpeedMPS > 0 {
			speeds = append(speeds, a.SpeedMPS)
		}
	}

	s.Hourly = make([]HourCount, 0, len(hours))
	for h, n := range hours {
		s.Hourly = append(s.Hourly, HourCount{Hour: h, Count: n})
	}
	sort.Slice(s.Hourly, func(i, j int) bool { return s.Hourly[i].Hour.Before(s.Hourly[j].Hour) })
	s.Speeds = speed.Summarize(speeds)
	return s
}
