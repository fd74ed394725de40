package evidence

import (
	"fmt"
	"sort"
	"time"

	"github.com/banshee-data/violation.report/internal/timeutil"
	"github.com/banshee-data/violation.report/internal/tracking"
	"github.com/banshee-data/violation.report/internal/violations"
)

// Filter selects artifacts. Zero fields match everything.
type Filter struct {
	Kinds    []violations.Kind
	TrackID  tracking.TrackID // matches the primary or any related track
	StreamID string
	Since    time.Time // inclusive
	Until    time.Time // exclusive
	Limit    int
}

// Time range presets offered by the dashboard.
const (
	RangeHour = "hour"
	RangeDay  = "day"
	RangeWeek = "week"
	RangeAll  = "all"
)

// RangeFilter returns a filter covering the preset window ending now.
func RangeFilter(preset string, clock timeutil.Clock) (Filter, error) {
	var span time.Duration
	switch preset {
	case RangeHour:
		span = time.Hour
	case RangeDay:
		span = 24 * time.Hour
	case RangeWeek:
		span = 7 * 24 * time.Hour
	case RangeAll, "":
		return Filter{}, nil
	default:
		return Filter{}, fmt.Errorf("unknown range %q (want hour, day, week or all)", preset)
	}
	return Filter{Since: clock.Now().Add(-span)}, nil
}

// Matches reports whether a passes the filter.
func (f Filter) Matches(a Artifact) bool {
	if len(f.Kinds) > 0 {
		ok := false
		for _, k := range f.Kinds {
			if a.Kind == k {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if f.TrackID != 0 && a.TrackID != f.TrackID && !contains(a.Related, f.TrackID) {
		return false
	}
	if f.StreamID != "" && a.StreamID != f.StreamID {
		return false
	}
	if !f.Since.IsZero() && a.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && !a.Timestamp.Before(f.Until) {
		return false
	}
	return true
}

// Arrange sorts newest first and applies the limit. Artifacts from the same
// second are ordered by id for a stable listing.
func (f Filter) Arrange(list []Artifact) []Artifact {
	sort.SliceStable(list, func(i, j int) bool {
		if !list[i].Timestamp.Equal(list[j].Timestamp) {
			return list[i].Timestamp.After(list[j].Timestamp)
		}
		return list[i].ID < list[j].ID
	})
	if f.Limit > 0 && len(list) > f.Limit {
		list = list[:f.Limit]
	}
	return list
}

func contains(ids []tracking.TrackID, id tracking.TrackID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
