package evidence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/violation.report/internal/timeutil"
	"github.com/banshee-data/violation.report/internal/tracking"
	"github.com/banshee-data/violation.report/internal/violations"
)

func seeded(t *testing.T) *MemoryStore {
	t.Helper()
	ctx := context.Background()
	s := NewMemoryStore()
	list := []Artifact{
		artifact(violations.KindOverspeeding, 1, t0.Add(-2*time.Hour)),
		artifact(violations.KindOverspeeding, 2, t0.Add(-30*time.Minute)),
		artifact(violations.KindTripleRiding, 3, t0.Add(-10*time.Minute)),
		artifact(violations.KindSignalJump, 4, t0.Add(-8*24*time.Hour)),
	}
	list[2].Related = []tracking.TrackID{7, 8}
	list[3].StreamID = "cam-2"
	for _, a := range list {
		_, err := s.Add(ctx, a)
		require.NoError(t, err)
	}
	return s
}

func ids(list []Artifact) []tracking.TrackID {
	out := make([]tracking.TrackID, len(list))
	for i, a := range list {
		out[i] = a.TrackID
	}
	return out
}

func TestFilter_Query(t *testing.T) {
	t.Parallel()
	s := seeded(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		filter Filter
		want   []tracking.TrackID
	}{
		{"all newest first", Filter{}, []tracking.TrackID{3, 2, 1, 4}},
		{"kind", Filter{Kinds: []violations.Kind{violations.KindOverspeeding}}, []tracking.TrackID{2, 1}},
		{"related track", Filter{TrackID: 8}, []tracking.TrackID{3}},
		{"primary track", Filter{TrackID: 1}, []tracking.TrackID{1}},
		{"stream", Filter{StreamID: "cam-2"}, []tracking.TrackID{4}},
		{"since inclusive", Filter{Since: t0.Add(-30 * time.Minute)}, []tracking.TrackID{3, 2}},
		{"until exclusive", Filter{Until: t0.Add(-30 * time.Minute)}, []tracking.TrackID{1, 4}},
		{"limit", Filter{Limit: 2}, []tracking.TrackID{3, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Query(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestRangeFilter(t *testing.T) {
	t.Parallel()
	s := seeded(t)
	clock := timeutil.NewMockClock(t0)

	count := func(preset string) int {
		f, err := RangeFilter(preset, clock)
		require.NoError(t, err)
		got, err := s.Query(context.Background(), f)
		require.NoError(t, err)
		return len(got)
	}
	assert.Equal(t, 2, count(RangeHour))
	assert.Equal(t, 3, count(RangeDay))
	assert.Equal(t, 3, count(RangeWeek))
	assert.Equal(t, 4, count(RangeAll))

	clock.Advance(time.Hour)
	assert.Equal(t, 0, count(RangeHour))

	_, err := RangeFilter("month", clock)
	assert.Error(t, err)
}

func TestFilter_ArrangeTiesByID(t *testing.T) {
	t.Parallel()
	list := []Artifact{
		artifact(violations.KindTripleRiding, 5, t0),
		artifact(violations.KindHelmetlessRiding, 5, t0),
	}
	got := Filter{}.Arrange(list)
	assert.Equal(t, violations.KindHelmetlessRiding, got[0].Kind)
}
