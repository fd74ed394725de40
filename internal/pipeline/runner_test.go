package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/violation.report/internal/detect"
	"github.com/banshee-data/violation.report/internal/evidence"
	"github.com/banshee-data/violation.report/internal/tracking"
)

type brokenSource struct{}

func (brokenSource) Next(context.Context) (detect.Frame, error) {
	return detect.Frame{}, errors.New("camera offline")
}

func TestRunStreams(t *testing.T) {
	t.Parallel()
	f := newFixture()

	var streams []Stream
	for _, id := range []string{"cam-1", "cam-2", "cam-3"} {
		streams = append(streams, Stream{Pipeline: f.pipeline(t, id), Source: &detect.SliceSource{Frames: speeder(id, 10)}})
	}
	broken := Stream{Pipeline: f.pipeline(t, "cam-4"), Source: brokenSource{}}
	streams = append(streams, broken)

	err := RunStreams(context.Background(), streams, 2)
	require.Error(t, err)
	assert.ErrorContains(t, err, "cam-4")

	all, err := f.store.Query(context.Background(), evidence.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3, "healthy streams finish despite the broken one")

	seen := map[tracking.TrackID]string{}
	for _, a := range all {
		_, dup := seen[a.TrackID]
		assert.False(t, dup, "track ids are unique across streams")
		seen[a.TrackID] = a.StreamID
	}
	for _, s := range streams[:3] {
		assert.EqualValues(t, 10, s.Pipeline.Counters().Frames)
	}
}

func TestRun_Cancelled(t *testing.T) {
	t.Parallel()
	p := newFixture().pipeline(t, "cam-1")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Run(ctx, &detect.SliceSource{Frames: speeder("cam-1", 5)})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, p.Counters().Frames)
}

func TestRun_SkipsBadFrames(t *testing.T) {
	t.Parallel()
	p := newFixture().pipeline(t, "cam-1")
	frames := speeder("cam-1", 4)
	frames[2], frames[3] = frames[3], frames[2]

	require.NoError(t, p.Run(context.Background(), &detect.SliceSource{Frames: frames}))
	c := p.Counters()
	assert.EqualValues(t, 3, c.Frames)
	assert.EqualValues(t, 1, c.Dropped)
}
