package evidence

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/violation.report/internal/tracking"
	"github.com/banshee-data/violation.report/internal/violations"
)

func artifact(kind violations.Kind, track tracking.TrackID, ts time.Time) Artifact {
	k := KeyOf(kind, track, ts)
	return Artifact{ID: k.ID(), Kind: kind, TrackID: track, Timestamp: k.Time(), StreamID: "cam-1"}
}

func TestMemoryStore_Dedup(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemoryStore()

	a := artifact(violations.KindTripleRiding, 9, t0)
	added, err := s.Add(ctx, a)
	require.NoError(t, err)
	assert.True(t, added)

	again := a
	again.Plate = "KA01AB1234"
	added, err = s.Add(ctx, again)
	require.NoError(t, err)
	assert.False(t, added, "same kind, track and second is a duplicate")
	assert.Equal(t, 1, s.Len())

	got, err := s.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Plate, "the first artifact wins")

	ok, err := s.Exists(ctx, a.Key())
	require.NoError(t, err)
	assert.True(t, ok)

	// A different second or kind is a new violation.
	added, _ = s.Add(ctx, artifact(violations.KindTripleRiding, 9, t0.Add(time.Second)))
	assert.True(t, added)
	added, _ = s.Add(ctx, artifact(violations.KindHelmetlessRiding, 9, t0))
	assert.True(t, added)
	assert.Equal(t, 3, s.Len())
}

func TestMemoryStore_ConcurrentAdd(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemoryStore()
	a := artifact(violations.KindOverspeeding, 3, t0)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, err := s.Add(ctx, a); err == nil && ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, wins.Load())
	assert.Equal(t, 1, s.Len())
}

func TestMemoryStore_Get(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.Get(ctx, "not-an-id")
	assert.ErrorIs(t, err, ErrBadID)
	_, err = s.Get(ctx, KeyOf(violations.KindSignalJump, 1, t0).ID())
	assert.ErrorIs(t, err, ErrNotFound)

	a := artifact(violations.KindSignalJump, 1, t0)
	a.Related = []tracking.TrackID{2}
	_, err = s.Add(ctx, a)
	require.NoError(t, err)

	got, err := s.Get(ctx, a.ID)
	require.NoError(t, err)
	got.Related[0] = 99
	again, _ := s.Get(ctx, a.ID)
	assert.Equal(t, tracking.TrackID(2), again.Related[0], "returned artifacts are copies")
}
