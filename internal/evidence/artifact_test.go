package evidence

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/violation.report/internal/violations"
)

var t0 = time.Date(2026, 3, 1, 10, 15, 2, 0, time.UTC)

func TestKey_ID(t *testing.T) {
	t.Parallel()
	k := KeyOf(violations.KindOverspeeding, 17, t0.Add(730*time.Millisecond))
	assert.Equal(t, "overspeeding_17_20260301_101502", k.ID())
	assert.Equal(t, t0, k.Time())

	// Sub-second offsets collapse onto the same key.
	assert.Equal(t, k, KeyOf(violations.KindOverspeeding, 17, t0))
	assert.NotEqual(t, k, KeyOf(violations.KindOverspeeding, 17, t0.Add(time.Second)))
}

func TestParseID(t *testing.T) {
	t.Parallel()

	for _, kind := range violations.AllKinds {
		t.Run(string(kind), func(t *testing.T) {
			want := KeyOf(kind, 4021, t0)
			got, err := ParseID(want.ID())
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}

	bad := []string{
		"",
		"overspeeding",
		"overspeeding_17_20260301",
		"overspeeding_0_20260301_101502",
		"overspeeding_x_20260301_101502",
		"speeding_17_20260301_101502",
		"overspeeding_17_2026-03-01_101502",
	}
	for _, id := range bad {
		_, err := ParseID(id)
		assert.True(t, errors.Is(err, ErrBadID), "ParseID(%q) = %v", id, err)
	}
}
