package violations

import (
	"github.com/banshee-data/violation.report/internal/monitoring"
	"github.com/banshee-data/violation.report/internal/tracking"
)

// Gate turns classifier candidates into events, firing each (track, kind)
// only on a rising edge. The latch markers live on the tracks, so they
// disappear when a track is evicted.
type Gate struct {
	store *tracking.Store
}

// NewGate creates a gate over store.
func NewGate(store *tracking.Store) *Gate {
	return &Gate{store: store}
}

// Apply returns the events of a that should be emitted this frame and
// updates the latches. Candidates that reference an evicted track are
// dropped.
func (g *Gate) Apply(a Assessment) []Event {
	if a.Status == NotEvaluated {
		return nil
	}
	key := string(a.Kind)

	var out []Event
	fired := make(map[tracking.TrackID]bool, len(a.Candidates))
	for _, ev := range a.Candidates {
		primary := ev.Primary()
		if primary == 0 || !g.present(ev) {
			monitoring.Logf("[gate] dropping %s for track %d: track no longer live", ev.Kind, primary)
			continue
		}
		fired[primary] = true
		if g.store.Latched(primary, key) {
			continue
		}
		g.store.SetLatch(primary, key, true)
		out = append(out, ev)
	}

	if a.Kind.OneShot() {
		return out
	}
	for _, id := range a.Checked {
		if !fired[id] {
			g.store.SetLatch(id, key, false)
		}
	}
	return out
}

func (g *Gate) present(ev Event) bool {
	for _, id := range ev.TrackIDs {
		if !g.store.Exists(id) {
			return false
		}
	}
	return true
}
