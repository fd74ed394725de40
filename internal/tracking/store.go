// Package tracking assigns persistent identities to detected vehicles and
// persons across frames and keeps their bounded positional history.
package tracking

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/banshee-data/violation.report/internal/detect"
)

// TrackID identifies a track for the lifetime of the process.
type TrackID uint64

func (id TrackID) String() string { return fmt.Sprintf("%d", uint64(id)) }

// Category separates the two tracker instances that share a Store.
type Category string

const (
	CategoryVehicle Category = "vehicle"
	CategoryPerson  Category = "person"
)

// Accepts reports whether detections of class c belong to the category.
func (c Category) Accepts(class detect.Class) bool {
	switch c {
	case CategoryVehicle:
		return class.IsVehicle()
	case CategoryPerson:
		return class == detect.ClassPerson
	}
	return false
}

// MaxSpeedHistoryLength is the maximum number of smoothed speed samples kept
// per track for percentile summaries.
const MaxSpeedHistoryLength = 100

// IDSource hands out track ids. A single source is shared by every store in
// the process so ids stay unique across streams and are never reused.
type IDSource struct {
	last atomic.Uint64
}

// Next returns a fresh id. The first id is 1.
func (s *IDSource) Next() TrackID {
	return TrackID(s.last.Add(1))
}

// Sample is one retained observation of a track's box centre.
type Sample struct {
	Timestamp time.Time
	Center    detect.Point
}

// Track is a tracked object. Values returned by Store accessors are copies;
// mutate through Store methods.
type Track struct {
	ID         TrackID
	Category   Category
	Class      detect.Class
	Box        detect.BBox
	PrevBox    detect.BBox // box before the latest match; equals Box on birth
	Confidence float64

	History []Sample

	FirstSeen time.Time
	LastSeen  time.Time
	Hits      int // total matches including birth
	Misses    int // consecutive frames without a match

	// Derived attributes
	SpeedMPS     float64 // smoothed estimate, valid when HasSpeed
	HasSpeed     bool
	SpeedHistory []float64
	VehicleID    TrackID // person tracks: two-wheeler carrying this rider, 0 if none

	latches map[string]bool
}

// Age returns how long the track has been alive as of its last match.
func (t *Track) Age() time.Duration {
	return t.LastSeen.Sub(t.FirstSeen)
}

// Moved reports whether the box changed between the last two matches.
func (t *Track) Moved() bool {
	return t.PrevBox != t.Box
}

func (t *Track) clone() Track {
	c := *t
	c.History = append([]Sample(nil), t.History...)
	c.SpeedHistory = append([]float64(nil), t.SpeedHistory...)
	c.latches = nil
	return c
}

// HistoryConfig bounds each track's history by sample count and age.
type HistoryConfig struct {
	MaxSamples int
	Window     time.Duration
}

// Store holds the live tracks of one stream.
type Store struct {
	ids     *IDSource
	history HistoryConfig

	mu     sync.RWMutex
	tracks map[TrackID]*Track
}

// NewStore creates an empty store drawing ids from ids. A nil ids gets a
// private source.
func NewStore(ids *IDSource, history HistoryConfig) *Store {
	if ids == nil {
		ids = &IDSource{}
	}
	if history.MaxSamples < 2 {
		history.MaxSamples = 2
	}
	return &Store{
		ids:     ids,
		history: history,
		tracks:  make(map[TrackID]*Track),
	}
}

// Get returns a copy of the track.
func (s *Store) Get(id TrackID) (Track, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tracks[id]
	if !ok {
		return Track{}, false
	}
	return t.clone(), true
}

// Exists reports whether the track is live.
func (s *Store) Exists(id TrackID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.tracks[id]
	return ok
}

// Len returns the number of live tracks.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tracks)
}

// Tracks returns copies of the live tracks in cat ordered by id.
func (s *Store) Tracks(cat Category) []Track {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Track, 0, len(s.tracks))
	for _, t := range s.tracks {
		if t.Category == cat {
			out = append(out, t.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Mutate applies fn to the live track under the write lock. It returns
// false when the track has been evicted.
func (s *Store) Mutate(id TrackID, fn func(*Track)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tracks[id]
	if !ok {
		return false
	}
	fn(t)
	return true
}

// Latched reports whether key is set on the track.
func (s *Store) Latched(id TrackID, key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tracks[id]
	return ok && t.latches[key]
}

// SetLatch sets or clears key on the track. Returns false if the track is gone.
func (s *Store) SetLatch(id TrackID, key string, on bool) bool {
	return s.Mutate(id, func(t *Track) {
		if !on {
			delete(t.latches, key)
			return
		}
		if t.latches == nil {
			t.latches = make(map[string]bool)
		}
		t.latches[key] = true
	})
}

// Link records that the person track rides the vehicle track. A zero
// vehicle clears the link.
func (s *Store) Link(person, vehicle TrackID) bool {
	return s.Mutate(person, func(t *Track) { t.VehicleID = vehicle })
}

// Evict removes the track and its latches.
func (s *Store) Evict(id TrackID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tracks[id]; !ok {
		return false
	}
	delete(s.tracks, id)
	return true
}

// Reset drops every track. Ids are not reused afterwards.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracks = make(map[TrackID]*Track)
}

// create adds a track for det. Caller holds s.mu.
func (s *Store) create(cat Category, det detect.Detection, ts time.Time) *Track {
	t := &Track{
		ID:         s.ids.Next(),
		Category:   cat,
		Class:      det.Class,
		Box:        det.Box,
		PrevBox:    det.Box,
		Confidence: det.Confidence,
		FirstSeen:  ts,
		LastSeen:   ts,
		Hits:       1,
		History:    []Sample{{Timestamp: ts, Center: det.Box.Center()}},
	}
	s.tracks[t.ID] = t
	return t
}

// observe applies a matched detection. Caller holds s.mu.
func (s *Store) observe(t *Track, det detect.Detection, ts time.Time) {
	t.PrevBox = t.Box
	t.Box = det.Box
	t.Confidence = det.Confidence
	t.Hits++
	t.Misses = 0
	// Vehicle subtypes may flicker between frames; keep the latest label.
	t.Class = det.Class
	if ts.After(t.LastSeen) {
		t.LastSeen = ts
	}
	s.appendSample(t, Sample{Timestamp: ts, Center: det.Box.Center()})
}

// appendSample keeps History time-ordered and within both bounds. Samples
// older than the newest retained one are discarded.
func (s *Store) appendSample(t *Track, smp Sample) {
	if n := len(t.History); n > 0 && smp.Timestamp.Before(t.History[n-1].Timestamp) {
		return
	}
	t.History = append(t.History, smp)

	drop := 0
	if over := len(t.History) - s.history.MaxSamples; over > 0 {
		drop = over
	}
	if s.history.Window > 0 {
		for drop < len(t.History)-1 && smp.Timestamp.Sub(t.History[drop].Timestamp) > s.history.Window {
			drop++
		}
	}
	if drop > 0 {
		t.History = append(t.History[:0], t.History[drop:]...)
	}
}

// live returns the live tracks in cat. Caller holds s.mu.
func (s *Store) live(cat Category) []*Track {
	out := make([]*Track, 0, len(s.tracks))
	for _, t := range s.tracks {
		if t.Category == cat {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
