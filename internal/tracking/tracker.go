package tracking

import (
	"math"
	"sort"
	"time"

	"github.com/banshee-data/violation.report/internal/config"
	"github.com/banshee-data/violation.report/internal/detect"
	"github.com/banshee-data/violation.report/internal/monitoring"
)

// TrackerConfig holds configuration parameters for one tracker.
type TrackerConfig struct {
	Category        Category
	MinConfidence   float64       // detections below this are ignored
	IoUThreshold    float64       // IoU strictly above this admits a pair
	IoUWeight       float64       // weight of IoU in the affinity score; centroid term gets 1-IoUWeight
	CentroidGate    float64       // centroid distance admits a pair within this fraction of frame width
	MaxAge          time.Duration // unmatched tracks older than this are evicted
	MaxMissedFrames int           // 0 disables the frame-count eviction rule
	FrameWidth      int
	FrameHeight     int
}

// DefaultTrackerConfig returns default tracker configuration.
func DefaultTrackerConfig(cat Category) TrackerConfig {
	return TrackerConfigFromTuning(config.EmptyTuningConfig(), cat)
}

// TrackerConfigFromTuning builds a TrackerConfig for cat from the tuning file.
func TrackerConfigFromTuning(cfg *config.TuningConfig, cat Category) TrackerConfig {
	return TrackerConfig{
		Category:        cat,
		MinConfidence:   cfg.GetMinConfidence(),
		IoUThreshold:    cfg.GetIoUThreshold(),
		IoUWeight:       cfg.GetIoUWeight(),
		CentroidGate:    cfg.GetCentroidGateFraction(),
		MaxAge:          cfg.GetMaxTrackAge(),
		MaxMissedFrames: cfg.GetMaxMissedFrames(),
		FrameWidth:      cfg.GetFrameWidth(),
		FrameHeight:     cfg.GetFrameHeight(),
	}
}

// HistoryConfigFromTuning builds the store's history bounds.
func HistoryConfigFromTuning(cfg *config.TuningConfig) HistoryConfig {
	return HistoryConfig{
		MaxSamples: cfg.GetMaxHistorySamples(),
		Window:     cfg.GetHistoryWindow(),
	}
}

// Tracker associates each frame's detections of one category with the
// live tracks in its Store using greedy best-affinity matching.
type Tracker struct {
	Config TrackerConfig
	store  *Store
}

// NewTracker creates a tracker writing to store.
func NewTracker(store *Store, cfg TrackerConfig) *Tracker {
	return &Tracker{Config: cfg, store: store}
}

// Store returns the store the tracker writes to.
func (t *Tracker) Store() *Store { return t.store }

// SetFrameSize overrides the frame dimensions used for gating. Non-positive
// values are ignored.
func (t *Tracker) SetFrameSize(w, h int) {
	if w > 0 && h > 0 {
		t.Config.FrameWidth = w
		t.Config.FrameHeight = h
	}
}

type pair struct {
	det      int
	track    *Track
	score    float64
	lastSeen time.Time
}

// Update processes one frame of detections and returns the live tracks of
// the tracker's category, ordered by id.
func (t *Tracker) Update(detections []detect.Detection, ts time.Time) []Track {
	dets := t.accept(detections)

	t.store.mu.Lock()

	// Step 1: evict tracks that went stale before this frame so a late
	// re-detection gets a fresh id.
	for _, tr := range t.store.live(t.Config.Category) {
		if ts.Sub(tr.LastSeen) > t.Config.MaxAge {
			t.evictLocked(tr, "max age")
		}
	}

	// Step 2: score every admissible detection/track pair.
	live := t.store.live(t.Config.Category)
	pairs := t.candidates(dets, live)

	// Step 3: resolve greedily, best score first.
	sort.SliceStable(pairs, func(i, j int) bool {
		a, b := pairs[i], pairs[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if !a.lastSeen.Equal(b.lastSeen) {
			return a.lastSeen.After(b.lastSeen)
		}
		if a.track.ID != b.track.ID {
			return a.track.ID < b.track.ID
		}
		return a.det < b.det
	})
	detTaken := make([]bool, len(dets))
	trackTaken := make(map[TrackID]bool, len(live))
	for _, p := range pairs {
		if detTaken[p.det] || trackTaken[p.track.ID] {
			continue
		}
		detTaken[p.det] = true
		trackTaken[p.track.ID] = true
		t.store.observe(p.track, dets[p.det], ts)
	}

	// Step 4: age unmatched tracks.
	for _, tr := range live {
		if trackTaken[tr.ID] {
			continue
		}
		tr.Misses++
		if t.Config.MaxMissedFrames > 0 && tr.Misses > t.Config.MaxMissedFrames {
			t.evictLocked(tr, "missed frames")
		}
	}

	// Step 5: spawn tracks for unmatched detections.
	for i, d := range dets {
		if !detTaken[i] {
			nt := t.store.create(t.Config.Category, d, ts)
			monitoring.Debugf("[tracker %s] new track %d %s at %s", t.Config.Category, nt.ID, nt.Class, nt.Box)
		}
	}

	t.store.mu.Unlock()
	return t.store.Tracks(t.Config.Category)
}

// accept drops detections that fail validation or belong elsewhere.
func (t *Tracker) accept(detections []detect.Detection) []detect.Detection {
	out := make([]detect.Detection, 0, len(detections))
	for _, d := range detections {
		if !t.Config.Category.Accepts(d.Class) {
			continue
		}
		if err := d.Validate(); err != nil {
			monitoring.Logf("[tracker %s] dropping detection: %v", t.Config.Category, err)
			continue
		}
		if d.Confidence < t.Config.MinConfidence {
			monitoring.Debugf("[tracker %s] dropping %s below confidence %.2f", t.Config.Category, d.Class, d.Confidence)
			continue
		}
		out = append(out, d)
	}
	return out
}

func (t *Tracker) candidates(dets []detect.Detection, live []*Track) []pair {
	w, h := float64(t.Config.FrameWidth), float64(t.Config.FrameHeight)
	diag := math.Hypot(w, h)
	if diag <= 0 {
		diag = 1
	}
	gate := t.Config.CentroidGate * w

	var pairs []pair
	for i, d := range dets {
		c := d.Box.Center()
		for _, tr := range live {
			if !compatible(tr.Class, d.Class) {
				continue
			}
			iou := tr.Box.IoU(d.Box)
			dist := tr.Box.Center().Dist(c)
			if iou <= t.Config.IoUThreshold && dist > gate {
				continue
			}
			closeness := math.Max(0, 1-dist/diag)
			score := t.Config.IoUWeight*iou + (1-t.Config.IoUWeight)*closeness
			pairs = append(pairs, pair{det: i, track: tr, score: score, lastSeen: tr.LastSeen})
		}
	}
	return pairs
}

// compatible allows vehicle subtypes to match each other since detectors
// often flip between car and truck for the same object.
func compatible(a, b detect.Class) bool {
	return a == b || (a.IsVehicle() && b.IsVehicle())
}

func (t *Tracker) evictLocked(tr *Track, reason string) {
	delete(t.store.tracks, tr.ID)
	monitoring.Debugf("[tracker %s] evicted track %d (%s, %d hits)", t.Config.Category, tr.ID, reason, tr.Hits)
}
