// Package evidence turns violation events into immutable evidence
// artifacts and stores them, deduplicated by (kind, track, second).
package evidence

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/violation.report/internal/detect"
	"github.com/banshee-data/violation.report/internal/timeutil"
	"github.com/banshee-data/violation.report/internal/tracking"
	"github.com/banshee-data/violation.report/internal/violations"
)

var (
	// ErrNotFound is returned by Store.Get for an unknown id.
	ErrNotFound = errors.New("evidence not found")
	// ErrBadID is returned when an id does not follow the kind_track_time layout.
	ErrBadID = errors.New("malformed evidence id")
)

// Key is the dedup key. Two artifacts with equal keys describe the same
// physical violation.
type Key struct {
	Kind    violations.Kind
	TrackID tracking.TrackID
	Unix    int64 // seconds, rounded down
}

// KeyOf builds the key for a violation of kind by track at ts.
func KeyOf(kind violations.Kind, track tracking.TrackID, ts time.Time) Key {
	return Key{Kind: kind, TrackID: track, Unix: ts.Unix()}
}

// Time returns the key's second as a UTC time.
func (k Key) Time() time.Time { return time.Unix(k.Unix, 0).UTC() }

// ID renders the stable identifier, e.g. overspeeding_17_20260301_101502.
func (k Key) ID() string {
	return fmt.Sprintf("%s_%d_%s", k.Kind, k.TrackID, timeutil.Stamp(k.Time()))
}

// ParseID recovers the key from an id produced by Key.ID.
func ParseID(id string) (Key, error) {
	parts := strings.Split(id, "_")
	if len(parts) < 4 {
		return Key{}, fmt.Errorf("%w: %q", ErrBadID, id)
	}
	n := len(parts)
	ts, err := timeutil.ParseStamp(parts[n-2] + "_" + parts[n-1])
	if err != nil {
		return Key{}, fmt.Errorf("%w: %q: %v", ErrBadID, id, err)
	}
	track, err := strconv.ParseUint(parts[n-3], 10, 64)
	if err != nil || track == 0 {
		return Key{}, fmt.Errorf("%w: %q: bad track id", ErrBadID, id)
	}
	kind, err := violations.ParseKind(strings.Join(parts[:n-3], "_"))
	if err != nil {
		return Key{}, fmt.Errorf("%w: %v", ErrBadID, err)
	}
	return Key{Kind: kind, TrackID: tracking.TrackID(track), Unix: ts.Unix()}, nil
}

// Artifact is the persisted record of one violation. It is never mutated
// after it has been added to a Store.
type Artifact struct {
	ID        string             `json:"id"`
	Kind      violations.Kind    `json:"kind"`
	Timestamp time.Time          `json:"timestamp"` // UTC, whole seconds
	TrackID   tracking.TrackID   `json:"track_id"`
	Related   []tracking.TrackID `json:"related_track_ids,omitempty"`
	VehicleID tracking.TrackID   `json:"vehicle_id,omitempty"`
	StreamID  string             `json:"stream_id"`
	RunID     string             `json:"run_id,omitempty"`
	Plate     string             `json:"plate"`
	ImagePath string             `json:"image_path"`
	Box       detect.BBox        `json:"box"`
	SpeedMPS  float64            `json:"speed_mps,omitempty"`
	Riders    int                `json:"riders,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}

// Key returns the artifact's dedup key.
func (a Artifact) Key() Key {
	return KeyOf(a.Kind, a.TrackID, a.Timestamp)
}
