// Package violations evaluates traffic rules over the live tracks of one
// stream. Classifiers are pure functions of a Scene; debouncing is done by
// a Gate that keeps its markers on the tracks themselves.
package violations

import (
	"fmt"
	"strings"
	"time"

	"github.com/banshee-data/violation.report/internal/detect"
	"github.com/banshee-data/violation.report/internal/tracking"
)

// Kind enumerates the violations the pipeline detects.
type Kind string

const (
	KindSignalJump       Kind = "signal_jump"
	KindOverspeeding     Kind = "overspeeding"
	KindHelmetlessRiding Kind = "helmetless_riding"
	KindTripleRiding     Kind = "triple_riding"
	KindWrongLane        Kind = "wrong_lane"
)

// AllKinds lists every kind in presentation order.
var AllKinds = []Kind{
	KindSignalJump,
	KindOverspeeding,
	KindHelmetlessRiding,
	KindTripleRiding,
	KindWrongLane,
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	for _, v := range AllKinds {
		if k == v {
			return true
		}
	}
	return false
}

// ParseKind validates s as a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("unknown violation kind %q", s)
	}
	return k, nil
}

// OneShot reports whether the kind fires at most once per track lifetime.
// Other kinds re-arm once their condition clears.
func (k Kind) OneShot() bool {
	return k == KindSignalJump
}

// Label is the annotation text drawn on evidence images.
func (k Kind) Label() string {
	return strings.ToUpper(strings.ReplaceAll(string(k), "_", " "))
}

// Event is a single violation emitted by a classifier. It is consumed once
// by the evidence generator and never persisted directly.
type Event struct {
	Kind      Kind
	Timestamp time.Time
	// TrackIDs lists the implicated tracks, primary first.
	TrackIDs []tracking.TrackID

	VehicleID  tracking.TrackID // 0 when no vehicle is implicated
	VehicleBox detect.BBox      // plate search region when VehicleID is set
	Box        detect.BBox      // evidence region

	SpeedMPS  float64
	LimitMPS  float64
	Riders    int
	StopLineY float64
}

// Primary returns the track the event is keyed on.
func (e Event) Primary() tracking.TrackID {
	if len(e.TrackIDs) == 0 {
		return 0
	}
	return e.TrackIDs[0]
}

// Status distinguishes "checked, nothing found" from "could not check".
type Status int

const (
	Evaluated Status = iota
	NotEvaluated
)

func (s Status) String() string {
	if s == NotEvaluated {
		return "not_evaluated"
	}
	return "evaluated"
}

// Assessment is a classifier's verdict for one frame.
type Assessment struct {
	Kind       Kind
	Status     Status
	Candidates []Event
	// Checked lists the primary tracks whose condition was evaluated this
	// frame. A checked track without a candidate re-arms its kind.
	Checked []tracking.TrackID
}
