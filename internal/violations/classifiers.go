package violations

import (
	"github.com/banshee-data/violation.report/internal/tracking"
)

// Classifier evaluates one rule over a scene. Implementations hold only
// immutable configuration.
type Classifier interface {
	Kind() Kind
	Evaluate(scene Scene) Assessment
}

// Crossing directions for the stop line.
const (
	DirectionDown = "down" // towards larger y
	DirectionUp   = "up"
)

// SignalJump flags vehicles whose centre crosses the stop line while the
// light reads red.
type SignalJump struct {
	StopLineY float64 // 0 uses half the frame height
	Direction string
	Lights    LightReader
}

// Kind implements Classifier.
func (c SignalJump) Kind() Kind { return KindSignalJump }

func (c SignalJump) stopLine(scene Scene) float64 {
	if c.StopLineY > 0 {
		return c.StopLineY
	}
	return float64(scene.FrameHeight) / 2
}

func (c SignalJump) crossed(prevY, curY, line float64) bool {
	if c.Direction == DirectionUp {
		return prevY > line && curY <= line
	}
	return prevY < line && curY >= line
}

// Evaluate implements Classifier.
func (c SignalJump) Evaluate(scene Scene) Assessment {
	a := Assessment{Kind: KindSignalJump}
	if c.Lights == nil || !c.Lights.Red(scene.Lights) {
		return a
	}
	line := c.stopLine(scene)
	for _, v := range scene.Vehicles {
		// PrevBox to Box is only this frame's motion when matched this frame.
		if v.Hits < 2 || v.Misses > 0 {
			continue
		}
		a.Checked = append(a.Checked, v.ID)
		if !c.crossed(v.PrevBox.Center().Y, v.Box.Center().Y, line) {
			continue
		}
		a.Candidates = append(a.Candidates, Event{
			Kind:       KindSignalJump,
			Timestamp:  scene.Timestamp,
			TrackIDs:   []tracking.TrackID{v.ID},
			VehicleID:  v.ID,
			VehicleBox: v.Box,
			Box:        v.Box,
			StopLineY:  line,
		})
	}
	return a
}

// Overspeeding flags vehicles whose smoothed speed exceeds the limit.
type Overspeeding struct {
	LimitMPS float64
}

// Kind implements Classifier.
func (c Overspeeding) Kind() Kind { return KindOverspeeding }

// Evaluate implements Classifier. Tracks without a speed estimate are not
// checked.
func (c Overspeeding) Evaluate(scene Scene) Assessment {
	a := Assessment{Kind: KindOverspeeding}
	for _, v := range scene.Vehicles {
		if !v.HasSpeed {
			continue
		}
		a.Checked = append(a.Checked, v.ID)
		if v.SpeedMPS <= c.LimitMPS {
			continue
		}
		a.Candidates = append(a.Candidates, Event{
			Kind:       KindOverspeeding,
			Timestamp:  scene.Timestamp,
			TrackIDs:   []tracking.TrackID{v.ID},
			VehicleID:  v.ID,
			VehicleBox: v.Box,
			Box:        v.Box,
			SpeedMPS:   v.SpeedMPS,
			LimitMPS:   c.LimitMPS,
		})
	}
	return a
}

// HelmetlessRiding flags riders of two-wheelers without a helmet.
type HelmetlessRiding struct {
	Source HelmetSource
}

// Kind implements Classifier.
func (c HelmetlessRiding) Kind() Kind { return KindHelmetlessRiding }

// Evaluate implements Classifier.
func (c HelmetlessRiding) Evaluate(scene Scene) Assessment {
	a := Assessment{Kind: KindHelmetlessRiding}
	if c.Source == nil {
		a.Status = NotEvaluated
		return a
	}
	for _, p := range scene.Persons {
		if p.Misses > 0 {
			continue
		}
		vid, ok := scene.Riders.VehicleOf(p.ID)
		if !ok {
			continue
		}
		v, ok := scene.Vehicle(vid)
		if !ok {
			continue
		}
		sig := c.Source.Helmet(p, scene)
		if sig == SignalUnknown {
			continue
		}
		a.Checked = append(a.Checked, p.ID)
		if sig != SignalAbsent {
			continue
		}
		a.Candidates = append(a.Candidates, Event{
			Kind:       KindHelmetlessRiding,
			Timestamp:  scene.Timestamp,
			TrackIDs:   []tracking.TrackID{p.ID, v.ID},
			VehicleID:  v.ID,
			VehicleBox: v.Box,
			Box:        p.Box.Union(v.Box),
			Riders:     len(scene.Riders.On(v.ID)),
		})
	}
	return a
}

// TripleRiding flags two-wheelers carrying more than MaxRiders persons.
type TripleRiding struct {
	MaxRiders int
}

// Kind implements Classifier.
func (c TripleRiding) Kind() Kind { return KindTripleRiding }

// Evaluate implements Classifier.
func (c TripleRiding) Evaluate(scene Scene) Assessment {
	a := Assessment{Kind: KindTripleRiding}
	for _, v := range scene.Vehicles {
		if !v.Class.IsTwoWheeler() {
			continue
		}
		a.Checked = append(a.Checked, v.ID)
		riders := scene.Riders.On(v.ID)
		if len(riders) <= c.MaxRiders {
			continue
		}
		ids := append([]tracking.TrackID{v.ID}, riders...)
		b := v.Box
		for _, id := range riders {
			if p, ok := scene.Person(id); ok {
				b = b.Union(p.Box)
			}
		}
		a.Candidates = append(a.Candidates, Event{
			Kind:       KindTripleRiding,
			Timestamp:  scene.Timestamp,
			TrackIDs:   ids,
			VehicleID:  v.ID,
			VehicleBox: v.Box,
			Box:        b,
			Riders:     len(riders),
		})
	}
	return a
}

// WrongLane flags vehicles the lane model places in a forbidden lane.
// Without a model it reports NotEvaluated rather than "no violation".
type WrongLane struct {
	Model LaneModel
}

// Kind implements Classifier.
func (c WrongLane) Kind() Kind { return KindWrongLane }

// Evaluate implements Classifier.
func (c WrongLane) Evaluate(scene Scene) Assessment {
	a := Assessment{Kind: KindWrongLane}
	if c.Model == nil {
		a.Status = NotEvaluated
		return a
	}
	for _, v := range scene.Vehicles {
		switch c.Model.Lane(v, scene) {
		case LaneCorrect:
			a.Checked = append(a.Checked, v.ID)
		case LaneWrong:
			a.Checked = append(a.Checked, v.ID)
			a.Candidates = append(a.Candidates, Event{
				Kind:       KindWrongLane,
				Timestamp:  scene.Timestamp,
				TrackIDs:   []tracking.TrackID{v.ID},
				VehicleID:  v.ID,
				VehicleBox: v.Box,
				Box:        v.Box,
			})
		}
	}
	return a
}
