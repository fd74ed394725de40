package violations

import (
	"github.com/banshee-data/violation.report/internal/config"
	"github.com/banshee-data/violation.report/internal/detect"
	"github.com/banshee-data/violation.report/internal/tracking"
)

// Options supplies the optional collaborators. Nil fields fall back to the
// built-in readers, or leave the rule unevaluated where none exists.
type Options struct {
	Lights  LightReader
	Helmets HelmetSource
	Lanes   LaneModel
}

// ClassifiersFromTuning builds the classifier bank in AllKinds order.
func ClassifiersFromTuning(cfg *config.TuningConfig, opts Options) []Classifier {
	lr := opts.Lights
	if lr == nil {
		lr = PositionLightReader{RedMaxY: cfg.GetLightRedMaxY()}
	}
	hs := opts.Helmets
	if hs == nil && cfg.GetHelmetDetection() {
		hs = BoxHelmetSource{MinHeadArea: 64}
	}
	return []Classifier{
		SignalJump{StopLineY: cfg.GetStopLineY(), Direction: cfg.GetCrossingDirection(), Lights: lr},
		Overspeeding{LimitMPS: cfg.GetSpeedLimitMPS()},
		HelmetlessRiding{Source: hs},
		TripleRiding{MaxRiders: cfg.GetMaxRiders()},
		WrongLane{Model: opts.Lanes},
	}
}

// NewScene assembles a scene from the tracker output and the frame's raw
// detections. Riders are associated using factor times the vehicle diagonal.
// Every live track takes part, so a rider the detector misses for a few
// frames stays on the vehicle until the tracker evicts it.
func NewScene(frame detect.Frame, vehicles, persons []tracking.Track, factor float64) Scene {
	w, h := frame.Size()
	return Scene{
		StreamID:    frame.StreamID,
		Timestamp:   frame.Timestamp,
		FrameWidth:  w,
		FrameHeight: h,
		Vehicles:    vehicles,
		Persons:     persons,
		Riders:      Associate(persons, vehicles, factor),
		Lights:      detect.ByClass(frame.Detections, func(c detect.Class) bool { return c == detect.ClassTrafficLight }),
		Helmets:     detect.ByClass(frame.Detections, func(c detect.Class) bool { return c == detect.ClassHelmet }),
	}
}

// Evaluate runs every classifier over scene and passes each assessment
// through the gate. It returns the emitted events and the raw assessments.
func Evaluate(classifiers []Classifier, gate *Gate, scene Scene) ([]Event, []Assessment) {
	var events []Event
	assessments := make([]Assessment, 0, len(classifiers))
	for _, c := range classifiers {
		a := c.Evaluate(scene)
		assessments = append(assessments, a)
		events = append(events, gate.Apply(a)...)
	}
	return events, assessments
}
