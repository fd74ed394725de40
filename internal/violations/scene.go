package violations

import (
	"math"
	"sort"
	"time"

	"github.com/banshee-data/violation.report/internal/detect"
	"github.com/banshee-data/violation.report/internal/tracking"
)

// Scene is the read-only input to every classifier for one frame.
type Scene struct {
	StreamID    string
	Timestamp   time.Time
	FrameWidth  int
	FrameHeight int

	Vehicles []tracking.Track
	Persons  []tracking.Track
	Riders   Riders

	// Auxiliary detections that are not tracked: traffic lights and helmets.
	Lights  []detect.Detection
	Helmets []detect.Detection
}

// Vehicle returns the vehicle track with the given id.
func (s Scene) Vehicle(id tracking.TrackID) (tracking.Track, bool) {
	return find(s.Vehicles, id)
}

// Person returns the person track with the given id.
func (s Scene) Person(id tracking.TrackID) (tracking.Track, bool) {
	return find(s.Persons, id)
}

func find(tracks []tracking.Track, id tracking.TrackID) (tracking.Track, bool) {
	for _, t := range tracks {
		if t.ID == id {
			return t, true
		}
	}
	return tracking.Track{}, false
}

// Riders maps two-wheeler tracks to the persons riding them.
type Riders struct {
	byVehicle map[tracking.TrackID][]tracking.TrackID
	byPerson  map[tracking.TrackID]tracking.TrackID
}

// On returns the persons associated with vehicle, ordered by id.
func (r Riders) On(vehicle tracking.TrackID) []tracking.TrackID {
	return r.byVehicle[vehicle]
}

// VehicleOf returns the two-wheeler the person rides.
func (r Riders) VehicleOf(person tracking.TrackID) (tracking.TrackID, bool) {
	v, ok := r.byPerson[person]
	return v, ok
}

// Len returns the number of associated persons.
func (r Riders) Len() int { return len(r.byPerson) }

// Associate links each person to the nearest two-wheeler whose centre lies
// within factor times that vehicle's box diagonal. Equidistant vehicles
// resolve to the lower id.
func Associate(persons, vehicles []tracking.Track, factor float64) Riders {
	r := Riders{
		byVehicle: make(map[tracking.TrackID][]tracking.TrackID),
		byPerson:  make(map[tracking.TrackID]tracking.TrackID),
	}
	for _, p := range persons {
		pc := p.Box.Center()
		best, bestDist := tracking.TrackID(0), math.Inf(1)
		for _, v := range vehicles {
			if !v.Class.IsTwoWheeler() {
				continue
			}
			d := pc.Dist(v.Box.Center())
			if d > factor*v.Box.Diagonal() {
				continue
			}
			if d < bestDist || (d == bestDist && v.ID < best) {
				best, bestDist = v.ID, d
			}
		}
		if best != 0 {
			r.byPerson[p.ID] = best
			r.byVehicle[best] = append(r.byVehicle[best], p.ID)
		}
	}
	for _, ids := range r.byVehicle {
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	}
	return r
}

// LightReader interprets traffic light detections.
type LightReader interface {
	Red(lights []detect.Detection) bool
}

// PositionLightReader treats a light whose centre sits at or above RedMaxY
// as showing red. It stands in for a colour classifier on fixed cameras
// where the lit lamp's position identifies the phase.
type PositionLightReader struct {
	RedMaxY float64 // +Inf accepts any light
}

// Red reports whether any light reads as red.
func (r PositionLightReader) Red(lights []detect.Detection) bool {
	for _, l := range lights {
		if l.Class == detect.ClassTrafficLight && l.Box.Center().Y <= r.RedMaxY {
			return true
		}
	}
	return false
}

// Signal is a best-effort yes/no answer from a collaborator.
type Signal int

const (
	SignalUnknown Signal = iota
	SignalPresent
	SignalAbsent
)

func (s Signal) String() string {
	switch s {
	case SignalPresent:
		return "present"
	case SignalAbsent:
		return "absent"
	}
	return "unknown"
}

// HelmetSource answers whether a rider wears a helmet.
type HelmetSource interface {
	Helmet(person tracking.Track, scene Scene) Signal
}

// BoxHelmetSource reads helmets from the detector's helmet boxes: a helmet
// overlapping the upper third of the person box counts as worn. Heads
// smaller than MinHeadArea are too small to judge.
type BoxHelmetSource struct {
	MinHeadArea float64
}

// Helmet implements HelmetSource.
func (h BoxHelmetSource) Helmet(person tracking.Track, scene Scene) Signal {
	head := person.Box.HeadRegion()
	if head.Area() < h.MinHeadArea {
		return SignalUnknown
	}
	for _, d := range scene.Helmets {
		if d.Class == detect.ClassHelmet && head.Intersect(d.Box).Area() > 0 {
			return SignalPresent
		}
	}
	return SignalAbsent
}

// LaneStatus is a lane model's verdict for one vehicle.
type LaneStatus int

const (
	LaneUnknown LaneStatus = iota
	LaneCorrect
	LaneWrong
)

// LaneModel judges whether a vehicle travels in a permitted lane. No
// implementation ships with the pipeline.
type LaneModel interface {
	Lane(vehicle tracking.Track, scene Scene) LaneStatus
}
