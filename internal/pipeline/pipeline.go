// Package pipeline wires tracking, speed estimation, violation
// classification and evidence generation for one camera stream, and runs
// many streams side by side.
package pipeline

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/violation.report/internal/config"
	"github.com/banshee-data/violation.report/internal/detect"
	"github.com/banshee-data/violation.report/internal/evidence"
	"github.com/banshee-data/violation.report/internal/monitoring"
	"github.com/banshee-data/violation.report/internal/speed"
	"github.com/banshee-data/violation.report/internal/tracking"
	"github.com/banshee-data/violation.report/internal/violations"
)

// NewRunID returns a fresh identifier stamped on every artifact of a run.
func NewRunID() string {
	return uuid.NewString()
}

// Deps are the collaborators shared by the pipelines of one run.
type Deps struct {
	IDs       *tracking.IDSource // shared so ids are unique across streams
	Detector  detect.Detector    // nil uses the detections carried on the frame
	Generator *evidence.Generator
	Store     evidence.Store
	Options   violations.Options
}

// FrameResult describes what one frame produced.
type FrameResult struct {
	Vehicles    []tracking.Track
	Persons     []tracking.Track
	Assessments []violations.Assessment
	Events      []violations.Event
	Stored      []evidence.Artifact // newly added artifacts
	Duplicates  int
	Failed      int // events that produced no stored artifact because of an error
}

// Counters are cumulative totals for a pipeline.
type Counters struct {
	Frames     int64 `json:"frames"`
	Dropped    int64 `json:"dropped_frames"`
	Events     int64 `json:"events"`
	Stored     int64 `json:"stored"`
	Duplicates int64 `json:"duplicates"`
	Failed     int64 `json:"failed"`
}

// Pipeline processes the frames of one stream. It is not safe for
// concurrent use; frames must arrive in order from a single goroutine.
type Pipeline struct {
	StreamID string

	store       *tracking.Store
	vehicles    *tracking.Tracker
	persons     *tracking.Tracker
	estimator   *speed.Estimator
	classifiers []violations.Classifier
	gate        *violations.Gate
	riderFactor float64

	detector  detect.Detector
	generator *evidence.Generator
	evidence  evidence.Store

	lastTS time.Time

	frames, dropped, events, stored, duplicates, failed atomic.Int64
}

// New builds the pipeline for streamID from the tuning config.
func New(streamID string, cfg *config.TuningConfig, deps Deps) (*Pipeline, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("stream %s: evidence store is required", streamID)
	}
	if deps.Generator == nil {
		return nil, fmt.Errorf("stream %s: evidence generator is required", streamID)
	}
	if deps.Detector == nil {
		deps.Detector = detect.Precomputed{}
	}
	store := tracking.NewStore(deps.IDs, tracking.HistoryConfigFromTuning(cfg))
	return &Pipeline{
		StreamID:    streamID,
		store:       store,
		vehicles:    tracking.NewTracker(store, tracking.TrackerConfigFromTuning(cfg, tracking.CategoryVehicle)),
		persons:     tracking.NewTracker(store, tracking.TrackerConfigFromTuning(cfg, tracking.CategoryPerson)),
		estimator:   speed.NewEstimator(speed.ConfigFromTuning(cfg)),
		classifiers: violations.ClassifiersFromTuning(cfg, deps.Options),
		gate:        violations.NewGate(store),
		riderFactor: cfg.GetRiderProximityFactor(),
		detector:    deps.Detector,
		generator:   deps.Generator,
		evidence:    deps.Store,
	}, nil
}

// Tracks returns the live tracks of the stream.
func (p *Pipeline) Tracks() *tracking.Store { return p.store }

// Counters returns a snapshot of the cumulative totals.
func (p *Pipeline) Counters() Counters {
	return Counters{
		Frames:     p.frames.Load(),
		Dropped:    p.dropped.Load(),
		Events:     p.events.Load(),
		Stored:     p.stored.Load(),
		Duplicates: p.duplicates.Load(),
		Failed:     p.failed.Load(),
	}
}

// ProcessFrame runs one frame through every stage. An error means the frame
// was rejected as a whole and left no trace in the track store.
func (p *Pipeline) ProcessFrame(ctx context.Context, frame detect.Frame) (FrameResult, error) {
	if frame.Timestamp.Before(p.lastTS) {
		p.dropped.Add(1)
		return FrameResult{}, fmt.Errorf("frame %d at %s is older than the previous frame", frame.Index, frame.Timestamp.Format(time.RFC3339Nano))
	}
	dets, err := p.detector.Detect(ctx, frame)
	if err != nil {
		p.dropped.Add(1)
		return FrameResult{}, fmt.Errorf("detect frame %d: %w", frame.Index, err)
	}
	frame.Detections = dets
	p.lastTS = frame.Timestamp
	p.frames.Add(1)

	if w, h := frame.Size(); w > 0 && h > 0 {
		p.vehicles.SetFrameSize(w, h)
		p.persons.SetFrameSize(w, h)
	}

	var res FrameResult

	// Step 1: vehicles, then speed for the ones matched this frame.
	for _, v := range p.vehicles.Update(dets, frame.Timestamp) {
		if v.Misses == 0 {
			p.store.Mutate(v.ID, func(t *tracking.Track) { p.estimator.Estimate(t) })
		}
	}
	res.Vehicles = p.store.Tracks(tracking.CategoryVehicle)

	// Step 2: persons and their rider links.
	res.Persons = p.persons.Update(dets, frame.Timestamp)
	scene := violations.NewScene(frame, res.Vehicles, res.Persons, p.riderFactor)
	for i := range res.Persons {
		vehicle, _ := scene.Riders.VehicleOf(res.Persons[i].ID)
		if res.Persons[i].VehicleID != vehicle {
			p.store.Link(res.Persons[i].ID, vehicle)
			res.Persons[i].VehicleID = vehicle
		}
	}

	// Step 3: classify and debounce.
	res.Events, res.Assessments = violations.Evaluate(p.classifiers, p.gate, scene)
	p.events.Add(int64(len(res.Events)))

	// Step 4: evidence. Keys already stored are skipped before rendering so
	// the persisted image is never rewritten and no OCR call is spent.
	for _, ev := range res.Events {
		key := evidence.KeyOf(ev.Kind, ev.Primary(), ev.Timestamp)
		if dup, err := p.evidence.Exists(ctx, key); err != nil {
			monitoring.Logf("[pipeline %s] frame %d: exists %s: %v", p.StreamID, frame.Index, key.ID(), err)
		} else if dup {
			monitoring.Debugf("[pipeline %s] duplicate %s", p.StreamID, key.ID())
			res.Duplicates++
			continue
		}
		a, err := p.generator.Generate(ctx, ev, frame, res.Persons)
		if err != nil {
			monitoring.Logf("[pipeline %s] frame %d: %s evidence failed: %v", p.StreamID, frame.Index, ev.Kind, err)
			res.Failed++
			continue
		}
		added, err := p.evidence.Add(ctx, a)
		switch {
		case err != nil:
			monitoring.Logf("[pipeline %s] frame %d: store %s: %v", p.StreamID, frame.Index, a.ID, err)
			res.Failed++
		case !added:
			monitoring.Debugf("[pipeline %s] duplicate %s", p.StreamID, a.ID)
			res.Duplicates++
		default:
			monitoring.Logf("[pipeline %s] %s recorded (plate %q)", p.StreamID, a.ID, a.Plate)
			res.Stored = append(res.Stored, a)
		}
	}
	p.stored.Add(int64(len(res.Stored)))
	p.duplicates.Add(int64(res.Duplicates))
	p.failed.Add(int64(res.Failed))
	return res, nil
}
