// Package detect holds the per-frame input model of the violation pipeline.
//
// Responsibilities: bounding-box geometry, detection classes, the Frame
// envelope delivered by a camera stream, and the narrow Detector interface
// that decouples the pipeline from any particular detection model.
// Key types: BBox, Detection, Class, Frame, Detector, FeedReader.
//
// Nothing in this package keeps state across frames.
package detect
