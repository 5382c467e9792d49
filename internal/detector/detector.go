// Package detector abstracts the external face analysis engine. The service
// treats detection as a black box that maps an image to zero or more faces,
// each with a bounding box and (usually) a 512-float embedding.
package detector

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when no detector is configured or the engine
// failed to initialize. Recognition and registration fail fast on it; the
// registry and the attendance log stay fully queryable.
var ErrUnavailable = errors.New("face detector not available")

// Face is one detected face. Embedding may be empty when the engine detected
// a face but could not extract features from it; such faces are skipped by
// callers rather than treated as unknown.
type Face struct {
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2] in pixels
	Embedding []float32 `json:"embedding"`
	DetScore  float64   `json:"det_score"`
}

// BBoxArea returns the bounding box area in square pixels.
func (f Face) BBoxArea() float64 {
	if len(f.BBox) != 4 {
		return 0
	}
	w := f.BBox[2] - f.BBox[0]
	h := f.BBox[3] - f.BBox[1]
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// Detector is the capability contract both engine variants implement.
type Detector interface {
	// Detect finds faces in the given image bytes.
	Detect(ctx context.Context, imageData []byte) ([]Face, error)
	// Ready reports whether the engine can serve detections right now.
	Ready(ctx context.Context) error
}

// Largest returns the face with the largest bounding box area, the canonical
// choice when an enrollment photo contains more than one person. Returns
// false when faces is empty.
func Largest(faces []Face) (Face, bool) {
	if len(faces) == 0 {
		return Face{}, false
	}
	best := faces[0]
	for _, f := range faces[1:] {
		if f.BBoxArea() > best.BBoxArea() {
			best = f
		}
	}
	return best, true
}

// Disabled is the fallback variant selected at startup when no engine is
// configured. Every call reports ErrUnavailable.
type Disabled struct{}

// Detect always fails with ErrUnavailable.
func (Disabled) Detect(ctx context.Context, imageData []byte) ([]Face, error) {
	return nil, ErrUnavailable
}

// Ready always fails with ErrUnavailable.
func (Disabled) Ready(ctx context.Context) error {
	return ErrUnavailable
}
