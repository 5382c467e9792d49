// Package recognizer composes the detector, the embedding registry, the
// matcher and the attendance ledger into the two operations the service
// exposes: analyzing an image for known faces and enrolling a new student.
package recognizer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/upashthiti/upashthiti/internal/detector"
	"github.com/upashthiti/upashthiti/internal/imaging"
	"github.com/upashthiti/upashthiti/internal/ledger"
	"github.com/upashthiti/upashthiti/internal/match"
	"github.com/upashthiti/upashthiti/internal/registry"
)

// UnknownName labels a face whose best match stayed below the threshold.
const UnknownName = "Unknown"

// ErrNoFaceDetected is returned by Enroll when none of the provided photos
// contained a usable face. The registry is left untouched.
var ErrNoFaceDetected = errors.New("no face detected")

// FaceResult is the outcome for one processed face. It lives only for the
// duration of the call and is never persisted.
type FaceResult struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
	Matched    bool    `json:"matched"`
	BBox       [4]int  `json:"bbox"`
}

// AnalyzeResult aggregates per-face outcomes for one image.
type AnalyzeResult struct {
	Faces           []FaceResult `json:"faces"`
	TotalFaces      int          `json:"total_faces"`
	RecognizedFaces int          `json:"recognized_faces"`
}

// EnrollResult reports what an enrollment consumed and stored.
type EnrollResult struct {
	Record        registry.Record `json:"record"`
	PhotosUsed    int             `json:"photos_used"`
	FacesDetected int             `json:"faces_detected"`
}

// Service orchestrates one recognition or enrollment call. It borrows the
// registry and the ledger; it owns neither.
type Service struct {
	detector  detector.Detector
	registry  *registry.Registry
	ledger    *ledger.Ledger
	threshold float64
}

// New wires a recognition service.
func New(det detector.Detector, reg *registry.Registry, led *ledger.Ledger, threshold float64) *Service {
	return &Service{
		detector:  det,
		registry:  reg,
		ledger:    led,
		threshold: threshold,
	}
}

// Threshold returns the configured confidence threshold.
func (s *Service) Threshold() float64 {
	return s.threshold
}

// Ready reports whether the detector can serve requests.
func (s *Service) Ready(ctx context.Context) error {
	return s.detector.Ready(ctx)
}

// Analyze runs the full recognition flow for one image: detect faces, match
// each usable embedding against the registry, and record attendance for
// every positive match. Zero detected faces is a valid, empty result. Faces
// the detector could not embed are skipped entirely rather than reported as
// unknown. The ledger write happens only after a face's decision is final,
// so an interrupted call leaves a prefix of valid events, never a torn one.
func (s *Service) Analyze(ctx context.Context, imageData []byte) (*AnalyzeResult, error) {
	prepared, err := imaging.Prepare(imageData)
	if err != nil {
		return nil, err
	}

	faces, err := s.detector.Detect(ctx, prepared)
	if err != nil {
		return nil, fmt.Errorf("detecting faces: %w", err)
	}

	candidates := s.candidates()

	result := &AnalyzeResult{TotalFaces: len(faces)}
	for _, face := range faces {
		if len(face.Embedding) == 0 {
			continue
		}

		best := match.Best(face.Embedding, candidates)
		matched := best.Name != "" && match.Accepted(best.Confidence, s.threshold)

		fr := FaceResult{
			Name:       UnknownName,
			Confidence: best.Confidence,
			Matched:    matched,
			BBox:       bboxInts(face.BBox),
		}
		if matched {
			fr.Name = best.Name
			s.ledger.Record(best.Name, best.Confidence, time.Now())
			result.RecognizedFaces++
		}
		result.Faces = append(result.Faces, fr)
	}

	return result, nil
}

// Enroll registers a student from one or more photos. Each photo contributes
// the embedding of its largest detected face, the canonical pick for crowded
// enrollment shots, and the stored reference is the mean of the collected
// embeddings. At least one photo must yield a usable face.
func (s *Service) Enroll(ctx context.Context, name string, images [][]byte, studentID string) (*EnrollResult, error) {
	var embeddings [][]float32
	facesDetected := 0

	for _, imageData := range images {
		prepared, err := imaging.Prepare(imageData)
		if err != nil {
			return nil, err
		}

		faces, err := s.detector.Detect(ctx, prepared)
		if err != nil {
			return nil, fmt.Errorf("detecting faces: %w", err)
		}
		facesDetected += len(faces)

		face, ok := detector.Largest(faces)
		if !ok || len(face.Embedding) == 0 {
			continue
		}
		embeddings = append(embeddings, face.Embedding)
	}

	if len(embeddings) == 0 {
		return nil, ErrNoFaceDetected
	}

	record, err := s.registry.UpsertAveraged(name, embeddings, studentID)
	if err != nil {
		return nil, err
	}

	return &EnrollResult{
		Record:        record,
		PhotosUsed:    len(embeddings),
		FacesDetected: facesDetected,
	}, nil
}

// candidates snapshots the registry for one matching pass.
func (s *Service) candidates() []match.Candidate {
	entries := s.registry.All()
	candidates := make([]match.Candidate, 0, len(entries))
	for _, e := range entries {
		candidates = append(candidates, match.Candidate{Name: e.Name, Embedding: e.Record.Embedding})
	}
	return candidates
}

// bboxInts rounds a pixel bounding box to ints, tolerating malformed boxes.
func bboxInts(bbox []float64) [4]int {
	var out [4]int
	for i := 0; i < len(bbox) && i < 4; i++ {
		out[i] = int(math.Round(bbox[i]))
	}
	return out
}
