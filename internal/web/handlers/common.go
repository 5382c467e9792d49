// Package handlers implements the HTTP handlers of the attendance API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/upashthiti/upashthiti/internal/detector"
	"github.com/upashthiti/upashthiti/internal/imaging"
	"github.com/upashthiti/upashthiti/internal/recognizer"
	"github.com/upashthiti/upashthiti/internal/registry"
)

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondRecognitionError maps recognition pipeline errors onto HTTP statuses.
// Input problems come back as 400 before any state was touched; a missing
// detector is a 503 while the rest of the API keeps serving.
func respondRecognitionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, detector.ErrUnavailable):
		respondError(w, http.StatusServiceUnavailable, "face detector not available")
	case errors.Is(err, imaging.ErrInvalidImage):
		respondError(w, http.StatusBadRequest, "invalid image format or corrupted file")
	case errors.Is(err, imaging.ErrImageTooSmall):
		respondError(w, http.StatusBadRequest, "image too small")
	case errors.Is(err, recognizer.ErrNoFaceDetected):
		respondError(w, http.StatusBadRequest, "no face detected in the image")
	case errors.Is(err, registry.ErrInvalidEmbedding):
		respondError(w, http.StatusBadRequest, "embedding rejected by the registry")
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}
