package handlers

import (
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"

	"github.com/upashthiti/upashthiti/internal/constants"
	"github.com/upashthiti/upashthiti/internal/recognizer"
)

// RecognitionHandler handles enrollment and image analysis.
type RecognitionHandler struct {
	service *recognizer.Service
}

// NewRecognitionHandler creates a new recognition handler.
func NewRecognitionHandler(svc *recognizer.Service) *RecognitionHandler {
	return &RecognitionHandler{service: svc}
}

// readUploadedFile loads one multipart file into memory.
func readUploadedFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("opening upload %s: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("reading upload %s: %w", fh.Filename, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("upload %s is empty", fh.Filename)
	}
	return data, nil
}

// imageUploads collects the request's image files. Both "files" (multiple
// enrollment photos) and the older single "file"/"frame" field names are
// accepted for compatibility with existing clients.
func imageUploads(r *http.Request) []*multipart.FileHeader {
	if r.MultipartForm == nil {
		return nil
	}
	for _, field := range []string{"files", "file", "frame"} {
		if uploads := r.MultipartForm.File[field]; len(uploads) > 0 {
			return uploads
		}
	}
	return nil
}

// Register enrolls a student from one or more uploaded photos.
func (h *RecognitionHandler) Register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	name := r.FormValue("name")
	if name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	studentID := r.FormValue("student_id")

	uploads := imageUploads(r)
	if len(uploads) == 0 {
		respondError(w, http.StatusBadRequest, "no image file provided")
		return
	}

	images := make([][]byte, 0, len(uploads))
	for _, fh := range uploads {
		data, err := readUploadedFile(fh)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		images = append(images, data)
	}

	result, err := h.service.Enroll(r.Context(), name, images, studentID)
	if err != nil {
		respondRecognitionError(w, err)
		return
	}

	log.Printf("registered student %s from %d photo(s)", sanitizeForLog(name), result.PhotosUsed)
	respondJSON(w, http.StatusOK, map[string]any{
		"message":        fmt.Sprintf("Student %s registered successfully", name),
		"name":           name,
		"student_id":     result.Record.StudentID,
		"registered_at":  result.Record.RegisteredAt,
		"photos_used":    result.PhotosUsed,
		"faces_detected": result.FacesDetected,
	})
}

// Analyze recognizes faces in an uploaded image and records attendance for
// every positive match.
func (h *RecognitionHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	uploads := imageUploads(r)
	if len(uploads) == 0 {
		respondError(w, http.StatusBadRequest, "no image file provided")
		return
	}

	data, err := readUploadedFile(uploads[0])
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.service.Analyze(r.Context(), data)
	if err != nil {
		respondRecognitionError(w, err)
		return
	}

	faces := result.Faces
	if faces == nil {
		faces = []recognizer.FaceResult{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"faces":            faces,
		"total_faces":      result.TotalFaces,
		"recognized_faces": result.RecognizedFaces,
		"threshold":        h.service.Threshold(),
	})
}
