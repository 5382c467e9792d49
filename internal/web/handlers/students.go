package handlers

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/upashthiti/upashthiti/internal/registry"
)

// StudentsHandler handles registered-student endpoints.
type StudentsHandler struct {
	registry *registry.Registry
}

// NewStudentsHandler creates a new students handler.
func NewStudentsHandler(reg *registry.Registry) *StudentsHandler {
	return &StudentsHandler{registry: reg}
}

// studentInfo is the list representation of one enrolled student. The
// embedding itself is never exposed over the API.
type studentInfo struct {
	Name         string    `json:"name"`
	StudentID    string    `json:"student_id,omitempty"`
	RegisteredAt time.Time `json:"registered_at"`
}

// List returns every enrolled student.
func (h *StudentsHandler) List(w http.ResponseWriter, r *http.Request) {
	entries := h.registry.All()

	students := make([]studentInfo, 0, len(entries))
	for _, e := range entries {
		students = append(students, studentInfo{
			Name:         e.Name,
			StudentID:    e.Record.StudentID,
			RegisteredAt: e.Record.RegisteredAt,
		})
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"students": students,
		"total":    len(students),
	})
}

// Delete removes an enrolled student by name.
func (h *StudentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	if err := h.registry.Remove(name); err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			respondError(w, http.StatusNotFound, fmt.Sprintf("student %q not found", name))
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	log.Printf("removed student %s", sanitizeForLog(name))
	respondJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Student %s removed", name),
	})
}
