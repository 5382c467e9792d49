package handlers

import (
	"net/http"
	"strconv"

	"github.com/upashthiti/upashthiti/internal/constants"
	"github.com/upashthiti/upashthiti/internal/ledger"
)

// AttendanceHandler handles attendance log endpoints.
type AttendanceHandler struct {
	ledger *ledger.Ledger
}

// NewAttendanceHandler creates a new attendance handler.
func NewAttendanceHandler(led *ledger.Ledger) *AttendanceHandler {
	return &AttendanceHandler{ledger: led}
}

// queryLimit parses the limit query parameter with a sane default.
func queryLimit(r *http.Request) int {
	s := r.URL.Query().Get("limit")
	if s == "" {
		return constants.DefaultAttendanceLimit
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return constants.DefaultAttendanceLimit
}

// List returns attendance events, optionally scoped to one date, truncated
// to the most recent N.
func (h *AttendanceHandler) List(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")

	events, skipped, err := h.ledger.Query(date)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	total := len(events)
	records := ledger.MostRecent(events, queryLimit(r))
	if records == nil {
		records = []ledger.Event{}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"records":       records,
		"total":         total,
		"skipped_lines": skipped,
	})
}

// Summary returns the distinct attendees and event count, optionally for a
// single date.
func (h *AttendanceHandler) Summary(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")

	events, _, err := h.ledger.Query(date)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	attendees := ledger.UniqueAttendees(events)
	if attendees == nil {
		attendees = []string{}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"date":           date,
		"total_events":   len(events),
		"attendees":      attendees,
		"attendee_count": len(attendees),
	})
}
