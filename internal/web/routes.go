package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/upashthiti/upashthiti/internal/ledger"
	"github.com/upashthiti/upashthiti/internal/recognizer"
	"github.com/upashthiti/upashthiti/internal/registry"
	"github.com/upashthiti/upashthiti/internal/web/handlers"
)

func (s *Server) setupRoutes(svc *recognizer.Service, reg *registry.Registry, led *ledger.Ledger) {
	healthHandler := handlers.NewHealthHandler(svc, reg, led)
	recognitionHandler := handlers.NewRecognitionHandler(svc)
	studentsHandler := handlers.NewStudentsHandler(reg)
	attendanceHandler := handlers.NewAttendanceHandler(led)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.Get)

		// Enrollment & recognition
		r.Post("/register", recognitionHandler.Register)
		r.Post("/analyze", recognitionHandler.Analyze)

		// Students
		r.Get("/students", studentsHandler.List)
		r.Delete("/students/{name}", studentsHandler.Delete)

		// Attendance
		r.Get("/attendance", attendanceHandler.List)
		r.Get("/attendance/summary", attendanceHandler.Summary)
	})
}
