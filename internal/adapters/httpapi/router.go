package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type RouterOptions struct {
	// AuthMiddleware wraps every endpoint except /healthz.
	AuthMiddleware func(http.Handler) http.Handler
}

// NewRouter constructs the API HTTP router. This is a thin adapter: it wires
// routes and middleware and delegates all semantics to the Server handlers.
func NewRouter(s *Server, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Health endpoint is unauthenticated, for infra checks only.
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Group(func(r chi.Router) {
		if opts.AuthMiddleware != nil {
			r.Use(opts.AuthMiddleware)
		}

		r.Post("/projects", s.handleCreateProject)
		r.Post("/projects/join", s.handleJoinProject)
		r.Get("/projects/mine", s.handleMyProject)

		r.Route("/projects/{projectID}", func(r chi.Router) {
			r.Delete("/", s.handleDeleteProject)
			r.Post("/leave", s.handleLeaveProject)

			r.Post("/trips", s.handleRecordTrip)
			r.Get("/trips", s.handleListTrips)
			r.Post("/trips/validate", s.handleValidateTrip)
			r.Get("/trips/last", s.handleLastTrip)

			r.Post("/tickets", s.handleRecordTicket)
			r.Get("/tickets", s.handleListTickets)

			r.Get("/allocation", s.handleAllocation)
			r.Get("/export", s.handleExport)
			r.Get("/chart", s.handleChart)
		})
	})

	return r
}
