package handler

import (
	"net/http"

	"github.com/Shivanand-hulikatti/talk-lectures/internal/auth"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// NewRouter builds the full HTTP surface.
func NewRouter(requests *RequestHandler, lectures *LectureHandler, authn auth.Authenticator) http.Handler {
	r := chi.NewRouter()

	// Global middleware stack
	r.Use(chimiddleware.Recoverer) // recover from panics, return 500
	r.Use(chimiddleware.RequestID) // attach request IDs
	r.Use(chimiddleware.RealIP)    // trust X-Forwarded-For
	r.Use(Logger)                  // access log
	r.Use(CORS)                    // permissive CORS, bearer auth only

	// Health
	r.Get("/health", HealthCheck)

	adminOnly := RequireRole(auth.RoleAdmin)

	r.Group(func(r chi.Router) {
		r.Use(Authenticate(authn))

		r.Route("/requests", func(r chi.Router) {
			r.Post("/", requests.Create)
			r.Get("/", requests.List)
			r.Get("/{id}", requests.Get)
			r.With(adminOnly).Post("/{id}/approve", requests.Approve)
			r.With(adminOnly).Post("/{id}/reject", requests.Reject)
		})

		r.Route("/lectures", func(r chi.Router) {
			r.With(adminOnly).Post("/", lectures.Create)
			r.Get("/", lectures.List)
			r.Get("/{id}", lectures.Get)
			r.Post("/{id}/register", lectures.Register)
			r.Delete("/{id}/register", lectures.Unregister)
			r.Get("/{id}/attendees", lectures.Attendees)
			r.With(adminOnly).Post("/{id}/status", lectures.SetStatus)
			r.With(adminOnly).Post("/{id}/cancel", lectures.Cancel)
			r.Put("/{id}/recording", lectures.AttachRecording)
		})
	})

	return r
}
