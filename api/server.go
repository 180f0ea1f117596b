/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/allocations/*    Allocation scheduling
  /api/absences/*       Absence management with conflict detection
  /api/conflicts/*      Conflict inbox and resolution
  /api/availability/*   Capacity and utilization queries
  /api/employees/*      Employee management
  /api/phases/*         Project phase management
  /api/scenarios/*      Demo scenario

SECURITY NOTE:
  No authentication middleware currently. Tenant context comes from the
  X-Tenant-ID header; an upstream gateway is expected to establish it.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Tenant-ID"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Allocation routes
		r.Route("/allocations", func(r chi.Router) {
			r.Get("/", h.ListAllocations)
			r.Post("/", h.CreateAllocation)
			r.Post("/{id}/move", h.MoveAllocation)
			r.Delete("/{id}", h.DeleteAllocation)
		})

		// Absence routes
		r.Route("/absences", func(r chi.Router) {
			r.Post("/", h.CreateAbsence)
			r.Put("/{id}", h.UpdateAbsence)
			r.Delete("/{id}", h.DeleteAbsence)
		})

		// Conflict routes
		r.Route("/conflicts", func(r chi.Router) {
			r.Get("/", h.ListConflicts)
			r.Post("/{id}/resolve", h.ResolveConflict)
		})

		// Availability routes
		r.Route("/availability", func(r chi.Router) {
			r.Get("/", h.GetAvailability)
			r.Get("/available", h.GetAvailableUsers)
			r.Get("/overloaded", h.GetOverloadedUsers)
			r.Get("/users/{id}", h.GetUserAvailability)
		})

		// Entity routes
		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.Post("/", h.SaveEmployee)
		})
		r.Route("/phases", func(r chi.Router) {
			r.Get("/", h.ListPhases)
			r.Post("/", h.SavePhase)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Post("/load", h.LoadScenario)
		})
	})

	// Minimal landing page so a browser hit is not a 404.
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Crew Planner</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Crew Planner API</h1>
<p>Requests need an <code>X-Tenant-ID</code> header.</p>
<h2>API Endpoints</h2>
<ul>
<li><code>/api/allocations?from=&amp;to=</code> - List allocations</li>
<li><code>/api/conflicts</code> - Open absence conflicts</li>
<li><code>/api/availability?from=&amp;to=</code> - Availability context</li>
<li><code>/api/employees</code> - List employees</li>
<li><code>/api/phases</code> - List phases</li>
</ul>
</body>
</html>`))
	})

	return r
}
