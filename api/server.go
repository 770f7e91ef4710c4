/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. CORS:          Cross-origin requests for the frontend
  2. RequestLogger: httplog structured request logging (ECS schema)
  3. CleanPath:     Collapse double slashes
  4. Recoverer:     Panic recovery (500 instead of crash)
  5. RequestID:     Unique ID per request for tracing
  6. Heartbeat:     GET /healthz

ROUTE GROUPS:
  /api/login        Public
  /api/me/*         Any signed-in user (jwtauth Verifier + AuthRequired)
  /api/admin/*      Admin role only

SEE ALSO:
  - handlers.go: Handler implementations
  - middleware.go: AuthRequired, RequireRole
  - cmd/server/main.go: Server startup
*/
package api

import (
	"io"
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
	"github.com/go-chi/jwtauth/v5"
	"github.com/warp/leave-dashboard/ledger"
)

// DefaultOrigins are allowed when no CORS origins are configured.
var DefaultOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

// NewLogger returns a JSON slog logger using the ECS field schema.
func NewLogger(w io.Writer, level slog.Level, env string) *slog.Logger {
	logFormat := httplog.SchemaECS.Concise(false)
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: logFormat.ReplaceAttr,
	})).With(
		slog.String("app", "leave-dashboard"),
		slog.String("env", env),
	)
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, origins []string) *chi.Mux {
	if len(origins) == 0 {
		origins = DefaultOrigins
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(httplog.RequestLogger(h.Logger, &httplog.Options{
		Level:  slog.LevelDebug,
		Schema: httplog.SchemaECS,
	}))
	r.Use(middleware.CleanPath)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Heartbeat("/healthz"))

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", h.Login)

		// Requires authentication
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(h.Tokens.JWTAuth()))
			r.Use(AuthRequired)

			r.Route("/me", func(r chi.Router) {
				r.Get("/", h.GetMe)
				r.Post("/leave", h.ApplyLeave)
				r.Get("/history", h.GetHistory)
			})

			// Admin only
			r.Route("/admin", func(r chi.Router) {
				r.Use(RequireRole(ledger.RoleAdmin))

				r.Get("/summary", h.GetSummary)
				r.Get("/employees", h.ListEmployees)
				r.Get("/attendance", h.GetAttendance)
				r.Get("/balances", h.ListBalances)
				r.Get("/reports/balances.pdf", h.BalancesReport)

				r.Route("/requests", func(r chi.Router) {
					r.Get("/pending", h.ListPendingRequests)
					r.Post("/{id}/approve", h.ApproveRequest)
					r.Post("/{id}/reject", h.RejectRequest)
				})
			})
		})
	})

	return r
}
