package api

import (
	"net/http"

	"github.com/Tymofiyyy/pocket/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter creates and configures the HTTP router for the ingestion
// server. The live dispatch feed is served by the worker process, not
// here.
func NewRouter(pgStore *store.PostgresStore, postback *PostbackHandler) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// CORS for the admin panel
	r.Use(corsMiddleware)

	queueHandler := NewQueueHandler(pgStore)
	logHandler := NewLogHandler(pgStore)
	statsHandler := NewStatsHandler(pgStore)
	eventHandler := NewEventHandler(pgStore)

	// Postback ingestion. The affiliate platform calls both verbs.
	r.Get("/postback", postback.Handle)
	r.Post("/postback", postback.Handle)

	// Read-only views for the admin dashboard
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", HealthHandler())
		r.Get("/queue", queueHandler.List)
		r.Get("/logs", logHandler.List)
		r.Get("/stats", statsHandler.Get)
		r.Get("/users/{userID}/events", eventHandler.ListForUser)
	})

	return r
}

// corsMiddleware adds CORS headers for the admin panel origin.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
