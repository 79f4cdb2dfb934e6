package handlers

import (
	"net/http"

	"dealscout/config"
	"dealscout/middleware"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

// NewRouter wires the API routes, middleware and CORS policy
func NewRouter(h *Handlers, cfg config.ServerConfig) http.Handler {
	r := mux.NewRouter()

	r.Use(middleware.LoggingMiddleware)
	r.Use(middleware.RateLimitMiddleware(cfg.RateLimit))

	r.HandleFunc("/health", h.HealthCheck).Methods("GET")

	apiV1 := r.PathPrefix("/api/v1").Subrouter()
	apiV1.Use(middleware.APIKeyMiddleware(cfg.APIKey))

	apiV1.HandleFunc("/search", h.Search).Methods("POST")
	apiV1.HandleFunc("/search/async", h.SearchAsync).Methods("POST")

	// stats is registered first so it isn't captured as a task ID
	apiV1.HandleFunc("/tasks/stats", h.GetTaskStats).Methods("GET")
	apiV1.HandleFunc("/tasks/{taskId}", h.GetTaskStatus).Methods("GET")

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	return c.Handler(r)
}
