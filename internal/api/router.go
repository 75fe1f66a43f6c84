package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/api/recovery"
	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/observability"
)

// NewRouter registers the /ai routes and /metrics.
func NewRouter(h *Handler) *mux.Router {
	router := mux.NewRouter()
	router.Use(recovery.Middleware)
	router.Use(observability.Middleware)

	router.HandleFunc("/ai/generate", h.Generate).Methods(http.MethodPost)

	mem := router.PathPrefix("/ai/memory").Subrouter()
	mem.HandleFunc("/history", h.History).Methods(http.MethodPost)
	mem.HandleFunc("/stats", h.Stats).Methods(http.MethodPost)
	mem.HandleFunc("/summary", h.Summary).Methods(http.MethodPost)
	mem.HandleFunc("/key-facts", h.KeyFacts).Methods(http.MethodPost)
	mem.HandleFunc("/clear", h.Clear).Methods(http.MethodPost)
	mem.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	router.Handle("/metrics", observability.Handler()).Methods(http.MethodGet)
	return router
}
