package handler

import (
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter mounts every endpoint of the service.
func NewRouter(numbers *NumbersHandler, admin *AdminHandler, health *HealthHandler, metrics http.Handler) *mux.Router {
	r := mux.NewRouter()
	r.Handle("/numbers/{category}", numbers).Methods(http.MethodGet)
	r.Handle("/windows", admin).Methods(http.MethodGet)
	r.HandleFunc("/health", health.Liveness).Methods(http.MethodGet)
	r.HandleFunc("/ready", health.Readiness).Methods(http.MethodGet)
	r.HandleFunc("/status", health.Status).Methods(http.MethodGet)
	r.Handle("/metrics", metrics).Methods(http.MethodGet)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "no such endpoint")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})
	return r
}
