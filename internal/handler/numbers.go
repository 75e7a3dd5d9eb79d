package handler

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"average-calculator/internal/metrics"
	"average-calculator/internal/middleware"
	"average-calculator/internal/repository"
	"average-calculator/internal/service"
)

// NumbersService is the orchestration the handler depends on.
type NumbersService interface {
	Get(ctx context.Context, category string) (service.Result, error)
}

// NumbersHandler serves GET /numbers/{category}.
type NumbersHandler struct {
	svc     NumbersService
	metrics *metrics.Registry
}

func NewNumbersHandler(svc NumbersService, m *metrics.Registry) *NumbersHandler {
	return &NumbersHandler{svc: svc, metrics: m}
}

func (h *NumbersHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	category := mux.Vars(r)["category"]

	res, err := h.svc.Get(r.Context(), category)
	if err != nil {
		if e, ok := service.AsError(err); ok && e == service.ErrInvalidCategory {
			h.metrics.Requests.WithLabelValues("invalid", "invalid_category").Inc()
			writeError(w, http.StatusBadRequest, e.Code, e.Message)
			return
		}
		h.metrics.Requests.WithLabelValues(repository.Category(category).Name(), "error").Inc()
		log.Error().Err(err).
			Str("category", category).
			Str("request_id", middleware.GetRequestID(r.Context())).
			Msg("number request failed")
		writeError(w, http.StatusInternalServerError, "internal", "internal server error")
		return
	}

	h.metrics.Requests.WithLabelValues(repository.Category(category).Name(), "ok").Inc()
	writeJSON(w, http.StatusOK, res)
}
