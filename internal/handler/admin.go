package handler

import (
	"net/http"

	"average-calculator/internal/repository"
	"average-calculator/internal/service"
)

// WindowView describes one category window for operators.
type WindowView struct {
	Name    string  `json:"name"`
	Window  []int64 `json:"window"`
	Avg     float64 `json:"avg"`
	Circuit string  `json:"circuit,omitempty"`
}

// AdminHandler exposes a read-only view of every category window.
type AdminHandler struct {
	store    repository.Store
	breakers *service.CircuitBreakerPool
}

// NewAdminHandler builds the handler; breakers may be nil.
func NewAdminHandler(s repository.Store, breakers *service.CircuitBreakerPool) *AdminHandler {
	return &AdminHandler{store: s, breakers: breakers}
}

// ServeHTTP lists windows keyed by category key.
func (a *AdminHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var states map[string]service.CircuitState
	if a.breakers != nil {
		states = a.breakers.States()
	}

	out := make(map[string]WindowView, len(repository.Categories))
	for _, c := range repository.Categories {
		values, err := a.store.Window(r.Context(), c)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal", "failed to read windows")
			return
		}
		avg, err := a.store.Average(r.Context(), c)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal", "failed to read windows")
			return
		}
		out[string(c)] = WindowView{
			Name:    c.Name(),
			Window:  values,
			Avg:     avg,
			Circuit: string(states[c.Name()]),
		}
	}
	writeJSON(w, http.StatusOK, out)
}
