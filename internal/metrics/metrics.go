package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry owns the service collectors on a private prometheus.Registry, so several
// instances (one per test) can coexist.
type Registry struct {
	reg *prometheus.Registry

	Requests       *prometheus.CounterVec
	Fetches        *prometheus.CounterVec
	FetchDuration  *prometheus.HistogramVec
	BudgetExceeded *prometheus.CounterVec
	WindowSize     *prometheus.GaugeVec
	RateLimited    prometheus.Counter
}

func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "average_calculator_requests_total",
			Help: "Number requests by category and outcome",
		}, []string{"category", "status"}),
		Fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "average_calculator_fetch_total",
			Help: "Upstream fetches by category and outcome",
		}, []string{"category", "outcome"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "average_calculator_fetch_duration_seconds",
			Help:    "Wall-clock duration of upstream fetches",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"category"}),
		BudgetExceeded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "average_calculator_budget_exceeded_total",
			Help: "Fetches discarded because they finished after the time budget",
		}, []string{"category"}),
		WindowSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "average_calculator_window_size",
			Help: "Current number of values held in a category window",
		}, []string{"category"}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "average_calculator_rate_limited_total",
			Help: "Total rate limited responses",
		}),
	}
	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.Requests, r.Fetches, r.FetchDuration, r.BudgetExceeded, r.WindowSize, r.RateLimited,
	)
	return r
}

func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
