package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"average-calculator/internal/metrics"
	"average-calculator/internal/repository"
)

// Result is the payload returned for one number request.
type Result struct {
	WindowPrevState []int64 `json:"windowPrevState"`
	WindowCurrState []int64 `json:"windowCurrState"`
	Numbers         []int64 `json:"numbers"`
	Avg             float64 `json:"avg"`
}

// Numbers fetches fresh numbers for a category and folds them into its window,
// but only when the fetch finished within budget.
type Numbers struct {
	store   repository.Store
	fetcher Fetcher
	budget  time.Duration
	clock   clockwork.Clock
	metrics *metrics.Registry
}

// NewNumbers constructs the orchestrator. budget is compared against the measured
// fetch duration after the call returns.
func NewNumbers(s repository.Store, f Fetcher, budget time.Duration, clock clockwork.Clock, m *metrics.Registry) *Numbers {
	return &Numbers{store: s, fetcher: f, budget: budget, clock: clock, metrics: m}
}

// Get serves one request for the category key. An unknown key yields ErrInvalidCategory
// before the upstream or the store is touched.
func (n *Numbers) Get(ctx context.Context, key string) (Result, error) {
	c, err := repository.ParseCategory(key)
	if err != nil {
		return Result{}, ErrInvalidCategory
	}

	start := n.clock.Now()
	res := n.fetcher.Fetch(ctx, c)
	elapsed := n.clock.Since(start)

	outcome := "ok"
	if !res.OK() {
		outcome = string(res.Reason)
	}
	n.metrics.Fetches.WithLabelValues(c.Name(), outcome).Inc()
	n.metrics.FetchDuration.WithLabelValues(c.Name()).Observe(elapsed.Seconds())

	var prev, curr []int64
	if elapsed <= n.budget {
		prev, curr, err = n.store.MergeAndSnapshot(ctx, c, res.Numbers)
		if err != nil {
			return Result{}, fmt.Errorf("merge %s window: %w", c.Name(), err)
		}
	} else {
		n.metrics.BudgetExceeded.WithLabelValues(c.Name()).Inc()
		log.Debug().
			Str("category", c.Name()).
			Dur("elapsed", elapsed).
			Dur("budget", n.budget).
			Int("received", len(res.Numbers)).
			Msg("fetch exceeded budget, discarding numbers")
		curr, err = n.store.Window(ctx, c)
		if err != nil {
			return Result{}, fmt.Errorf("read %s window: %w", c.Name(), err)
		}
		prev = make([]int64, len(curr))
		copy(prev, curr)
	}
	n.metrics.WindowSize.WithLabelValues(c.Name()).Set(float64(len(curr)))

	numbers := res.Numbers
	if numbers == nil {
		numbers = []int64{}
	}
	return Result{
		WindowPrevState: prev,
		WindowCurrState: curr,
		Numbers:         numbers,
		Avg:             round2(repository.Mean(curr)),
	}, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
