package repository

import (
	"context"
	"errors"
)

// Category identifies one of the fixed number classes tracked by the store.
type Category string

const (
	Prime     Category = "p"
	Fibonacci Category = "f"
	Even      Category = "e"
	Random    Category = "r"
)

// Categories lists every valid category in a stable order.
var Categories = []Category{Prime, Fibonacci, Even, Random}

var categoryInfo = map[Category]struct {
	name     string
	endpoint string
}{
	Prime:     {name: "prime", endpoint: "primes"},
	Fibonacci: {name: "fibonacci", endpoint: "fibo"},
	Even:      {name: "even", endpoint: "even"},
	Random:    {name: "random", endpoint: "rand"},
}

// ErrInvalidCategory is returned for keys outside the fixed category set.
var ErrInvalidCategory = errors.New("invalid category")

// ParseCategory validates a raw key such as "p" or "r".
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.Valid() {
		return "", ErrInvalidCategory
	}
	return c, nil
}

// Valid reports whether c is one of the fixed categories.
func (c Category) Valid() bool {
	_, ok := categoryInfo[c]
	return ok
}

// Name returns the human readable name, e.g. "prime".
func (c Category) Name() string {
	return categoryInfo[c].name
}

// Endpoint returns the upstream path segment serving this category.
func (c Category) Endpoint() string {
	return categoryInfo[c].endpoint
}

// Store owns one bounded, duplicate-free window per category. Implementations must be
// concurrency-safe: merges into the same category serialize, different categories do not contend.
type Store interface {
	// MergeAndSnapshot appends the values of incoming not yet present, trims the window to its
	// capacity keeping the newest values, and returns copies of the window before and after.
	MergeAndSnapshot(ctx context.Context, c Category, incoming []int64) (prev, curr []int64, err error)

	// Window returns a copy of the current window.
	Window(ctx context.Context, c Category) ([]int64, error)

	// Average returns the mean of the current window, or 0 when it is empty.
	Average(ctx context.Context, c Category) (float64, error)

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
}

// Mean returns the arithmetic mean of values, or 0 for an empty slice.
func Mean(values []int64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += float64(v)
	}
	return sum / float64(len(values))
}
