package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"average-calculator/internal/repository"
)

func TestHTTPFetcher_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/primes", r.URL.Path)
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"numbers":[2,3,5,7,11]}`))
	}))
	defer server.Close()

	f := NewHTTPFetcher(server.URL+"/", "secret-token", time.Second, nil)
	res := f.Fetch(context.Background(), repository.Prime)

	require.True(t, res.OK(), "reason %q", res.Reason)
	assert.Equal(t, []int64{2, 3, 5, 7, 11}, res.Numbers)
}

func TestHTTPFetcher_Endpoints(t *testing.T) {
	var (
		mu    sync.Mutex
		paths []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		w.Write([]byte(`{"numbers":[]}`))
	}))
	defer server.Close()

	f := NewHTTPFetcher(server.URL, "", time.Second, nil)
	for _, c := range repository.Categories {
		f.Fetch(context.Background(), c)
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"/primes", "/fibo", "/even", "/rand"}, paths)
}

func TestHTTPFetcher_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   FetchReason
	}{
		{"server error", http.StatusInternalServerError, `{"numbers":[1]}`, ReasonUnavailable},
		{"unauthorized", http.StatusUnauthorized, `{"message":"token expired"}`, ReasonUnavailable},
		{"invalid json", http.StatusOK, `{"numbers":[1,`, ReasonMalformed},
		{"wrong field type", http.StatusOK, `{"numbers":"1,2"}`, ReasonMalformed},
		{"non numeric element", http.StatusOK, `{"numbers":[1,"2"]}`, ReasonMalformed},
		{"array payload", http.StatusOK, `[1,2,3]`, ReasonMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			res := NewHTTPFetcher(server.URL, "", time.Second, nil).Fetch(context.Background(), repository.Even)

			assert.Equal(t, tt.want, res.Reason)
			assert.NotNil(t, res.Numbers)
			assert.Empty(t, res.Numbers)
		})
	}
}

func TestHTTPFetcher_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
		w.Write([]byte(`{"numbers":[1]}`))
	}))
	defer server.Close()
	defer close(release)

	res := NewHTTPFetcher(server.URL, "", 50*time.Millisecond, nil).Fetch(context.Background(), repository.Random)

	assert.Equal(t, ReasonTimeout, res.Reason)
	assert.Empty(t, res.Numbers)
}

func TestHTTPFetcher_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	res := NewHTTPFetcher(url, "", time.Second, nil).Fetch(context.Background(), repository.Prime)

	assert.Equal(t, ReasonUnavailable, res.Reason)
}

func TestHTTPFetcher_CircuitOpensAfterFailures(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	clock := clockwork.NewFakeClock()
	pool := NewCircuitBreakerPool(2, time.Minute, clock)
	f := NewHTTPFetcher(server.URL, "", time.Second, pool)

	assert.Equal(t, ReasonUnavailable, f.Fetch(context.Background(), repository.Prime).Reason)
	assert.Equal(t, ReasonUnavailable, f.Fetch(context.Background(), repository.Prime).Reason)
	assert.Equal(t, ReasonCircuitOpen, f.Fetch(context.Background(), repository.Prime).Reason)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))

	// other categories have their own breaker
	assert.Equal(t, ReasonUnavailable, f.Fetch(context.Background(), repository.Even).Reason)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestParseNumbers(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    []int64
		wantErr bool
	}{
		{"integers", `{"numbers":[1,2,3]}`, []int64{1, 2, 3}, false},
		{"duplicates kept", `{"numbers":[4,4]}`, []int64{4, 4}, false},
		{"negative", `{"numbers":[-7]}`, []int64{-7}, false},
		{"missing field", `{"other":true}`, []int64{}, false},
		{"null field", `{"numbers":null}`, []int64{}, false},
		{"empty array", `{"numbers":[]}`, []int64{}, false},
		{"integer valued float", `{"numbers":[2.0,4]}`, []int64{2, 4}, false},
		{"exponent", `{"numbers":[1e2,-3E1]}`, []int64{100, -30}, false},
		{"fraction", `{"numbers":[1.5]}`, nil, true},
		{"beyond int64", `{"numbers":[1e30]}`, nil, true},
		{"int64 overflow literal", `{"numbers":[9223372036854775808]}`, nil, true},
		{"object field", `{"numbers":{"a":1}}`, nil, true},
		{"not json", `numbers`, nil, true},
		{"empty body", ``, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseNumbers([]byte(tt.body))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
