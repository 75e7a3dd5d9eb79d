package main

import (
	"encoding/json"
	"math/rand"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Fake upstream test server for running the calculator locally. Handlers share
// the locked package-level math/rand source.
// UPSTREAM_DELAY (e.g. "700ms") slows every answer to exercise the time budget.
// UPSTREAM_TOKEN, when set, is required as a bearer token.
func main() {
	addr := os.Getenv("UPSTREAM_ADDR")
	if addr == "" {
		addr = ":8081"
	}
	var delay time.Duration
	if v := os.Getenv("UPSTREAM_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid UPSTREAM_DELAY")
		}
		delay = d
	}
	token := os.Getenv("UPSTREAM_TOKEN")

	serve := func(gen func() []int64) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if token != "" && strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ") != token {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			time.Sleep(delay)
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string][]int64{"numbers": gen()})
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/primes", serve(primes))
	mux.HandleFunc("/fibo", serve(fibonacci))
	mux.HandleFunc("/even", serve(evens))
	mux.HandleFunc("/rand", serve(randoms))

	log.Info().Str("addr", addr).Dur("delay", delay).Msg("upstream test server listening")
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}

func primes() []int64 {
	start := int64(rand.Intn(50))
	var out []int64
	for n := start; len(out) < 5; n++ {
		if isPrime(n) {
			out = append(out, n)
		}
	}
	return out
}

func isPrime(n int64) bool {
	if n < 2 {
		return false
	}
	for d := int64(2); d*d <= n; d++ {
		if n%d == 0 {
			return false
		}
	}
	return true
}

func fibonacci() []int64 {
	n := 5 + rand.Intn(10)
	out := []int64{1, 1}
	for len(out) < n {
		out = append(out, out[len(out)-1]+out[len(out)-2])
	}
	return out
}

func evens() []int64 {
	start := int64(rand.Intn(20)) * 2
	out := make([]int64, 5)
	for i := range out {
		out[i] = start + int64(i)*2
	}
	return out
}

func randoms() []int64 {
	out := make([]int64, 5)
	for i := range out {
		out[i] = rand.Int63n(100)
	}
	return out
}
