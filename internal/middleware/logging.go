package middleware

import (
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Logging is a middleware that logs requests as structured JSON including request id, status and latency.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Info().Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Str("request_id", GetRequestID(r.Context())).
			Dur("latency", time.Since(start)).
			Msg("request completed")
	})
}
