package middleware

import (
	"encoding/json"
	"net/http"
	"runtime/debug"

	"github.com/rs/zerolog/log"
)

// Recover turns a panic in any handler into a generic 500 JSON response.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			log.Error().
				Interface("panic", rec).
				Str("path", r.URL.Path).
				Str("request_id", GetRequestID(r.Context())).
				Bytes("stack", debug.Stack()).
				Msg("handler panicked")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(map[string]string{
				"error": "internal server error",
				"code":  "internal",
			})
		}()
		next.ServeHTTP(w, r)
	})
}
