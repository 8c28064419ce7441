package middleware

import (
	"net/http"

	"github.com/footfall-labs/footfall/internal/usecase"
)

// Track is a middleware factory that records one traffic event per
// request on the wrapped route, after the handler has produced its
// response, so the event carries the final status code. The recorder
// swallows its own failures, so this never affects the response.
func Track(recorder *usecase.Recorder, endpoint string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r)
			recorder.Record(r, endpoint, rw.statusCode)
		})
	}
}
