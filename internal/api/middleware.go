package api

import (
	"crypto/subtle"
	"net/http"
	"time"

	"wcpickem/ingestion/internal/apperror"
	"wcpickem/ingestion/internal/auth"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

// requestLogger logs one line per request
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Str("request_id", middleware.GetReqID(r.Context())).
			Dur("duration", time.Since(start)).
			Msg("Request completed")
	})
}

// requireSecret accepts a request whose bearer token equals one of secrets.
// With no secrets configured every request is accepted.
func requireSecret(secrets []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(secrets) == 0 {
				next.ServeHTTP(w, r)
				return
			}

			token := []byte(auth.BearerToken(r))
			for _, s := range secrets {
				if len(token) > 0 && subtle.ConstantTimeCompare(token, []byte(s)) == 1 {
					next.ServeHTTP(w, r)
					return
				}
			}

			writeError(w, apperror.Unauthorized("invalid trigger secret"))
		})
	}
}
