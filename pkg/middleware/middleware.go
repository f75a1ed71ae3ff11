package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/procflow-hq/procflow/pkg/composables"
)

// ProvidePool puts the database pool on every request context, so services
// can open transactions without being handed the pool explicitly.
func ProvidePool(pool *pgxpool.Pool) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(composables.WithPool(r.Context(), pool)))
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// RequestLogger tags each request with an id, injects a scoped log entry
// into the context and logs method, path, status and duration on completion.
func RequestLogger(logger *logrus.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			entry := logger.WithFields(logrus.Fields{
				"request_id": uuid.NewString(),
				"method":     r.Method,
				"path":       r.URL.Path,
			})

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r.WithContext(composables.WithLogger(r.Context(), entry)))

			entry.WithFields(logrus.Fields{
				"status":   sw.status,
				"duration": time.Since(start).String(),
			}).Info("request completed")
		})
	}
}
