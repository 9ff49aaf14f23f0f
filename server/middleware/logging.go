package middleware

import (
	"net/http"
	"time"

	"github.com/kbukum/changefeed/logger"
)

// RequestLogger logs every request with method, path, status, response
// size and duration. /health is skipped. A change stream is logged once,
// when it ends.
func RequestLogger(log *logger.Logger) Middleware {
	log = logger.OrNop(log)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rw := record(w)
			next.ServeHTTP(rw, r)
			status := rw.Status()

			fields := logger.Fields(
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", rw.bytes,
				logger.FieldDuration, time.Since(start).Milliseconds(),
			)
			if id := RequestIDFrom(r.Context()); id != "" {
				fields[logger.FieldRequestID] = id
			}

			switch {
			case status >= 500:
				log.Error("Request completed", fields)
			case status >= 400:
				log.Warn("Request completed", fields)
			default:
				log.Debug("Request completed", fields)
			}
		})
	}
}
