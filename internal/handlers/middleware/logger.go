package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

type logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type responseMeta struct {
	status int
	size   int
}

type metaWriter struct {
	http.ResponseWriter
	meta responseMeta
}

func (w *metaWriter) Write(p []byte) (int, error) {
	n, err := w.ResponseWriter.Write(p)
	w.meta.size += n
	return n, err
}

func (w *metaWriter) WriteHeader(statusCode int) {
	w.ResponseWriter.WriteHeader(statusCode)
	w.meta.status = statusCode
}

// LoggerMiddleware logs one line per handled request. Server errors go
// to the error level, rejected requests to warn, everything else to
// info. The caller id is attached when the identity header carries one.
func LoggerMiddleware(l logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			mw := &metaWriter{
				ResponseWriter: w,
				meta:           responseMeta{status: http.StatusOK},
			}

			next.ServeHTTP(mw, r)

			args := []any{
				"method", r.Method,
				"uri", r.RequestURI,
				"duration", time.Since(start),
				"status", mw.meta.status,
				"size", mw.meta.size,
			}
			if userID, err := uuid.Parse(r.Header.Get(UserIDHeader)); err == nil {
				args = append(args, "user_id", userID)
			}

			switch {
			case mw.meta.status >= http.StatusInternalServerError:
				l.Error("request failed", args...)
			case mw.meta.status >= http.StatusBadRequest:
				l.Warn("request rejected", args...)
			default:
				l.Info("request handled", args...)
			}
		})
	}
}
