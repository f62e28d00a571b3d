package proxy

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// withLogging must sit inside the chi router; the route pattern is only
// known there once next has returned.
func withLogging(logger *zap.Logger, m *metrics, next http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		route := "proxy"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		if m != nil {
			m.requests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		}
		logger.Debug("REQ",
			zap.String("method", r.Method),
			zap.String("url", r.URL.String()),
			zap.String("route", route),
			zap.Int("status", rec.status),
			zap.Int("bytes", rec.bytes),
			zap.Duration("took", time.Since(start)),
			zap.String("ua", r.UserAgent()),
			zap.String("from", r.RemoteAddr),
		)
	})
}
