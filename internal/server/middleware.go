package server

import (
	"bufio"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"unitdeck/internal/metrics"
	"unitdeck/pkg/logx"
)

// statusWriter records the response code for logging and metrics. It
// passes Hijack through so the websocket upgrade keeps working behind
// the middleware.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	return h.Hijack()
}

// instrument tags every request with an id, logs the outcome and
// feeds the request counter. route is the registered pattern, so the
// metric label stays low-cardinality.
func (s *Server) instrument(route string, h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := uuid.NewString()
		w.Header().Set("X-Request-ID", id)

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		h(sw, r)

		metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(sw.status)).Inc()
		emit := s.log.Debug
		if sw.status >= http.StatusInternalServerError {
			emit = s.log.Warn
		}
		emit("http request",
			logx.String("method", r.Method),
			logx.String("path", r.URL.Path),
			logx.Int("status", sw.status),
			logx.Duration("took", time.Since(start)),
			logx.String("request_id", id),
			logx.String("remote", r.RemoteAddr),
		)
	})
}

// limited gates mutating routes behind the shared token bucket.
func (s *Server) limited(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded", Kind: "rate_limited"})
			return
		}
		h(w, r)
	}
}
