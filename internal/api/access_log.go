package api

import (
	"bufio"
	"net"
	"net/http"
	"time"

	"grimm.is/headmod/internal/logging"
	"grimm.is/headmod/internal/metrics"
)

// accessLogWriter wraps http.ResponseWriter to capture the status code
type accessLogWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (rw *accessLogWriter) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}

func (rw *accessLogWriter) Write(b []byte) (int, error) {
	if rw.status == 0 {
		rw.status = http.StatusOK
	}
	size, err := rw.ResponseWriter.Write(b)
	rw.size += size
	return size, err
}

func (rw *accessLogWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	return h.Hijack()
}

// AccessLogger middleware logs all HTTP requests and feeds the API metrics.
func AccessLogger(logger *logging.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &accessLogWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(rw, r)

		duration := time.Since(start)
		metrics.Get().RecordAPIRequest(r.Method, r.URL.Path, rw.status, duration.Seconds())

		logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"ip", getClientIP(r),
			"status", rw.status,
			"size", rw.size,
			"duration", duration,
		)
	})
}
