package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/rov.teleop/internal/monitoring"
)

const (
	colorReset     = "\033[0m"
	colorCyan      = "\033[36m"
	colorYellow    = "\033[33m"
	colorBoldGreen = "\033[1;32m"
	colorBoldRed   = "\033[1;31m"
)

// statusRecorder remembers the status code a handler wrote.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func statusCodeColor(code int) string {
	var color string
	switch {
	case code >= 400:
		color = colorBoldRed
	case code >= 300:
		color = colorYellow
	case code >= 200:
		color = colorBoldGreen
	default:
		return strconv.Itoa(code)
	}
	return color + strconv.Itoa(code) + colorReset
}

// LoggingMiddleware logs one colorized line per request: status, method,
// URI and elapsed milliseconds.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		elapsed := float64(time.Since(start).Microseconds()) / 1e3
		monitoring.Logf("[%s] %s %s%s%s %.3fms",
			statusCodeColor(rec.status), r.Method, colorCyan, r.RequestURI, colorReset, elapsed)
	})
}
