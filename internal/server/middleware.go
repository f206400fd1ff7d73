package server

import (
	"log/slog"
	"net/http"
	"strings"
	"time"
)

func withMiddleware(h http.Handler, logger *slog.Logger, ready <-chan struct{}) http.Handler {
	return securityHeaders(requestLogger(waitForData(h, ready), logger))
}

// waitForData answers 503 until the first poll round has finished. Static
// assets, health and metrics pass through.
func waitForData(next http.Handler, ready <-chan struct{}) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ready:
			next.ServeHTTP(w, r)
			return
		default:
		}

		p := r.URL.Path
		if strings.HasPrefix(p, "/static/") || quietPaths[p] {
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("Retry-After", "5")
		if strings.HasPrefix(p, "/api/") || strings.HasPrefix(p, "/sse/") {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"first poll round in progress"}`))
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(loadingPage))
	})
}

const loadingPage = `<!DOCTYPE html>
<html lang="en"><head><meta charset="utf-8">
<meta http-equiv="refresh" content="5">
<title>ETA sensors</title>
<link rel="stylesheet" href="/static/status.css">
</head><body><main role="status">
<h1>ETA sensors</h1>
<p class="empty">Waiting for the first poll round. This page refreshes every 5 seconds.</p>
</main></body></html>`

// quietPaths are polled by probes and scrapers; they log at debug.
var quietPaths = map[string]bool{"/healthz": true, "/metrics": true}

func requestLogger(next http.Handler, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") == "text/event-stream" {
			next.ServeHTTP(w, r)
			return
		}
		rw := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		began := time.Now()
		next.ServeHTTP(rw, r)

		level := slog.LevelInfo
		if quietPaths[r.URL.Path] && rw.status < 400 {
			level = slog.LevelDebug
		}
		logger.Log(r.Context(), level, "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.status,
			"bytes", rw.bytes,
			"took", time.Since(began).Round(time.Microsecond),
		)
	})
}

var responseHeaders = [][2]string{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"Referrer-Policy", "same-origin"},
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, kv := range responseHeaders {
			w.Header().Set(kv[0], kv[1])
		}
		next.ServeHTTP(w, r)
	})
}

// staticCacheHandler marks fingerprinted asset URLs (?v=) as immutable.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Has("v") {
			w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		}
		next.ServeHTTP(w, r)
	})
}

// responseRecorder captures the status code and body size for the access log.
type responseRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (rw *responseRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseRecorder) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += n
	return n, err
}

func (rw *responseRecorder) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
