package server

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"etasensor/internal/lookup"
	"etasensor/internal/sensor"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
}

func TestWaitForData(t *testing.T) {
	ready := make(chan struct{})
	h := waitForData(okHandler(), ready)

	tests := []struct {
		path   string
		status int
		ctype  string
	}{
		{"/", http.StatusServiceUnavailable, "text/html; charset=utf-8"},
		{"/api/sensors", http.StatusServiceUnavailable, "application/json"},
		{"/sse/sensors/x", http.StatusServiceUnavailable, "application/json"},
		{"/static/status.css", http.StatusOK, ""},
		{"/healthz", http.StatusOK, ""},
		{"/metrics", http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest("GET", tt.path, nil))
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			if tt.ctype != "" && rec.Header().Get("Content-Type") != tt.ctype {
				t.Errorf("content type = %q, want %q", rec.Header().Get("Content-Type"), tt.ctype)
			}
		})
	}

	close(ready)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("after ready: status = %d, want 200", rec.Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	securityHeaders(okHandler()).ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	for _, h := range []string{"X-Content-Type-Options", "X-Frame-Options", "Referrer-Policy"} {
		if rec.Header().Get(h) == "" {
			t.Errorf("missing header %s", h)
		}
	}
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	notFound := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { http.NotFound(w, r) })

	rec := httptest.NewRecorder()
	requestLogger(notFound, logger).ServeHTTP(rec, httptest.NewRequest("GET", "/nope", nil))
	if !strings.Contains(buf.String(), "status=404") || !strings.Contains(buf.String(), "path=/nope") {
		t.Errorf("log line missing status or path: %s", buf.String())
	}

	buf.Reset()
	req := httptest.NewRequest("GET", "/sse/sensors/x", nil)
	req.Header.Set("Accept", "text/event-stream")
	requestLogger(okHandler(), logger).ServeHTTP(httptest.NewRecorder(), req)
	if buf.Len() != 0 {
		t.Errorf("SSE request was logged: %s", buf.String())
	}

	buf.Reset()
	requestLogger(okHandler(), logger).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/healthz", nil))
	if buf.Len() != 0 {
		t.Errorf("healthy probe logged at info: %s", buf.String())
	}
}

func TestStaticCacheHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	staticCacheHandler(okHandler()).ServeHTTP(rec, httptest.NewRequest("GET", "/static/status.css?v=abc", nil))
	if !strings.Contains(rec.Header().Get("Cache-Control"), "immutable") {
		t.Errorf("versioned asset not cached: %q", rec.Header().Get("Cache-Control"))
	}
	rec = httptest.NewRecorder()
	staticCacheHandler(okHandler()).ServeHTTP(rec, httptest.NewRequest("GET", "/static/status.css", nil))
	if rec.Header().Get("Cache-Control") != "" {
		t.Errorf("unversioned asset got cache header %q", rec.Header().Get("Cache-Control"))
	}
}

func TestServerRoutes(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := sensor.New(sensor.Config{Name: "a_to_b", DepartFrom: "A", ArriveAt: "B", Route: "Red", Limit: 1}, sensor.Deps{
		Routes: lookup.NewTable(nil, nil),
		Logger: logger,
	})
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("# metrics")) })
	srv := New(8080, []*sensor.Sensor{s}, metrics, logger)
	srv.SetReady()
	srv.SetReady() // idempotent
	h := srv.Handler()

	for path, want := range map[string]int{
		"/":                   http.StatusOK,
		"/api/sensors":        http.StatusOK,
		"/api/sensors/a_to_b": http.StatusOK,
		"/api/sensors/zzz":    http.StatusNotFound,
		"/static/status.css":  http.StatusOK,
		"/metrics":            http.StatusOK,
		"/healthz":            http.StatusServiceUnavailable,
	} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
		if rec.Code != want {
			t.Errorf("GET %s = %d, want %d", path, rec.Code, want)
		}
	}
}
