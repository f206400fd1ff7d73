package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"etasensor/internal/handler"
	"etasensor/internal/sensor"
	"etasensor/web"
)

// Server is the HTTP server exposing sensor state.
type Server struct {
	mux    *http.ServeMux
	port   int
	logger *slog.Logger
	ready  chan struct{} // closed after the first poll round
}

// New creates a Server with all routes registered. metrics may be nil; when
// set it is mounted at /metrics.
func New(port int, sensors []*sensor.Sensor, metrics http.Handler, logger *slog.Logger) *Server {
	mux := http.NewServeMux()
	staticFS, _ := fs.Sub(web.StaticFiles, "static")
	h := handler.New(sensors, staticFS, logger)

	s := &Server{mux: mux, port: port, logger: logger, ready: make(chan struct{})}

	fileServer := http.FileServer(http.FS(staticFS))
	mux.Handle("GET /static/", http.StripPrefix("/static/", staticCacheHandler(fileServer)))

	mux.HandleFunc("GET /", h.Home)
	mux.HandleFunc("GET /healthz", h.Health)
	mux.HandleFunc("GET /api/sensors", h.ListSensors)
	mux.HandleFunc("GET /api/sensors/{name}", h.GetSensor)
	mux.HandleFunc("GET /sse/sensors/{name}", h.SSESensor)

	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}
	return s
}

// SetReady signals that the first poll round has finished.
func (s *Server) SetReady() {
	select {
	case <-s.ready:
		// already closed
	default:
		close(s.ready)
	}
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return withMiddleware(s.mux, s.logger, s.ready)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.port)
	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ServeMetrics runs a standalone /metrics listener until ctx is cancelled.
func ServeMetrics(ctx context.Context, addr string, metrics http.Handler, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()
	logger.Info("metrics listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics server error", "error", err)
	}
}
