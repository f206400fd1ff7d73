package handler

import (
	"crypto/md5"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"time"

	"etasensor/internal/sensor"
)

// Handler holds shared dependencies for all HTTP handlers.
type Handler struct {
	sensors     []*sensor.Sensor
	byName      map[string]*sensor.Sensor
	logger      *slog.Logger
	version     string // content hash of static assets, for cache busting
	sseInterval time.Duration
}

// New creates a Handler. static is the embedded asset tree used for the
// cache-busting version string; it may be nil.
func New(sensors []*sensor.Sensor, static fs.FS, logger *slog.Logger) *Handler {
	v := computeAssetVersion(static)
	logger.Info("asset version computed", "version", v)

	byName := make(map[string]*sensor.Sensor, len(sensors))
	for _, s := range sensors {
		byName[s.Name()] = s
	}
	return &Handler{
		sensors:     sensors,
		byName:      byName,
		logger:      logger,
		version:     v,
		sseInterval: 5 * time.Second,
	}
}

// SetSSEInterval changes how often SSE streams check for a new projection.
func (h *Handler) SetSSEInterval(d time.Duration) { h.sseInterval = d }

// computeAssetVersion hashes every asset under fsys to produce a short
// version string.
func computeAssetVersion(fsys fs.FS) string {
	h := md5.New()
	if fsys == nil {
		return fmt.Sprintf("%x", h.Sum(nil))[:8]
	}
	var paths []string
	fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	sort.Strings(paths) // deterministic order
	for _, p := range paths {
		b, err := fs.ReadFile(fsys, p)
		if err != nil {
			continue
		}
		h.Write(b)
	}
	return fmt.Sprintf("%x", h.Sum(nil))[:8]
}
