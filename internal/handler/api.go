package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"etasensor/internal/sensor"
)

// SensorView is the JSON form of one sensor.
type SensorView struct {
	Name       string         `json:"name"`
	State      string         `json:"state"`
	Attributes map[string]any `json:"attributes"`
	UpdatedAt  *time.Time     `json:"updated_at"`
	LastError  string         `json:"last_error,omitempty"`
	Failures   int            `json:"failures"`
	Version    uint64         `json:"version"`
}

func viewOf(s *sensor.Sensor) SensorView {
	snap := s.Snapshot()
	v := SensorView{
		Name:       s.Name(),
		State:      snap.Projection.State,
		Attributes: sensor.Attributes(snap.Projection),
		LastError:  snap.LastError,
		Failures:   snap.Failures,
		Version:    s.Version(),
	}
	if !snap.UpdatedAt.IsZero() {
		at := snap.UpdatedAt
		v.UpdatedAt = &at
	}
	return v
}

// ListSensors serves every sensor in configuration order.
func (h *Handler) ListSensors(w http.ResponseWriter, r *http.Request) {
	out := make([]SensorView, 0, len(h.sensors))
	for _, s := range h.sensors {
		out = append(out, viewOf(s))
	}
	h.writeJSON(w, http.StatusOK, out)
}

// GetSensor serves one sensor by name.
func (h *Handler) GetSensor(w http.ResponseWriter, r *http.Request) {
	s, ok := h.byName[r.PathValue("name")]
	if !ok {
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown sensor"})
		return
	}
	h.writeJSON(w, http.StatusOK, viewOf(s))
}

// Health reports ok once every sensor has completed a successful cycle.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	pending := []string{}
	for _, s := range h.sensors {
		if s.Snapshot().UpdatedAt.IsZero() {
			pending = append(pending, s.Name())
		}
	}
	status := http.StatusOK
	if len(pending) > 0 {
		status = http.StatusServiceUnavailable
	}
	h.writeJSON(w, status, map[string]any{"ok": len(pending) == 0, "pending": pending})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encoding response", "error", err)
	}
}
