package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// SSESensor streams a sensor's JSON view via Server-Sent Events. An event is
// sent on connect and then whenever the projection is replaced.
func (h *Handler) SSESensor(w http.ResponseWriter, r *http.Request) {
	s, ok := h.byName[r.PathValue("name")]
	if !ok {
		http.NotFound(w, r)
		return
	}
	ctx := r.Context()

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	last := s.Version()
	h.sendSensorEvent(w, flusher, viewOf(s))

	ticker := time.NewTicker(h.sseInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if v := s.Version(); v != last {
				last = v
				h.sendSensorEvent(w, flusher, viewOf(s))
			}
		case <-ctx.Done():
			return
		}
	}
}

func (h *Handler) sendSensorEvent(w http.ResponseWriter, flusher http.Flusher, v SensorView) {
	b, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("encoding SSE sensor event", "error", err)
		return
	}
	fmt.Fprintf(w, "event: sensor\n")
	fmt.Fprintf(w, "data: %s\n\n", b)
	flusher.Flush()
}
