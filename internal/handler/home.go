package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/a-h/templ"

	"etasensor/internal/reconcile"
)

// Home serves the status page listing every sensor.
func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	views := make([]SensorView, 0, len(h.sensors))
	for _, s := range h.sensors {
		views = append(views, viewOf(s))
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := statusPage(h.version, views).Render(r.Context(), w); err != nil {
		h.logger.Error("rendering status page", "error", err)
	}
}

func statusPage(assetVersion string, views []SensorView) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &printer{w: w}
		p.printf(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		p.printf(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		p.printf(`<meta http-equiv="refresh" content="30">`)
		p.printf(`<title>ETA sensors</title>`)
		p.printf(`<link rel="stylesheet" href="/static/status.css?v=%s">`, templ.EscapeString(assetVersion))
		p.printf(`</head><body><main><h1>ETA sensors</h1>`)
		if len(views) == 0 {
			p.printf(`<p class="empty">No sensors configured.</p>`)
		}
		for _, v := range views {
			sensorCard(p, v)
		}
		p.printf(`</main></body></html>`)
		return p.err
	})
}

func sensorCard(p *printer, v SensorView) {
	class := "sensor"
	if v.State == reconcile.NothingScheduled {
		class += " idle"
	}
	if v.Failures > 0 {
		class += " failing"
	}
	p.printf(`<section class="%s" id="%s">`, class, templ.EscapeString(v.Name))
	p.printf(`<h2>%s</h2>`, templ.EscapeString(v.Name))
	p.printf(`<p class="route">%s: %s &rarr; %s</p>`,
		esc(v.Attributes["route"]), esc(v.Attributes["depart_from"]), esc(v.Attributes["arrive_at"]))
	p.printf(`<p class="state">%s</p>`, templ.EscapeString(v.State))
	if d, ok := v.Attributes["delay"].(string); ok && d != "" {
		p.printf(`<p class="delay">delayed %s</p>`, templ.EscapeString(d))
	}
	if label, ok := v.Attributes["direction_label"].(string); ok && label != "" {
		p.printf(`<p class="direction">%s</p>`, templ.EscapeString(label))
	}
	if v.UpdatedAt != nil {
		p.printf(`<p class="updated">updated %s</p>`, v.UpdatedAt.Local().Format(time.Kitchen))
	}
	if v.LastError != "" {
		p.printf(`<p class="error">%d failed cycles: %s</p>`, v.Failures, templ.EscapeString(v.LastError))
	}
	p.printf(`</section>`)
}

func esc(v any) string {
	if v == nil {
		return ""
	}
	return templ.EscapeString(fmt.Sprint(v))
}

// printer keeps the first write error.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}
