package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"etasensor/internal/clock"
	"etasensor/internal/feed"
	"etasensor/internal/lookup"
	"etasensor/internal/reconcile"
	"etasensor/internal/sensor"
)

var base = time.Date(2026, 9, 1, 7, 0, 0, 0, time.UTC)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type stubPayload struct{}

func (stubPayload) Stops() feed.StopIndex {
	idx := feed.StopIndex{}
	idx.Add("Harvard", "70067")
	idx.Add("Park Street", "70075")
	return idx
}

func (stubPayload) Normalize(feed.StopFilter) (*feed.Records, error) {
	recs := feed.NewRecords()
	for i, dep := range []time.Duration{12 * time.Minute, 20 * time.Minute} {
		trip := []string{"t1", "t2"}[i]
		recs.Add(feed.StopRecord{StopID: "70067", TripID: trip, Sequence: 10, Scheduled: base.Add(dep)})
		recs.Add(feed.StopRecord{StopID: "70075", TripID: trip, Sequence: 40, Scheduled: base.Add(dep + 10*time.Minute)})
	}
	return recs, nil
}

func newSensor(t *testing.T, name, from string, clk clock.Clock) *sensor.Sensor {
	t.Helper()
	return sensor.New(sensor.Config{Name: name, DepartFrom: from, ArriveAt: "Park Street", Route: "Red", Limit: 5}, sensor.Deps{
		Source: sensor.SourceFunc(func(ctx context.Context, routeID string) (feed.Payload, error) {
			return stubPayload{}, nil
		}),
		Routes: lookup.NewTable(nil, []lookup.Route{{ID: "Red", LongName: "Red Line", Type: 1}}),
		Clock:  clk,
		Logger: discard(),
	})
}

func setup(t *testing.T) (*Handler, *sensor.Sensor, *clock.FixedClock) {
	t.Helper()
	clk := clock.NewFixedClock(base)
	ready := newSensor(t, "harvard_to_park", "Harvard", clk)
	require.True(t, ready.Update(context.Background()).OK)
	pending := newSensor(t, "<script>", "Nowhere", clk)

	static := fstest.MapFS{"static/status.css": {Data: []byte("body{}")}}
	return New([]*sensor.Sensor{ready, pending}, static, discard()), ready, clk
}

func TestListSensors(t *testing.T) {
	h, _, _ := setup(t)
	rec := httptest.NewRecorder()
	h.ListSensors(rec, httptest.NewRequest("GET", "/api/sensors", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var views []SensorView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	require.Len(t, views, 2)
	assert.Equal(t, "harvard_to_park", views[0].Name)
	assert.Equal(t, "12m", views[0].State)
	assert.Equal(t, `[{"departure":"20m","delay":null}]`, views[0].Attributes["upcoming_departures"])
	require.NotNil(t, views[0].UpdatedAt)
	assert.Equal(t, reconcile.NothingScheduled, views[1].State)
	assert.Nil(t, views[1].UpdatedAt)
}

func TestGetSensor(t *testing.T) {
	h, _, _ := setup(t)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/sensors/{name}", h.GetSensor)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/api/sensors/harvard_to_park", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	var v SensorView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	assert.Equal(t, "HeavyRail", v.Attributes["route_type"])

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/api/sensors/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	h, _, _ := setup(t)
	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest("GET", "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body struct {
		OK      bool     `json:"ok"`
		Pending []string `json:"pending"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.OK)
	assert.Equal(t, []string{"<script>"}, body.Pending)
}

func TestHome(t *testing.T) {
	h, _, _ := setup(t)
	rec := httptest.NewRecorder()
	h.Home(rec, httptest.NewRequest("GET", "/", nil))

	body := rec.Body.String()
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, body, "harvard_to_park")
	assert.Contains(t, body, `<p class="state">12m</p>`)
	assert.Contains(t, body, "&lt;script&gt;")
	assert.NotContains(t, body, "<h2><script>")
	assert.Contains(t, body, "/static/status.css?v="+h.version)

	rec = httptest.NewRecorder()
	h.Home(rec, httptest.NewRequest("GET", "/elsewhere", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSSESensor(t *testing.T) {
	h, s, clk := setup(t)
	h.SetSSEInterval(10 * time.Millisecond)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /sse/sensors/{name}", h.SSESensor)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, "GET", srv.URL+"/sse/sensors/harvard_to_park", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := make(chan SensorView, 4)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			line := sc.Text()
			if data, ok := strings.CutPrefix(line, "data: "); ok {
				var v SensorView
				if json.Unmarshal([]byte(data), &v) == nil {
					events <- v
				}
			}
		}
	}()

	first := <-events
	assert.Equal(t, "12m", first.State)

	clk.Advance(2 * time.Minute)
	require.True(t, s.Update(context.Background()).OK)

	select {
	case next := <-events:
		assert.Equal(t, "10m", next.State)
	case <-time.After(2 * time.Second):
		t.Fatal("no event after update")
	}
}

func TestComputeAssetVersion(t *testing.T) {
	a := computeAssetVersion(fstest.MapFS{"a.css": {Data: []byte("x")}})
	b := computeAssetVersion(fstest.MapFS{"a.css": {Data: []byte("y")}})
	if a == b {
		t.Errorf("asset version did not change with content: %s", a)
	}
	if len(a) != 8 {
		t.Errorf("asset version length = %d, want 8", len(a))
	}
}
