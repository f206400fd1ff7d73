// Package sensor runs poll cycles for one configured stop pair and exposes
// the resulting state and attributes.
package sensor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"etasensor/internal/clock"
	"etasensor/internal/config"
	"etasensor/internal/feed"
	"etasensor/internal/lookup"
	"etasensor/internal/mbta"
	"etasensor/internal/reconcile"
)

// Config is a sensor's fixed configuration.
type Config struct {
	Name       string
	DepartFrom string
	ArriveAt   string
	Route      string
	Offset     time.Duration
	Limit      int
}

// Deps are the collaborators a sensor needs. Stops may be nil, in which case
// only the stop names carried by each payload are used.
type Deps struct {
	Source Source
	Stops  lookup.Stops
	Routes lookup.Routes
	Engine *reconcile.Engine
	Clock  clock.Clock
	Logger *slog.Logger
}

// Sensor is one stop pair on one route.
type Sensor struct {
	cfg    Config
	source Source
	stops  lookup.Stops
	routes lookup.Routes
	engine *reconcile.Engine
	clock  clock.Clock
	logger *slog.Logger
	store  *Store
}

// New creates a Sensor. Its state is NothingScheduled until the first
// successful Update.
func New(cfg Config, deps Deps) *Sensor {
	if deps.Clock == nil {
		deps.Clock = clock.RealClock{}
	}
	if deps.Engine == nil {
		deps.Engine = reconcile.NewEngine(deps.Logger)
	}
	s := &Sensor{
		cfg:    cfg,
		source: deps.Source,
		stops:  deps.Stops,
		routes: deps.Routes,
		engine: deps.Engine,
		clock:  deps.Clock,
		logger: deps.Logger.With("sensor", cfg.Name),
	}
	labels := s.baseLabels()
	if r, ok := s.routes.Route(cfg.Route); ok {
		labels = withRoute(labels, r)
	}
	s.store = NewStore(reconcile.Build(nil, deps.Clock.Now(), cfg.Limit, labels))
	return s
}

// FromSpecs builds one sensor per spec, each with its own feed source.
func FromSpecs(specs []config.SensorSpec, client *mbta.Client, deps Deps) ([]*Sensor, error) {
	out := make([]*Sensor, 0, len(specs))
	for _, spec := range specs {
		src, err := NewSource(spec.Feed, spec.FeedURL, client, deps.Logger)
		if err != nil {
			return nil, fmt.Errorf("sensor %s: %w", spec.Name, err)
		}
		d := deps
		d.Source = src
		out = append(out, New(Config{
			Name:       spec.Name,
			DepartFrom: spec.DepartFrom,
			ArriveAt:   spec.ArriveAt,
			Route:      spec.Route,
			Offset:     time.Duration(spec.OffsetMinutes) * time.Minute,
			Limit:      spec.Limit,
		}, d))
	}
	return out, nil
}

// Reason classifies a failed cycle.
type Reason string

const (
	ReasonNone      Reason = ""
	ReasonTransport Reason = "transport"
	ReasonEmpty     Reason = "empty"
	ReasonLookup    Reason = "lookup"
	ReasonDecode    Reason = "decode"
)

// Result is the outcome of one Update: either OK with the new projection,
// or a failure with its reason. A failure leaves the stored projection
// untouched.
type Result struct {
	Sensor     string
	OK         bool
	Projection reconcile.Projection
	Stats      reconcile.Stats
	Reason     Reason
	Err        error
	Duration   time.Duration
}

// Name returns the sensor name.
func (s *Sensor) Name() string { return s.cfg.Name }

// Config returns the sensor configuration.
func (s *Sensor) Config() Config { return s.cfg }

// Update runs one poll cycle. Callers must not run Update concurrently on
// the same sensor.
func (s *Sensor) Update(ctx context.Context) Result {
	start := time.Now()
	res := s.update(ctx)
	res.Sensor = s.cfg.Name
	res.Duration = time.Since(start)

	now := s.clock.Now()
	if !res.OK {
		s.store.Fail(res.Err, now)
		s.logger.Warn("update failed", "reason", res.Reason, "error", res.Err)
		return res
	}
	s.store.Replace(res.Projection, now)
	s.logger.Info("updated",
		"state", res.Projection.State,
		"upcoming", len(res.Projection.Upcoming),
		"matched", res.Stats.Matched,
		"dropped", res.Stats.Dropped,
	)
	return res
}

func (s *Sensor) update(ctx context.Context) Result {
	route, ok := s.routes.Route(s.cfg.Route)
	if !ok {
		return fail(ReasonLookup, fmt.Errorf("%w: %q", lookup.ErrRouteNotFound, s.cfg.Route))
	}

	payload, err := s.source.Fetch(ctx, route.ID)
	if err != nil {
		return fail(classify(err), fmt.Errorf("fetch route %s: %w", route.ID, err))
	}

	stops := lookup.Chain(payload.Stops(), s.stops)
	originIDs, ok := stops.Resolve(s.cfg.DepartFrom)
	if !ok {
		return fail(ReasonLookup, fmt.Errorf("%w: %q", lookup.ErrStopNotFound, s.cfg.DepartFrom))
	}
	destIDs, ok := stops.Resolve(s.cfg.ArriveAt)
	if !ok {
		return fail(ReasonLookup, fmt.Errorf("%w: %q", lookup.ErrStopNotFound, s.cfg.ArriveAt))
	}

	recs, err := payload.Normalize(feed.NewStopFilter(append(append([]string(nil), originIDs...), destIDs...)...))
	if err != nil {
		return fail(ReasonDecode, fmt.Errorf("normalize: %w", err))
	}

	labels := withRoute(s.baseLabels(), route)
	if info, ok := recs.Routes[route.ID]; ok {
		labels = withPayloadRoute(labels, info)
	}

	out := s.engine.Run(recs, reconcile.Request{
		Origin:      reconcile.NewIDSet(originIDs...),
		Destination: reconcile.NewIDSet(destIDs...),
		Now:         s.clock.Now(),
		Offset:      s.cfg.Offset,
		Limit:       s.cfg.Limit,
		Labels:      labels,
	})
	return Result{OK: true, Projection: out.Projection, Stats: out.Stats}
}

func fail(reason Reason, err error) Result {
	return Result{Reason: reason, Err: err}
}

func classify(err error) Reason {
	var (
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)
	switch {
	case errors.Is(err, feed.ErrEmptyFeed):
		return ReasonEmpty
	case errors.Is(err, lookup.ErrRouteNotFound), errors.Is(err, lookup.ErrStopNotFound):
		return ReasonLookup
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr), errors.Is(err, mbta.ErrDecode), errors.Is(err, feed.ErrDecode):
		return ReasonDecode
	default:
		return ReasonTransport
	}
}

func (s *Sensor) baseLabels() reconcile.Labels {
	return reconcile.Labels{
		Route:      s.cfg.Route,
		DepartFrom: s.cfg.DepartFrom,
		ArriveAt:   s.cfg.ArriveAt,
	}
}

func withRoute(l reconcile.Labels, r lookup.Route) reconcile.Labels {
	l.RouteType = r.TypeLabel()
	l.RouteColor = r.Color
	l.DirectionNames = r.DirectionNames
	return l
}

// withPayloadRoute fills gaps left by the static table.
func withPayloadRoute(l reconcile.Labels, r feed.RouteInfo) reconcile.Labels {
	if l.RouteColor == "" {
		l.RouteColor = r.Color
	}
	if l.RouteType == "" {
		l.RouteType = lookup.RouteTypeLabel(r.Type)
	}
	if len(l.DirectionNames) == 0 {
		l.DirectionNames = r.DirectionNames
	}
	return l
}

// State is the primary ETA or reconcile.NothingScheduled.
func (s *Sensor) State() string {
	return s.store.Snapshot().Projection.State
}

// Snapshot returns the stored snapshot.
func (s *Sensor) Snapshot() Snapshot { return s.store.Snapshot() }

// Version increases on every successful update.
func (s *Sensor) Version() uint64 { return s.store.Version() }

// Attributes returns the attribute mapping of the current projection.
func (s *Sensor) Attributes() map[string]any {
	return Attributes(s.store.Snapshot().Projection)
}

// Attributes renders a projection's attribute mapping. upcoming_departures
// is a JSON string of {departure, delay} objects.
func Attributes(p reconcile.Projection) map[string]any {
	upcoming, err := json.Marshal(p.Upcoming)
	if err != nil || p.Upcoming == nil {
		upcoming = []byte("[]")
	}

	var delay any
	if d := p.Delay(); d != nil {
		delay = *d
	}
	var direction any
	if p.DirectionID != nil {
		direction = *p.DirectionID
	}

	return map[string]any{
		"route":               p.Labels.Route,
		"depart_from":         p.Labels.DepartFrom,
		"arrive_at":           p.Labels.ArriveAt,
		"delay":               delay,
		"upcoming_departures": string(upcoming),
		"route_type":          p.Labels.RouteType,
		"route_color":         p.Labels.RouteColor,
		"direction":           direction,
		"direction_label":     p.DirectionLabel,
	}
}
