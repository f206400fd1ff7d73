package reconcile

import (
	"log/slog"
	"time"

	"etasensor/internal/feed"
)

// Request parameterizes one reconciliation run.
type Request struct {
	Origin      IDSet
	Destination IDSet
	Now         time.Time
	Offset      time.Duration
	Limit       int
	Labels      Labels
}

// Stats summarizes a run for logging and metrics.
type Stats struct {
	MatchStats
	Matched  int
	Upcoming int
	Dropped  int
}

// Outcome is the result of Engine.Run.
type Outcome struct {
	Projection Projection
	Trips      []ResolvedTrip // filtered and ordered
	Stats      Stats
}

// Engine runs match, resolve, horizon and build in sequence.
type Engine struct {
	logger *slog.Logger
}

// NewEngine creates an Engine.
func NewEngine(logger *slog.Logger) *Engine {
	return &Engine{logger: logger}
}

// Run reconciles recs for one configured stop pair.
func (e *Engine) Run(recs *feed.Records, req Request) Outcome {
	matched, ms := Match(recs, req.Origin, req.Destination)
	resolved := ResolveAll(matched, recs)
	upcoming := Upcoming(resolved, req.Now, req.Offset)

	stats := Stats{
		MatchStats: ms,
		Matched:    len(matched),
		Upcoming:   len(upcoming),
	}
	if recs != nil {
		stats.Dropped = recs.Dropped
	}

	e.logger.Debug("reconciled trips",
		"route", req.Labels.Route,
		"from", req.Labels.DepartFrom,
		"to", req.Labels.ArriveAt,
		"considered", ms.Considered,
		"matched", stats.Matched,
		"reversed", ms.Reversed,
		"upcoming", stats.Upcoming,
	)

	return Outcome{
		Projection: Build(upcoming, req.Now, req.Limit, req.Labels),
		Trips:      upcoming,
		Stats:      stats,
	}
}
