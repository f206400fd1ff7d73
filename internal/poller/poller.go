// Package poller drives sensor updates on a fixed interval.
package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"etasensor/internal/sensor"
)

// Observer is told about every cycle.
type Observer interface {
	ObserveCycle(res sensor.Result, failures int)
}

// Publisher is handed each sensor after a successful cycle.
type Publisher interface {
	Publish(s *sensor.Sensor) error
}

// Poller updates its sensors one after another. A round never overlaps the
// next one; a slow round delays the following tick.
type Poller struct {
	sensors   []*sensor.Sensor
	interval  time.Duration
	observers []Observer
	publisher Publisher
	firstDone func()
	logger    *slog.Logger

	mu     sync.Mutex // serializes rounds
	rounds int
}

// Option configures a Poller.
type Option func(*Poller)

// WithObserver adds a cycle observer.
func WithObserver(o Observer) Option {
	return func(p *Poller) { p.observers = append(p.observers, o) }
}

// WithPublisher sets the publisher for successful cycles.
func WithPublisher(pub Publisher) Option {
	return func(p *Poller) { p.publisher = pub }
}

// WithFirstRound registers fn to run once, after the first round.
func WithFirstRound(fn func()) Option {
	return func(p *Poller) { p.firstDone = fn }
}

// New creates a poller.
func New(sensors []*sensor.Sensor, interval time.Duration, logger *slog.Logger, opts ...Option) *Poller {
	p := &Poller{sensors: sensors, interval: interval, logger: logger}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start runs a round immediately, then one per interval. Blocks until ctx
// is cancelled.
func (p *Poller) Start(ctx context.Context) {
	p.RunOnce(ctx)
	if p.firstDone != nil {
		p.firstDone()
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.RunOnce(ctx)
		case <-ctx.Done():
			p.logger.Info("poller stopped", "rounds", p.Rounds())
			return
		}
	}
}

// RunOnce updates every sensor once and returns their results in order.
func (p *Poller) RunOnce(ctx context.Context) []sensor.Result {
	p.mu.Lock()
	defer p.mu.Unlock()

	results := make([]sensor.Result, 0, len(p.sensors))
	failed := 0
	for _, s := range p.sensors {
		if ctx.Err() != nil {
			break
		}
		res := s.Update(ctx)
		results = append(results, res)

		failures := s.Snapshot().Failures
		for _, o := range p.observers {
			o.ObserveCycle(res, failures)
		}
		if !res.OK {
			failed++
			continue
		}
		if p.publisher != nil {
			if err := p.publisher.Publish(s); err != nil {
				p.logger.Warn("publish failed", "sensor", s.Name(), "error", err)
			}
		}
	}
	p.rounds++
	p.logger.Debug("round complete", "sensors", len(results), "failed", failed)
	return results
}

// Rounds returns the number of completed rounds.
func (p *Poller) Rounds() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rounds
}

// Sensors returns the polled sensors.
func (p *Poller) Sensors() []*sensor.Sensor { return p.sensors }
