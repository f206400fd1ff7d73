// Package metrics exposes poll-cycle counters on a private Prometheus
// registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"etasensor/internal/sensor"
)

// Collector records sensor cycles and publish attempts.
type Collector struct {
	reg *prometheus.Registry

	Cycles         *prometheus.CounterVec // sensor, outcome
	CycleDuration  *prometheus.HistogramVec
	UpcomingTrips  *prometheus.GaugeVec
	DroppedRecords *prometheus.CounterVec
	Failures       *prometheus.GaugeVec // consecutive, per sensor

	Published   prometheus.Counter
	PublishErrs prometheus.Counter
	NATSUp      prometheus.Gauge

	PollInterval prometheus.Gauge // seconds
}

// NewCollector builds a collector with all metrics registered.
func NewCollector(pollInterval time.Duration) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		Cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "etasensor_cycles_total",
			Help: "Poll cycles by sensor and outcome (ok or a failure reason).",
		}, []string{"sensor", "outcome"}),
		CycleDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "etasensor_cycle_duration_seconds",
			Help:    "Duration of one sensor poll cycle.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"sensor"}),
		UpcomingTrips: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "etasensor_upcoming_trips",
			Help: "Departures in the latest projection, primary included.",
		}, []string{"sensor"}),
		DroppedRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "etasensor_dropped_records_total",
			Help: "Malformed feed records skipped during normalization.",
		}, []string{"sensor"}),
		Failures: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "etasensor_consecutive_failures",
			Help: "Failed cycles since the last successful one.",
		}, []string{"sensor"}),
		Published: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "etasensor_nats_published_total",
			Help: "Total NATS messages published.",
		}),
		PublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "etasensor_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "etasensor_nats_connected",
			Help: "1 if the NATS connection is established, 0 otherwise.",
		}),
		PollInterval: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "etasensor_poll_interval_seconds",
			Help: "Configured poll interval.",
		}),
	}

	reg.MustRegister(
		c.Cycles, c.CycleDuration, c.UpcomingTrips, c.DroppedRecords, c.Failures,
		c.Published, c.PublishErrs, c.NATSUp, c.PollInterval,
	)
	c.PollInterval.Set(pollInterval.Seconds())
	return c
}

// ObserveCycle records one sensor cycle. failures is the sensor's
// consecutive failure count after the cycle.
func (c *Collector) ObserveCycle(res sensor.Result, failures int) {
	outcome := "ok"
	if !res.OK {
		outcome = string(res.Reason)
	}
	c.Cycles.WithLabelValues(res.Sensor, outcome).Inc()
	c.CycleDuration.WithLabelValues(res.Sensor).Observe(res.Duration.Seconds())
	c.Failures.WithLabelValues(res.Sensor).Set(float64(failures))
	if !res.OK {
		return
	}

	n := len(res.Projection.Upcoming)
	if res.Projection.Primary != nil {
		n++
	}
	c.UpcomingTrips.WithLabelValues(res.Sensor).Set(float64(n))
	if res.Stats.Dropped > 0 {
		c.DroppedRecords.WithLabelValues(res.Sensor).Add(float64(res.Stats.Dropped))
	}
}

// NATSPublishedInc implements publisher.Metrics.
func (c *Collector) NATSPublishedInc() { c.Published.Inc() }

// NATSPublishErrInc implements publisher.Metrics.
func (c *Collector) NATSPublishErrInc() { c.PublishErrs.Inc() }

// NATSSetConnected implements publisher.Metrics.
func (c *Collector) NATSSetConnected(connected bool) {
	if connected {
		c.NATSUp.Set(1)
		return
	}
	c.NATSUp.Set(0)
}

// Registry returns the private registry.
func (c *Collector) Registry() *prometheus.Registry { return c.reg }

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }
