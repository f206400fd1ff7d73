// Package publisher pushes sensor updates to NATS.
package publisher

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"etasensor/internal/sensor"
)

// Metrics receives publish outcomes. May be nil.
type Metrics interface {
	NATSPublishedInc()
	NATSPublishErrInc()
	NATSSetConnected(connected bool)
}

// Conn is the subset of *nats.Conn the publisher uses.
type Conn interface {
	Publish(subject string, data []byte) error
}

// NATSPublisher publishes one JSON message per successful sensor update on
// <prefix>.<sensor>.
type NATSPublisher struct {
	conn    Conn
	nc      *nats.Conn
	prefix  string
	metrics Metrics
	logger  *slog.Logger
}

// Message is the published payload.
type Message struct {
	Sensor     string         `json:"sensor"`
	State      string         `json:"state"`
	Attributes map[string]any `json:"attributes"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// Connect dials url and returns a publisher on subject prefix.
func Connect(url, prefix string, m Metrics, logger *slog.Logger) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("etasensor"),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			logger.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(true)
			}
			logger.Info("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			logger.Info("nats closed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	if m != nil {
		m.NATSSetConnected(true)
	}
	p := New(nc, prefix, m, logger)
	p.nc = nc
	return p, nil
}

// New wraps an existing connection.
func New(conn Conn, prefix string, m Metrics, logger *slog.Logger) *NATSPublisher {
	return &NATSPublisher{conn: conn, prefix: prefix, metrics: m, logger: logger}
}

// Close drains the connection if the publisher owns one.
func (p *NATSPublisher) Close() {
	if p.nc != nil {
		if err := p.nc.Drain(); err != nil {
			p.logger.Warn("nats drain", "error", err)
		}
		p.nc.Close()
	}
}

// Subject returns the subject for a sensor name.
func (p *NATSPublisher) Subject(name string) string {
	if p.prefix == "" {
		return subjectToken(name)
	}
	return p.prefix + "." + subjectToken(name)
}

// Publish sends a sensor's current snapshot.
func (p *NATSPublisher) Publish(s *sensor.Sensor) error {
	snap := s.Snapshot()
	return p.send(s.Name(), Message{
		Sensor:     s.Name(),
		State:      snap.Projection.State,
		Attributes: sensor.Attributes(snap.Projection),
		UpdatedAt:  snap.UpdatedAt,
	})
}

func (p *NATSPublisher) send(name string, msg Message) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	subject := p.Subject(name)
	err = p.conn.Publish(subject, b)
	if p.metrics != nil {
		if err != nil {
			p.metrics.NATSPublishErrInc()
		} else {
			p.metrics.NATSPublishedInc()
		}
	}
	if err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	p.logger.Debug("published", "subject", subject, "state", msg.State)
	return nil
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS tokens cannot contain spaces, '>', '*' or '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
