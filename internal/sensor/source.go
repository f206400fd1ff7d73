package sensor

import (
	"context"
	"fmt"
	"log/slog"

	"etasensor/internal/feed"
	"etasensor/internal/mbta"
)

// Feed kinds accepted by NewSource.
const (
	FeedSchedules   = "schedules"
	FeedPredictions = "predictions"
	FeedTripUpdates = "gtfs-rt"
)

// Source fetches one payload for a route.
type Source interface {
	Fetch(ctx context.Context, routeID string) (feed.Payload, error)
}

// DocumentFetcher is the JSON:API side of the HTTP client.
type DocumentFetcher interface {
	Schedules(ctx context.Context, routeID string) (*mbta.Document, error)
	Predictions(ctx context.Context, routeID string) (*mbta.Document, error)
}

// RawFetcher fetches an arbitrary URL.
type RawFetcher interface {
	Raw(ctx context.Context, url string) ([]byte, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, routeID string) (feed.Payload, error)

// Fetch calls f.
func (f SourceFunc) Fetch(ctx context.Context, routeID string) (feed.Payload, error) {
	return f(ctx, routeID)
}

// ScheduleSource reads /schedules with predictions included.
func ScheduleSource(c DocumentFetcher, logger *slog.Logger) Source {
	return SourceFunc(func(ctx context.Context, routeID string) (feed.Payload, error) {
		doc, err := c.Schedules(ctx, routeID)
		if err != nil {
			return nil, err
		}
		return feed.Schedules(doc, logger)
	})
}

// PredictionSource reads /predictions with schedules included.
func PredictionSource(c DocumentFetcher, logger *slog.Logger) Source {
	return SourceFunc(func(ctx context.Context, routeID string) (feed.Payload, error) {
		doc, err := c.Predictions(ctx, routeID)
		if err != nil {
			return nil, err
		}
		return feed.Inline(doc, logger)
	})
}

// TripUpdatesSource reads a GTFS-Realtime TripUpdates feed at url.
func TripUpdatesSource(c RawFetcher, url string, logger *slog.Logger) Source {
	return SourceFunc(func(ctx context.Context, routeID string) (feed.Payload, error) {
		raw, err := c.Raw(ctx, url)
		if err != nil {
			return nil, err
		}
		return feed.TripUpdates(raw, routeID, logger)
	})
}

// NewSource picks a Source by feed kind. An empty kind means schedules.
func NewSource(kind, url string, c *mbta.Client, logger *slog.Logger) (Source, error) {
	switch kind {
	case "", FeedSchedules:
		return ScheduleSource(c, logger), nil
	case FeedPredictions:
		return PredictionSource(c, logger), nil
	case FeedTripUpdates:
		if url == "" {
			return nil, fmt.Errorf("feed %s needs a url", kind)
		}
		return TripUpdatesSource(c, url, logger), nil
	default:
		return nil, fmt.Errorf("unknown feed kind %q", kind)
	}
}
