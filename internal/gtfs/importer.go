package gtfs

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"etasensor/internal/storage"
)

// Importer loads a parsed feed into the lookup database.
type Importer struct {
	db     *storage.DB
	logger *slog.Logger
}

// NewImporter creates an Importer.
func NewImporter(db *storage.DB, logger *slog.Logger) *Importer {
	return &Importer{db: db, logger: logger}
}

// Import replaces the lookup tables with the feed's routes and stops.
func (imp *Importer) Import(ctx context.Context, feed *Feed) error {
	start := time.Now()

	routes := RouteRows(feed)
	stops := make([]storage.StopRow, 0, len(feed.Stops))
	for _, s := range feed.Stops {
		if s.StopID == "" || s.StopName == "" {
			continue
		}
		stops = append(stops, storage.StopRow{
			StopID:        s.StopID,
			Name:          s.StopName,
			PlatformName:  s.PlatformName,
			LocationType:  atoiOr(s.LocationType, 0),
			ParentStation: s.ParentStation,
		})
	}

	meta := map[string]string{
		"imported_at": time.Now().UTC().Format(time.RFC3339),
	}
	if feed.LastModified != "" {
		meta["last_modified"] = feed.LastModified
	}
	if feed.ETag != "" {
		meta["etag"] = feed.ETag
	}

	if err := imp.db.ReplaceLookup(ctx, routes, stops, meta); err != nil {
		return fmt.Errorf("import lookup: %w", err)
	}

	imp.logger.Info("GTFS import complete",
		"duration", time.Since(start).Round(time.Millisecond),
		"routes", len(routes),
		"stops", len(stops),
	)
	return nil
}

// RouteRows converts routes.txt rows, attaching direction names from
// directions.txt by direction_id.
func RouteRows(feed *Feed) []storage.RouteRow {
	type dirs struct{ names, dests []string }
	byRoute := make(map[string]*dirs)
	for _, d := range feed.Directions {
		id, err := strconv.Atoi(d.DirectionID)
		if err != nil || id < 0 || id > 1 {
			continue
		}
		rd, ok := byRoute[d.RouteID]
		if !ok {
			rd = &dirs{names: make([]string, 2), dests: make([]string, 2)}
			byRoute[d.RouteID] = rd
		}
		rd.names[id] = d.Direction
		rd.dests[id] = d.Destination
	}

	rows := make([]storage.RouteRow, 0, len(feed.Routes))
	for _, r := range feed.Routes {
		if r.RouteID == "" {
			continue
		}
		row := storage.RouteRow{
			RouteID:   r.RouteID,
			ShortName: r.RouteShortName,
			LongName:  r.RouteLongName,
			Type:      atoiOr(r.RouteType, 3),
			Color:     r.RouteColor,
			TextColor: r.RouteTextColor,
		}
		if rd, ok := byRoute[r.RouteID]; ok {
			row.DirectionNames = rd.names
			row.DirectionDestinations = rd.dests
		}
		rows = append(rows, row)
	}
	return rows
}

func atoiOr(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}
