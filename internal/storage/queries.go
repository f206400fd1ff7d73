package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// GetMetadata retrieves a value from the feed_metadata table.
func (db *DB) GetMetadata(ctx context.Context, key string) (string, error) {
	var value string
	err := db.QueryRowContext(ctx, `SELECT value FROM feed_metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

// SetMetadata stores a key-value pair in the feed_metadata table.
func (db *DB) SetMetadata(ctx context.Context, key, value string) error {
	_, err := db.ExecContext(ctx,
		`INSERT OR REPLACE INTO feed_metadata (key, value) VALUES (?, ?)`,
		key, value)
	return err
}

// RouteRow is one imported route.
type RouteRow struct {
	RouteID               string
	ShortName             string
	LongName              string
	Type                  int
	Color                 string
	TextColor             string
	DirectionNames        []string
	DirectionDestinations []string
}

// StopRow is one imported stop or platform.
type StopRow struct {
	StopID        string
	Name          string
	PlatformName  string
	LocationType  int
	ParentStation string
}

// listSep joins direction names in a single column; names never contain it.
const listSep = "|"

func joinList(v []string) string { return strings.Join(v, listSep) }

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, listSep)
}

// Routes returns every imported route ordered by id.
func (db *DB) Routes(ctx context.Context) ([]RouteRow, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT route_id, route_short_name, route_long_name, route_type,
		       route_color, route_text_color, direction_names, direction_destinations
		FROM routes
		ORDER BY route_id`)
	if err != nil {
		return nil, fmt.Errorf("routes query: %w", err)
	}
	defer rows.Close()

	var out []RouteRow
	for rows.Next() {
		var r RouteRow
		var names, dests string
		if err := rows.Scan(&r.RouteID, &r.ShortName, &r.LongName, &r.Type,
			&r.Color, &r.TextColor, &names, &dests); err != nil {
			return nil, fmt.Errorf("scan route: %w", err)
		}
		r.DirectionNames = splitList(names)
		r.DirectionDestinations = splitList(dests)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Stops returns every imported stop ordered by name, then id.
func (db *DB) Stops(ctx context.Context) ([]StopRow, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT stop_id, stop_name, platform_name, location_type, parent_station
		FROM stops
		ORDER BY stop_name, stop_id`)
	if err != nil {
		return nil, fmt.Errorf("stops query: %w", err)
	}
	defer rows.Close()

	var out []StopRow
	for rows.Next() {
		var s StopRow
		if err := rows.Scan(&s.StopID, &s.Name, &s.PlatformName, &s.LocationType, &s.ParentStation); err != nil {
			return nil, fmt.Errorf("scan stop: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ReplaceLookup swaps the routes and stops tables for the given rows in one
// transaction and records meta alongside.
func (db *DB) ReplaceLookup(ctx context.Context, routes []RouteRow, stops []StopRow, meta map[string]string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, t := range []string{"routes", "stops"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+t); err != nil {
			return fmt.Errorf("clear %s: %w", t, err)
		}
	}

	routeStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO routes (route_id, route_short_name, route_long_name, route_type,
		 route_color, route_text_color, direction_names, direction_destinations)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare routes: %w", err)
	}
	defer routeStmt.Close()
	for _, r := range routes {
		if _, err := routeStmt.ExecContext(ctx, r.RouteID, r.ShortName, r.LongName, r.Type,
			r.Color, r.TextColor, joinList(r.DirectionNames), joinList(r.DirectionDestinations)); err != nil {
			return fmt.Errorf("insert route %s: %w", r.RouteID, err)
		}
	}

	stopStmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO stops (stop_id, stop_name, platform_name, location_type, parent_station)
		 VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare stops: %w", err)
	}
	defer stopStmt.Close()
	for _, s := range stops {
		if _, err := stopStmt.ExecContext(ctx, s.StopID, s.Name, s.PlatformName, s.LocationType, s.ParentStation); err != nil {
			return fmt.Errorf("insert stop %s: %w", s.StopID, err)
		}
	}

	for k, v := range meta {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO feed_metadata (key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("set %s: %w", k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	db.logger.Info("lookup tables replaced", "routes", len(routes), "stops", len(stops))
	return nil
}
