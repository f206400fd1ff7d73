package storage

import "fmt"

// migrate creates the lookup schema if it doesn't exist.
func (db *DB) migrate() error {
	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	db.logger.Debug("database migrations applied", "count", len(migrations))
	return nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS routes (
		route_id         TEXT PRIMARY KEY,
		route_short_name TEXT NOT NULL DEFAULT '',
		route_long_name  TEXT NOT NULL DEFAULT '',
		route_type       INTEGER NOT NULL DEFAULT 3,
		route_color      TEXT NOT NULL DEFAULT '',
		route_text_color TEXT NOT NULL DEFAULT '',
		direction_names  TEXT NOT NULL DEFAULT '',
		direction_destinations TEXT NOT NULL DEFAULT ''
	)`,

	`CREATE TABLE IF NOT EXISTS stops (
		stop_id        TEXT PRIMARY KEY,
		stop_name      TEXT NOT NULL,
		platform_name  TEXT NOT NULL DEFAULT '',
		location_type  INTEGER NOT NULL DEFAULT 0,
		parent_station TEXT NOT NULL DEFAULT ''
	)`,

	// Feed metadata (last_modified, etag, imported_at, source)
	`CREATE TABLE IF NOT EXISTS feed_metadata (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_stops_name ON stops(stop_name)`,
	`CREATE INDEX IF NOT EXISTS idx_routes_long_name ON routes(route_long_name)`,
}
