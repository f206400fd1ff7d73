package gtfs

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"etasensor/internal/storage"
)

// Syncer runs the download, parse and import steps for the lookup database.
type Syncer struct {
	downloader *Downloader
	importer   *Importer
	db         *storage.DB
	logger     *slog.Logger
}

// NewSyncer creates a Syncer.
func NewSyncer(downloader *Downloader, db *storage.DB, logger *slog.Logger) *Syncer {
	return &Syncer{
		downloader: downloader,
		importer:   NewImporter(db, logger),
		db:         db,
		logger:     logger,
	}
}

// EnsureData imports the feed if the lookup database has no stops yet.
func (s *Syncer) EnsureData(ctx context.Context) error {
	stops, err := s.db.Stops(ctx)
	if err != nil {
		return err
	}
	if len(stops) > 0 {
		s.logger.Debug("lookup data already present", "stops", len(stops))
		return nil
	}
	s.logger.Info("no lookup data found, performing initial import")
	_, err = s.Sync(ctx, true)
	return err
}

// Sync imports the feed if it changed since the last import, or always when
// force is set. It reports whether an import happened.
func (s *Syncer) Sync(ctx context.Context, force bool) (bool, error) {
	var lastModified, etag string
	if !force {
		lastModified, _ = s.db.GetMetadata(ctx, "last_modified")
		etag, _ = s.db.GetMetadata(ctx, "etag")
	}

	dl, err := s.downloader.Fetch(ctx, lastModified, etag)
	if err != nil {
		return false, err
	}
	if dl.NotModified() {
		return false, nil
	}
	defer os.Remove(dl.Path)

	feed, err := ParseZip(dl.Path, s.logger)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", dl.Path, err)
	}
	feed.LastModified = dl.LastModified
	feed.ETag = dl.ETag

	if err := s.importer.Import(ctx, feed); err != nil {
		return false, err
	}
	return true, nil
}
