package gtfs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// Downloader fetches a static GTFS zip with conditional requests.
type Downloader struct {
	client *http.Client
	url    string
	dir    string // Directory to store downloaded files
	logger *slog.Logger
}

// NewDownloader creates a Downloader for the given GTFS URL.
func NewDownloader(url, dir string, logger *slog.Logger) *Downloader {
	return &Downloader{
		client: &http.Client{Timeout: 5 * time.Minute},
		url:    url,
		dir:    dir,
		logger: logger,
	}
}

// Download is the result of Fetch. Path is empty when the server reported
// the feed unchanged.
type Download struct {
	Path         string
	LastModified string
	ETag         string
}

// NotModified reports whether the server answered 304.
func (d *Download) NotModified() bool { return d.Path == "" }

// Fetch GETs the zip, sending the validators from the previous import. The
// caller removes Path when done.
func (d *Downloader) Fetch(ctx context.Context, lastModified, etag string) (*Download, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if lastModified != "" {
		req.Header.Set("If-Modified-Since", lastModified)
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}

	d.logger.Info("fetching GTFS feed", "url", d.url)
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", d.url, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotModified:
		d.logger.Info("GTFS feed not modified")
		return &Download{LastModified: lastModified, ETag: etag}, nil
	case http.StatusOK:
	default:
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, d.url)
	}

	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create dir: %w", err)
	}
	tmpFile, err := os.CreateTemp(d.dir, "gtfs-*.zip")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	defer tmpFile.Close()

	written, err := io.Copy(tmpFile, resp.Body)
	if err != nil {
		os.Remove(tmpFile.Name())
		return nil, fmt.Errorf("write file: %w", err)
	}

	d.logger.Info("GTFS feed downloaded",
		"path", filepath.Base(tmpFile.Name()),
		"size_mb", fmt.Sprintf("%.1f", float64(written)/(1024*1024)),
	)
	return &Download{
		Path:         tmpFile.Name(),
		LastModified: resp.Header.Get("Last-Modified"),
		ETag:         resp.Header.Get("ETag"),
	}, nil
}
