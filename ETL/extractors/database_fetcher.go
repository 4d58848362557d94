package extractors

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/LilVoxy/northwind_etl/ETL/utils"
)

// sqliteHeader is the magic string every SQLite database file starts with
var sqliteHeader = []byte("SQLite format 3\x00")

// DatabaseFetcher keeps a local copy of the operational database
type DatabaseFetcher struct {
	url       string
	cachePath string
	client    *http.Client
	logger    *utils.ETLLogger
}

// NewDatabaseFetcher creates a new DatabaseFetcher
func NewDatabaseFetcher(url, cachePath string, client *http.Client, logger *utils.ETLLogger) *DatabaseFetcher {
	return &DatabaseFetcher{
		url:       url,
		cachePath: cachePath,
		client:    client,
		logger:    logger,
	}
}

// Ensure returns the path of a valid cached database, downloading it first
// when the cache is missing or not a SQLite file.
func (f *DatabaseFetcher) Ensure(ctx context.Context) (string, error) {
	ok, err := isSQLiteFile(f.cachePath)
	if err != nil {
		return "", err
	}
	if ok {
		f.logger.Debug("Database already exists locally: %s", f.cachePath)
		return f.cachePath, nil
	}

	if _, statErr := os.Stat(f.cachePath); statErr == nil {
		f.logger.Warn("Cached database %s is not a SQLite file, downloading again", f.cachePath)
	}

	if err := f.download(ctx); err != nil {
		return "", err
	}

	return f.cachePath, nil
}

// download writes the remote database to <cache>.part and renames it over the
// cache path once the copy is complete.
func (f *DatabaseFetcher) download(ctx context.Context) error {
	f.logger.Info("Downloading Northwind database from %s", f.url)

	if err := os.MkdirAll(filepath.Dir(f.cachePath), 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return fmt.Errorf("failed to build download request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download database: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("failed to download database: unexpected status %s", resp.Status)
	}

	partPath := f.cachePath + ".part"
	part, err := os.Create(partPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", partPath, err)
	}

	written, copyErr := io.Copy(part, resp.Body)
	closeErr := part.Close()

	if copyErr != nil {
		os.Remove(partPath)
		return fmt.Errorf("failed to download database: %w", copyErr)
	}
	if closeErr != nil {
		os.Remove(partPath)
		return fmt.Errorf("failed to write %s: %w", partPath, closeErr)
	}
	if resp.ContentLength >= 0 && written != resp.ContentLength {
		os.Remove(partPath)
		return fmt.Errorf("incomplete database download: got %d of %d bytes", written, resp.ContentLength)
	}

	ok, err := isSQLiteFile(partPath)
	if err != nil || !ok {
		os.Remove(partPath)
		return fmt.Errorf("downloaded file is not a SQLite database")
	}

	if err := os.Rename(partPath, f.cachePath); err != nil {
		os.Remove(partPath)
		return fmt.Errorf("failed to move database into place: %w", err)
	}

	f.logger.Info("Download complete: %d bytes", written)
	return nil
}

// isSQLiteFile reports whether path exists and starts with the SQLite header.
// A missing file is not an error.
func isSQLiteFile(path string) (bool, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	header := make([]byte, len(sqliteHeader))
	if _, err := io.ReadFull(file, header); err != nil {
		return false, nil
	}

	return bytes.Equal(header, sqliteHeader), nil
}
