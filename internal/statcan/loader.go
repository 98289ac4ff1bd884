// Package statcan downloads and parses the Statistics Canada Consumer Price
// Index series (table 18-10-0004-01, base 2002=100).
package statcan

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"cpidash/internal/core"
)

// TableID is the StatsCan table this loader understands.
const TableID = "18100004"

const (
	defaultCSVURL = "https://www150.statcan.gc.ca/t1/tbl1/en/dtl!downloadDbLoadingData-nonTraduit.action?pid=" +
		TableID + "01&latestN=0&startDate=&endDate=&csvLocale=en&selectedMembers=%5B%5B%5D%5D"
	defaultZipURL = "https://www150.statcan.gc.ca/n1/tbl/csv/" + TableID + "-eng.zip"

	downloadTimeout = 30 * time.Second
)

// Loader fetches and parses the CPI series. The zero URL fields default to
// the official StatsCan endpoints; tests point them at a local server.
type Loader struct {
	client *http.Client
	csvURL string
	zipURL string
}

// Option customizes a Loader.
type Option func(*Loader)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(l *Loader) { l.client = c }
}

// WithURLs overrides the download endpoints. Empty strings keep the
// official ones.
func WithURLs(csvURL, zipURL string) Option {
	return func(l *Loader) {
		if csvURL != "" {
			l.csvURL = csvURL
		}
		if zipURL != "" {
			l.zipURL = zipURL
		}
	}
}

// New builds a Loader with the official endpoints and a 30s timeout.
func New(opts ...Option) *Loader {
	l := &Loader{
		client: &http.Client{Timeout: downloadTimeout},
		csvURL: defaultCSVURL,
		zipURL: defaultZipURL,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load downloads the latest CPI data and parses it into long-format
// observations. The tbl1 CSV endpoint is tried first, then the direct zip
// archive as a fallback.
func (l *Loader) Load(ctx context.Context) ([]core.Observation, error) {
	slog.InfoContext(ctx, "Downloading CPI data from Statistics Canada", "table", TableID)

	data, csvErr := l.fetch(ctx, l.csvURL)
	if csvErr == nil {
		if obs, err := ParseCSV(data); err == nil {
			slog.InfoContext(ctx, "Parsed CPI data", "observations", len(obs), "source", "csv")
			return obs, nil
		} else {
			csvErr = err
		}
	}
	slog.WarnContext(ctx, "CSV endpoint failed, trying zip archive", "error", csvErr)

	zipped, err := l.fetch(ctx, l.zipURL)
	if err != nil {
		return nil, fmt.Errorf("download CPI data: csv: %v; zip: %w", csvErr, err)
	}
	data, err = extractCSV(zipped)
	if err != nil {
		return nil, fmt.Errorf("extract CPI zip: %w", err)
	}
	obs, err := ParseCSV(data)
	if err != nil {
		return nil, fmt.Errorf("parse CPI zip CSV: %w", err)
	}
	slog.InfoContext(ctx, "Parsed CPI data", "observations", len(obs), "source", "zip")
	return obs, nil
}

func (l *Loader) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// extractCSV returns the first data CSV inside the StatsCan zip archive
// (the archive also ships a *_MetaData.csv, which is skipped).
func extractCSV(zipped []byte) ([]byte, error) {
	r, err := zip.NewReader(bytes.NewReader(zipped), int64(len(zipped)))
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	for _, f := range r.File {
		name := strings.ToLower(f.Name)
		if !strings.HasSuffix(name, ".csv") || strings.Contains(name, "metadata") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.Name, err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("no CSV file in archive")
}
