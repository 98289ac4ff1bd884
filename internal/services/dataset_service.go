package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"cpidash/internal/core"
	"cpidash/internal/log"
	"cpidash/internal/metrics"
	"cpidash/internal/storage"
)

// Downloader fetches the full CPI table from Statistics Canada.
type Downloader interface {
	Load(ctx context.Context) ([]core.Observation, error)
}

// Repository is the persistent cache backing the dataset service.
type Repository interface {
	ReplaceAll(ctx context.Context, observations []core.Observation) error
	LoadAll(ctx context.Context) ([]core.Observation, error)
	LastRefreshedAt(ctx context.Context) (time.Time, bool, error)
	CacheInfo(ctx context.Context) (storage.Info, error)
	Clear(ctx context.Context) error
}

// ErrNoData is returned when neither the cache nor a download can
// produce a dataset.
var ErrNoData = errors.New("no CPI data available")

// DatasetService hands out immutable metric tables built from the
// cached CPI download, refreshing from Statistics Canada when the
// cache is stale or missing.
type DatasetService struct {
	store     Repository
	loader    Downloader
	maxAge    time.Duration
	structLog *log.StructuredLogger

	mu        sync.RWMutex
	table     metrics.Table
	loadedAt  time.Time
	onRefresh []func()
}

func NewDatasetService(store Repository, loader Downloader, maxAge time.Duration) *DatasetService {
	return &DatasetService{
		store:     store,
		loader:    loader,
		maxAge:    maxAge,
		structLog: log.NewStructuredLogger(log.New(log.Config{Component: log.ComponentDataset})),
	}
}

// OnRefresh registers a callback invoked after every successful
// refresh. Used to drop derived caches. Not safe to call once the
// service is serving requests.
func (s *DatasetService) OnRefresh(fn func()) {
	s.onRefresh = append(s.onRefresh, fn)
}

// Table returns the current metric table, downloading a fresh dataset
// first when the cache is stale or empty. Callers must treat the
// returned table as read-only.
func (s *DatasetService) Table(ctx context.Context) (metrics.Table, error) {
	s.mu.RLock()
	table := s.table
	loadedAt := s.loadedAt
	s.mu.RUnlock()

	if table != nil && time.Since(loadedAt) < s.maxAge {
		return table, nil
	}

	return s.load(ctx, false)
}

// Refresh forces a download and cache replacement regardless of age.
func (s *DatasetService) Refresh(ctx context.Context) (metrics.Table, error) {
	return s.load(ctx, true)
}

// ReloadFromStore rebuilds the in-memory table from the persistent
// cache without downloading. Used when another process refreshed the
// cache and announced it over AMQP.
func (s *DatasetService) ReloadFromStore(ctx context.Context) error {
	observations, err := s.store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load cached observations: %w", err)
	}
	if len(observations) == 0 {
		return ErrNoData
	}

	s.install(buildTable(observations))
	slog.InfoContext(ctx, "Dataset reloaded from cache", "rows", len(observations))
	return nil
}

func (s *DatasetService) load(ctx context.Context, force bool) (metrics.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Another caller may have refreshed while we waited for the lock.
	if !force && s.table != nil && time.Since(s.loadedAt) < s.maxAge {
		return s.table, nil
	}

	if !force {
		if table, ok := s.tryCache(ctx, false); ok {
			s.installLocked(table)
			return table, nil
		}
	}

	observations, err := s.loader.Load(ctx)
	if err != nil {
		// A stale cache beats no data at all.
		if table, ok := s.tryCache(ctx, true); ok {
			slog.WarnContext(ctx, "Download failed, serving stale cache", "error", err)
			s.installLocked(table)
			return table, nil
		}
		return nil, fmt.Errorf("download CPI table: %w", err)
	}

	if err := s.store.ReplaceAll(ctx, observations); err != nil {
		return nil, fmt.Errorf("persist CPI table: %w", err)
	}

	table := buildTable(observations)
	s.installLocked(table)
	s.structLog.LogDatasetRefreshed(ctx, len(observations), len(table.Categories()), "statcan")
	return table, nil
}

// tryCache loads the persistent cache when it exists and, unless
// allowStale is set, is younger than maxAge. The caller holds the
// write lock.
func (s *DatasetService) tryCache(ctx context.Context, allowStale bool) (metrics.Table, bool) {
	refreshedAt, ok, err := s.store.LastRefreshedAt(ctx)
	if err != nil || !ok {
		return nil, false
	}
	if !allowStale && time.Since(refreshedAt) > s.maxAge {
		return nil, false
	}

	observations, err := s.store.LoadAll(ctx)
	if err != nil || len(observations) == 0 {
		return nil, false
	}

	return buildTable(observations), true
}

func (s *DatasetService) install(table metrics.Table) {
	s.mu.Lock()
	s.installLocked(table)
	s.mu.Unlock()
}

func (s *DatasetService) installLocked(table metrics.Table) {
	s.table = table
	s.loadedAt = time.Now()
	for _, fn := range s.onRefresh {
		fn()
	}
}

// CacheInfo describes the persistent cache for the status endpoint.
func (s *DatasetService) CacheInfo(ctx context.Context) (storage.Info, error) {
	return s.store.CacheInfo(ctx)
}

// ClearCache drops the persistent cache and the in-memory table.
func (s *DatasetService) ClearCache(ctx context.Context) error {
	if err := s.store.Clear(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	s.table = nil
	s.loadedAt = time.Time{}
	s.mu.Unlock()
	return nil
}

func buildTable(observations []core.Observation) metrics.Table {
	return metrics.AddAllMetrics(metrics.FromObservations(observations))
}
