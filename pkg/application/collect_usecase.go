package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/WangYihang/Catalog-Crawler/pkg/domain/entity"
	"github.com/WangYihang/Catalog-Crawler/pkg/domain/repository"
	"github.com/WangYihang/Catalog-Crawler/pkg/domain/service"
	"github.com/WangYihang/Catalog-Crawler/pkg/normalize"
	"github.com/WangYihang/Catalog-Crawler/pkg/signing"
	"github.com/google/uuid"
)

const apiHosts = `catalog\.api\.2gis\.(?:ru|kz|kg|uz|com|by|am|ge|az|md|tj|tm|ae|sa|it)`

var (
	searchPattern  = regexp.MustCompile(apiHosts + `/3\.0/items\?`)
	markersPattern = regexp.MustCompile(apiHosts + `/3\.0/markers/clustered\?`)
)

// CaptureKind tells how an observed URL is handled
type CaptureKind int

const (
	// CaptureNone is ignored
	CaptureNone CaptureKind = iota
	// CaptureSearch is a search request replayed as is
	CaptureSearch
	// CaptureMarkers is a map markers request turned into a signed search
	CaptureMarkers
)

// Classify reports whether rawURL is a catalog request the pipeline handles
func Classify(rawURL string) CaptureKind {
	switch {
	case searchPattern.MatchString(rawURL):
		return CaptureSearch
	case markersPattern.MatchString(rawURL):
		return CaptureMarkers
	default:
		return CaptureNone
	}
}

// MetricsObserver observes collection progress
type MetricsObserver interface {
	OnMetricsUpdate(metrics *entity.Metrics)
	AddItem(item entity.CanonicalItem) // Notify when a new item is collected
}

// Counters receives outcome counts, typically Prometheus collectors
type Counters interface {
	ObserveCapture(result string)
	ObserveDetail(result string)
	ObserveItem()
	TrackCapture(delta float64)
}

type noCounters struct{}

func (noCounters) ObserveCapture(string) {}
func (noCounters) ObserveDetail(string)  {}
func (noCounters) ObserveItem()          {}
func (noCounters) TrackCapture(float64)  {}

// CollectConfig holds the pipeline configuration
type CollectConfig struct {
	// Paused starts the pipeline with collection disabled
	Paused bool
}

// CollectUseCase turns observed search requests into canonical items
type CollectUseCase struct {
	config CollectConfig

	// Services
	fetcher service.JSONFetcher
	secrets service.SecretProvider

	// Repositories
	state  repository.StateRepository
	filter repository.URLFilter

	counters Counters
	logger   *slog.Logger

	// State
	collecting       atomic.Bool
	metrics          *entity.Metrics
	metricsLock      sync.RWMutex
	metricsObservers []MetricsObserver

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewCollectUseCase creates the pipeline. filter and counters may be nil.
func NewCollectUseCase(
	config CollectConfig,
	fetcher service.JSONFetcher,
	secrets service.SecretProvider,
	state repository.StateRepository,
	filter repository.URLFilter,
	counters Counters,
	logger *slog.Logger,
) *CollectUseCase {
	if counters == nil {
		counters = noCounters{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	uc := &CollectUseCase{
		config:   config,
		fetcher:  fetcher,
		secrets:  secrets,
		state:    state,
		filter:   filter,
		counters: counters,
		logger:   logger,
		metrics:  &entity.Metrics{StartTime: time.Now()},
		ctx:      ctx,
		cancel:   cancel,
	}
	uc.collecting.Store(!config.Paused)
	return uc
}

// RegisterMetricsObserver registers a metrics observer
func (uc *CollectUseCase) RegisterMetricsObserver(observer MetricsObserver) {
	uc.metricsLock.Lock()
	defer uc.metricsLock.Unlock()
	uc.metricsObservers = append(uc.metricsObservers, observer)
}

// notifyMetricsObservers notifies all registered observers
func (uc *CollectUseCase) notifyMetricsObservers() {
	metrics := uc.GetMetrics()

	uc.metricsLock.RLock()
	observers := uc.metricsObservers
	uc.metricsLock.RUnlock()

	for _, observer := range observers {
		observer.OnMetricsUpdate(metrics)
	}
}

func (uc *CollectUseCase) notifyItem(item entity.CanonicalItem) {
	uc.metricsLock.Lock()
	uc.metrics.LastCollectedItem = item.Name
	observers := uc.metricsObservers
	uc.metricsLock.Unlock()

	for _, observer := range observers {
		observer.AddItem(item)
	}
}

func (uc *CollectUseCase) incr(counter *int64) {
	atomic.AddInt64(counter, 1)
	uc.notifyMetricsObservers()
}

// GetMetrics returns a copy of the current metrics
func (uc *CollectUseCase) GetMetrics() *entity.Metrics {
	uc.metricsLock.RLock()
	defer uc.metricsLock.RUnlock()

	m := entity.Metrics{
		CapturesSeen:      atomic.LoadInt64(&uc.metrics.CapturesSeen),
		CapturesSkipped:   atomic.LoadInt64(&uc.metrics.CapturesSkipped),
		CapturesActive:    atomic.LoadInt64(&uc.metrics.CapturesActive),
		ListFetches:       atomic.LoadInt64(&uc.metrics.ListFetches),
		ListFailures:      atomic.LoadInt64(&uc.metrics.ListFailures),
		DetailFetches:     atomic.LoadInt64(&uc.metrics.DetailFetches),
		DetailFailures:    atomic.LoadInt64(&uc.metrics.DetailFailures),
		SignSkips:         atomic.LoadInt64(&uc.metrics.SignSkips),
		DuplicateItems:    atomic.LoadInt64(&uc.metrics.DuplicateItems),
		ItemsCollected:    atomic.LoadInt64(&uc.metrics.ItemsCollected),
		SignatureResets:   atomic.LoadInt64(&uc.metrics.SignatureResets),
		StoreErrors:       atomic.LoadInt64(&uc.metrics.StoreErrors),
		StoredItems:       atomic.LoadInt64(&uc.metrics.StoredItems),
		StartTime:         uc.metrics.StartTime,
		LastCapturedURL:   uc.metrics.LastCapturedURL,
		LastCollectedItem: uc.metrics.LastCollectedItem,
	}
	m.Collecting = uc.collecting.Load()
	m.LastUpdateTime = time.Now()
	return &m
}

// SetStoredItems records the number of items held by the store
func (uc *CollectUseCase) SetStoredItems(n int) {
	atomic.StoreInt64(&uc.metrics.StoredItems, int64(n))
	uc.notifyMetricsObservers()
}

// SetCollecting enables or disables collection. Captures already running
// finish the item in flight and start no further ones.
func (uc *CollectUseCase) SetCollecting(enabled bool) {
	if uc.collecting.Swap(enabled) != enabled {
		uc.logger.Info("collect: collection toggled", "enabled", enabled)
	}
	uc.notifyMetricsObservers()
}

// IsCollecting reports whether collection is enabled
func (uc *CollectUseCase) IsCollecting() bool {
	return uc.collecting.Load()
}

// SeedCaptured primes the URL filter with already captured URLs
func (uc *CollectUseCase) SeedCaptured(urls []string) {
	if uc.filter == nil {
		return
	}
	uc.filter.Seed(urls)
}

// ResetCaptured forgets the URLs suppressed by the filter, after a clear
func (uc *CollectUseCase) ResetCaptured() {
	if uc.filter != nil {
		uc.filter.Reset()
	}
}

// OnAPIListRequest handles an observed request in the background.
// It returns immediately; irrelevant and recently seen URLs are dropped.
func (uc *CollectUseCase) OnAPIListRequest(rawURL string) {
	if Classify(rawURL) == CaptureNone || uc.ctx.Err() != nil {
		return
	}
	if !uc.IsCollecting() {
		uc.incr(&uc.metrics.CapturesSkipped)
		uc.counters.ObserveCapture(entity.ResultSkipped)
		return
	}
	if uc.filter != nil && uc.filter.Test(rawURL) {
		uc.incr(&uc.metrics.CapturesSkipped)
		uc.counters.ObserveCapture(entity.ResultSkipped)
		return
	}

	uc.wg.Add(1)
	go func() {
		defer uc.wg.Done()
		if _, err := uc.Process(uc.ctx, rawURL); err != nil && !errors.Is(err, context.Canceled) {
			uc.logger.Error("collect: capture failed", "url", rawURL, "error", err)
		}
	}()
}

// Run notifies observers periodically until ctx is done, then waits for
// captures in flight.
func (uc *CollectUseCase) Run(ctx context.Context) error {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			uc.Stop()
			return ctx.Err()
		case <-ticker.C:
			uc.notifyMetricsObservers()
		}
	}
}

// Wait blocks until every capture started by OnAPIListRequest is done
func (uc *CollectUseCase) Wait() {
	uc.wg.Wait()
}

// Stop cancels captures in flight and waits for them
func (uc *CollectUseCase) Stop() {
	uc.cancel()
	uc.wg.Wait()
}

// Process runs the pipeline for one observed URL and returns the number of
// items it appended. Per-item failures are logged and skipped; the returned
// error is limited to failing to record the URL itself.
func (uc *CollectUseCase) Process(ctx context.Context, rawURL string) (int, error) {
	kind := Classify(rawURL)
	if kind == CaptureNone {
		return 0, nil
	}
	if !uc.IsCollecting() {
		uc.incr(&uc.metrics.CapturesSkipped)
		uc.counters.ObserveCapture(entity.ResultSkipped)
		return 0, nil
	}

	logger := uc.logger.With("run", uuid.NewString())
	atomic.AddInt64(&uc.metrics.CapturesActive, 1)
	uc.counters.TrackCapture(1)
	defer func() {
		atomic.AddInt64(&uc.metrics.CapturesActive, -1)
		uc.counters.TrackCapture(-1)
		uc.notifyMetricsObservers()
	}()

	isNew, err := uc.state.MarkCaptured(ctx, rawURL)
	if err != nil {
		uc.incr(&uc.metrics.StoreErrors)
		uc.counters.ObserveCapture(entity.ResultFailed)
		return 0, fmt.Errorf("collect: mark captured: %w", err)
	}
	if uc.filter != nil {
		uc.filter.Add(rawURL)
	}
	if !isNew {
		uc.incr(&uc.metrics.CapturesSkipped)
		uc.counters.ObserveCapture(entity.ResultSkipped)
		return 0, nil
	}

	uc.metricsLock.Lock()
	uc.metrics.LastCapturedURL = rawURL
	uc.metricsLock.Unlock()
	uc.incr(&uc.metrics.CapturesSeen)
	logger.Info("collect: processing", "url", rawURL)

	params, err := uc.secrets.EnsureParams(ctx)
	if err != nil {
		logger.Warn("collect: secrets unavailable, details will be skipped", "error", err)
	}

	searchURL := rawURL
	if kind == CaptureMarkers {
		searchURL, err = signing.SignListURL(rawURL, params)
		if err != nil {
			logger.Warn("collect: cannot sign search for markers", "error", err)
			uc.incr(&uc.metrics.SignSkips)
			uc.counters.ObserveCapture(entity.ResultFailed)
			return 0, nil
		}
	}

	var list normalize.ListResponse
	uc.incr(&uc.metrics.ListFetches)
	if !uc.fetcher.FetchJSON(ctx, searchURL, &list) {
		uc.incr(&uc.metrics.ListFailures)
		uc.counters.ObserveCapture(entity.ResultFailed)
		logger.Warn("collect: search fetch failed", "url", searchURL)
		return 0, nil
	}
	uc.counters.ObserveCapture(entity.ResultOK)
	if len(list.Result.Items) == 0 {
		logger.Info("collect: no items in response")
		return 0, nil
	}
	logger.Info("collect: found items", "count", len(list.Result.Items))

	collected := 0
	for _, item := range list.Result.Items {
		if !uc.IsCollecting() || ctx.Err() != nil {
			logger.Info("collect: stopped", "collected", collected)
			break
		}
		if uc.collectItem(ctx, logger, searchURL, item) {
			collected++
		}
	}
	return collected, nil
}

// collectItem fetches and stores one search result; it reports whether an
// item was appended.
func (uc *CollectUseCase) collectItem(ctx context.Context, logger *slog.Logger, searchURL string, item normalize.ListItem) bool {
	key := normalize.ItemKey(item)
	if key == "" {
		return false
	}

	isNew, err := uc.state.ReserveKey(ctx, key)
	if err != nil {
		uc.incr(&uc.metrics.StoreErrors)
		logger.Error("collect: reserve key", "key", key, "error", err)
		return false
	}
	if !isNew {
		uc.incr(&uc.metrics.DuplicateItems)
		return false
	}

	// secrets are derived once per capture; after a reset the remaining
	// items are skipped until the next capture derives them again
	detailURL, err := signing.SignDetailURL(searchURL, item.ID, uc.secrets.Current())
	if err != nil {
		// never fetched: a later capture may try again
		if rerr := uc.state.ReleaseKey(ctx, key); rerr != nil {
			logger.Error("collect: release key", "key", key, "error", rerr)
		}
		uc.incr(&uc.metrics.SignSkips)
		uc.counters.ObserveDetail(entity.ResultSkipped)
		logger.Warn("collect: cannot build detail url", "id", item.ID, "error", err)
		return false
	}

	var detail normalize.DetailResponse
	uc.incr(&uc.metrics.DetailFetches)
	ok := uc.fetcher.FetchJSON(ctx, detailURL, &detail)
	if ctx.Err() != nil {
		return false
	}
	if !ok || len(detail.Result.Items) == 0 {
		uc.secrets.Invalidate()
		uc.incr(&uc.metrics.DetailFailures)
		uc.incr(&uc.metrics.SignatureResets)
		uc.counters.ObserveDetail(entity.ResultFailed)
		logger.Warn("collect: detail fetch failed, secrets reset", "id", item.ID)
		return false
	}
	uc.counters.ObserveDetail(entity.ResultOK)

	canonical := normalize.ExtractItem(normalize.DecodeDetailItem(detail.Result.Items[0]))
	if err := uc.state.AppendItem(ctx, canonical); err != nil {
		uc.incr(&uc.metrics.StoreErrors)
		logger.Error("collect: append item", "name", canonical.Name, "error", err)
		return false
	}

	uc.incr(&uc.metrics.ItemsCollected)
	uc.counters.ObserveItem()
	uc.notifyItem(canonical)
	logger.Debug("collect: added", "name", canonical.Name)
	return true
}
