package metrics

import (
	"net/http"

	"github.com/WangYihang/Catalog-Crawler/pkg/domain/entity"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result label values
const (
	ResultOK      = entity.ResultOK
	ResultFailed  = entity.ResultFailed
	ResultSkipped = entity.ResultSkipped
	ResultRetried = entity.ResultRetried
)

// Collectors holds every Prometheus collector exported by the crawler.
// They live on a private registry so tests can build as many as they like.
type Collectors struct {
	Registry *prometheus.Registry

	Captures        *prometheus.CounterVec
	DetailFetches   *prometheus.CounterVec
	HTTPAttempts    *prometheus.CounterVec
	Derivations     *prometheus.CounterVec
	ItemsCollected  prometheus.Counter
	StoredItems     prometheus.Gauge
	CapturesRunning prometheus.Gauge
}

// New creates and registers the collectors
func New() *Collectors {
	c := &Collectors{
		Registry: prometheus.NewRegistry(),
		Captures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_captures_total",
			Help: "Observed search requests by outcome.",
		}, []string{"result"}),
		DetailFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_detail_fetches_total",
			Help: "Signed detail requests by outcome.",
		}, []string{"result"}),
		HTTPAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_http_attempts_total",
			Help: "Individual HTTP attempts by outcome.",
		}, []string{"result"}),
		Derivations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_signature_derivations_total",
			Help: "Secret derivations from the application bundle by outcome.",
		}, []string{"result"}),
		ItemsCollected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "catalog_items_collected_total",
			Help: "Canonical items appended to the store.",
		}),
		StoredItems: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "catalog_stored_items",
			Help: "Items currently held in the store.",
		}),
		CapturesRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "catalog_captures_in_flight",
			Help: "Search requests currently being processed.",
		}),
	}
	c.Registry.MustRegister(
		c.Captures, c.DetailFetches, c.HTTPAttempts, c.Derivations,
		c.ItemsCollected, c.StoredItems, c.CapturesRunning,
		collectors.NewGoCollector(),
	)
	return c
}

// Handler serves the registry in the Prometheus text format
func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.Registry, promhttp.HandlerOpts{Registry: c.Registry})
}

// ObserveAttempt counts one HTTP attempt; nil receivers are ignored
func (c *Collectors) ObserveAttempt(result string) {
	if c == nil {
		return
	}
	c.HTTPAttempts.WithLabelValues(result).Inc()
}

// ObserveDerivation counts one secret derivation
func (c *Collectors) ObserveDerivation(ok bool) {
	if c == nil {
		return
	}
	c.Derivations.WithLabelValues(resultOf(ok)).Inc()
}

// ObserveCapture counts one observed search request
func (c *Collectors) ObserveCapture(result string) {
	if c == nil {
		return
	}
	c.Captures.WithLabelValues(result).Inc()
}

// ObserveDetail counts one detail request
func (c *Collectors) ObserveDetail(result string) {
	if c == nil {
		return
	}
	c.DetailFetches.WithLabelValues(result).Inc()
}

// ObserveItem counts one collected item
func (c *Collectors) ObserveItem() {
	if c == nil {
		return
	}
	c.ItemsCollected.Inc()
}

// SetStored updates the stored items gauge
func (c *Collectors) SetStored(n int) {
	if c == nil {
		return
	}
	c.StoredItems.Set(float64(n))
}

// TrackCapture moves the in-flight gauge by delta
func (c *Collectors) TrackCapture(delta float64) {
	if c == nil {
		return
	}
	c.CapturesRunning.Add(delta)
}

func resultOf(ok bool) string {
	if ok {
		return ResultOK
	}
	return ResultFailed
}
