package simplenews

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Orphan reasons reported in Metrics.OrphanedAssets and EventSink.AssetOrphaned.
const (
	OrphanReasonCompensationFailed = "compensation_failed"
	OrphanReasonDeleteFailed       = "delete_failed"
)

// Metrics holds the prometheus collectors of the core. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	Mutations      *prometheus.CounterVec
	Compensations  prometheus.Counter
	OrphanedAssets *prometheus.CounterVec
	Refreshes      *prometheus.CounterVec
	CachedItems    *prometheus.GaugeVec
	Increments     *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg when reg is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "simplenews",
			Name:      "mutations_total",
			Help:      "Mutations handled by the pipeline by operation and result.",
		}, []string{"op", "result"}),
		Compensations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "simplenews",
			Name:      "compensations_total",
			Help:      "Compensating deletes issued after a failed insert.",
		}),
		OrphanedAssets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "simplenews",
			Name:      "orphaned_assets_total",
			Help:      "Stored media left without a referencing record.",
		}, []string{"reason"}),
		Refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "simplenews",
			Name:      "catalog_refresh_total",
			Help:      "Catalog refreshes by result.",
		}, []string{"result"}),
		CachedItems: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "simplenews",
			Name:      "catalog_items",
			Help:      "Records held in the catalog cache.",
		}, []string{"kind"}),
		Increments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "simplenews",
			Name:      "engagement_increments_total",
			Help:      "Engagement counter increments by counter, mode and result.",
		}, []string{"counter", "mode", "result"}),
	}
	if reg != nil {
		reg.MustRegister(m.Mutations, m.Compensations, m.OrphanedAssets, m.Refreshes, m.CachedItems, m.Increments)
	}
	return m
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *Metrics) mutation(op string, err error) {
	if m == nil {
		return
	}
	m.Mutations.WithLabelValues(op, resultLabel(err)).Inc()
}

func (m *Metrics) compensation() {
	if m == nil {
		return
	}
	m.Compensations.Inc()
}

func (m *Metrics) orphaned(reason string) {
	if m == nil {
		return
	}
	m.OrphanedAssets.WithLabelValues(reason).Inc()
}

func (m *Metrics) refresh(err error, items, slides int) {
	if m == nil {
		return
	}
	m.Refreshes.WithLabelValues(resultLabel(err)).Inc()
	if err == nil {
		m.CachedItems.WithLabelValues(KindContentItem).Set(float64(items))
		m.CachedItems.WithLabelValues(KindSliderEntry).Set(float64(slides))
	}
}

func (m *Metrics) increment(field CounterField, mode string, err error) {
	if m == nil {
		return
	}
	m.Increments.WithLabelValues(string(field), mode, resultLabel(err)).Inc()
}
