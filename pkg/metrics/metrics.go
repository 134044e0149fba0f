// Package metrics provides Prometheus instrumentation for tabular stores.
//
// A Collector is created against a prometheus.Registerer so that several
// stores (and tests) can each own an isolated registry:
//
//	reg := prometheus.NewRegistry()
//	collector := metrics.NewCollector("dremel", reg)
//	store, _ := table.NewStore(s, table.WithMetrics(collector, "orders"))
//
// Counters are labelled with the store name given to ForStore.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Operation names used for the op label of OperationErrors.
const (
	OpAddRow     = "add_row"
	OpRow        = "row"
	OpRemoveRow  = "remove_row"
	OpLoadColumn = "load_column"
	OpColumn     = "column"
)

// Collector owns the metric vectors shared by every store registered with it.
type Collector struct {
	rowsAdded        *prometheus.CounterVec
	rowsRemoved      *prometheus.CounterVec
	rowsMaterialized *prometheus.CounterVec
	columnsLoaded    *prometheus.CounterVec
	operationErrors  *prometheus.CounterVec
	rows             *prometheus.GaugeVec
}

// NewCollector registers the store metrics under namespace with reg. A nil
// reg registers with prometheus.DefaultRegisterer.
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Collector{
		rowsAdded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_added_total",
			Help:      "Rows decomposed into column containers",
		}, []string{"store"}),
		rowsRemoved: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_removed_total",
			Help:      "Rows removed from column containers",
		}, []string{"store"}),
		rowsMaterialized: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_materialized_total",
			Help:      "Nested rows assembled from column containers",
		}, []string{"store"}),
		columnsLoaded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "columns_loaded_total",
			Help:      "Column fragments merged into a store",
		}, []string{"store"}),
		operationErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_errors_total",
			Help:      "Failed store operations by operation",
		}, []string{"store", "op"}),
		rows: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rows",
			Help:      "Current row count of a store",
		}, []string{"store"}),
	}
}

// StoreMetrics is a Collector bound to one store label. A nil *StoreMetrics
// is valid and records nothing.
type StoreMetrics struct {
	rowsAdded        prometheus.Counter
	rowsRemoved      prometheus.Counter
	rowsMaterialized prometheus.Counter
	columnsLoaded    prometheus.Counter
	rows             prometheus.Gauge
	errors           *prometheus.CounterVec
	store            string
}

// ForStore returns the metrics for the named store.
func (c *Collector) ForStore(store string) *StoreMetrics {
	if c == nil {
		return nil
	}
	return &StoreMetrics{
		rowsAdded:        c.rowsAdded.WithLabelValues(store),
		rowsRemoved:      c.rowsRemoved.WithLabelValues(store),
		rowsMaterialized: c.rowsMaterialized.WithLabelValues(store),
		columnsLoaded:    c.columnsLoaded.WithLabelValues(store),
		rows:             c.rows.WithLabelValues(store),
		errors:           c.operationErrors,
		store:            store,
	}
}

// RowAdded records one decomposed row and the new row count.
func (m *StoreMetrics) RowAdded(rowCount int) {
	if m == nil {
		return
	}
	m.rowsAdded.Inc()
	m.rows.Set(float64(rowCount))
}

// RowRemoved records one removed row and the new row count.
func (m *StoreMetrics) RowRemoved(rowCount int) {
	if m == nil {
		return
	}
	m.rowsRemoved.Inc()
	m.rows.Set(float64(rowCount))
}

// RowMaterialized records one assembled row.
func (m *StoreMetrics) RowMaterialized() {
	if m == nil {
		return
	}
	m.rowsMaterialized.Inc()
}

// ColumnLoaded records a merged column fragment and the new row count.
func (m *StoreMetrics) ColumnLoaded(rowCount int) {
	if m == nil {
		return
	}
	m.columnsLoaded.Inc()
	m.rows.Set(float64(rowCount))
}

// Error records a failed operation.
func (m *StoreMetrics) Error(op string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(m.store, op).Inc()
}
