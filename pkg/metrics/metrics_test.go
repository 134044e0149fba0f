package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestStoreMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector("test", reg)
	m := c.ForStore("orders")

	m.RowAdded(1)
	m.RowAdded(2)
	m.RowRemoved(1)
	m.RowMaterialized()
	m.ColumnLoaded(4)
	m.Error(OpRow)
	m.Error(OpRow)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.rowsAdded.WithLabelValues("orders")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.rowsRemoved.WithLabelValues("orders")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.rowsMaterialized.WithLabelValues("orders")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.columnsLoaded.WithLabelValues("orders")))
	assert.Equal(t, 4.0, testutil.ToFloat64(c.rows.WithLabelValues("orders")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.operationErrors.WithLabelValues("orders", OpRow)))
}

func TestNilStoreMetricsIsNoop(t *testing.T) {
	var c *Collector
	m := c.ForStore("x")
	assert.Nil(t, m)

	assert.NotPanics(t, func() {
		m.RowAdded(1)
		m.RowRemoved(0)
		m.RowMaterialized()
		m.ColumnLoaded(0)
		m.Error(OpAddRow)
	})
}

func TestSeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewCollector("a", prometheus.NewRegistry())
		NewCollector("a", prometheus.NewRegistry())
	})
}
