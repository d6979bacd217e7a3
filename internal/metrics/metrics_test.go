package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordImport(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewImportMetrics(registry)
	require.NoError(t, err)

	m.RecordImport("ParsedAndValid", 12, 20*time.Millisecond)
	m.RecordImport("ParsedAndValid", 3, 10*time.Millisecond)
	m.RecordImport("CannotParse", 0, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.importsTotal.WithLabelValues("ParsedAndValid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.importsTotal.WithLabelValues("CannotParse")))
	assert.Equal(t, 15.0, testutil.ToFloat64(m.verticalsImported))
	assert.Equal(t, 1, testutil.CollectAndCount(m.importDuration, "qreview_import_duration_seconds"))
}

func TestNewImportMetricsDuplicateRegistration(t *testing.T) {
	registry := prometheus.NewRegistry()
	_, err := NewImportMetrics(registry)
	require.NoError(t, err)

	_, err = NewImportMetrics(registry)
	assert.Error(t, err)
}

func TestNilMetricsAreDisabled(t *testing.T) {
	var m *ImportMetrics
	assert.NotPanics(t, func() { m.RecordImport("CannotParse", 0, time.Second) })
}

func TestNewRegistry(t *testing.T) {
	registry := NewRegistry()
	families, err := registry.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
