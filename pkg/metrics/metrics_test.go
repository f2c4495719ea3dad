package metrics

import (
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordRunnerDispatch(t *testing.T) {
	m := New()
	m.RecordRunnerDispatch("wasm", "ran", 5*time.Millisecond)

	metricFamilies, err := m.Registry.Gather()
	require.NoError(t, err)
	assert.True(t, hasCounterSample(t, metricFamilies, "slipway_runner_dispatches_total", map[string]string{
		"runner": "wasm", "outcome": "ran",
	}))
}

func TestRecordPermissionDecision(t *testing.T) {
	m := New()
	m.RecordPermissionDecision("http", true)
	m.RecordPermissionDecision("file", false)

	metricFamilies, err := m.Registry.Gather()
	require.NoError(t, err)
	assert.True(t, hasCounterSample(t, metricFamilies, "slipway_permission_checks_total", map[string]string{
		"kind": "http", "decision": "allowed",
	}))
	assert.True(t, hasCounterSample(t, metricFamilies, "slipway_permission_checks_total", map[string]string{
		"kind": "file", "decision": "denied",
	}))
}

func TestRecordCacheLookups(t *testing.T) {
	m := New()
	m.RecordCacheHit()
	m.RecordCacheMiss()
	m.RecordCacheCoalesced()

	metricFamilies, err := m.Registry.Gather()
	require.NoError(t, err)
	for _, result := range []string{"hit", "miss", "coalesced"} {
		assert.True(t, hasCounterSample(t, metricFamilies, "slipway_loader_cache_lookups_total", map[string]string{
			"result": result,
		}), "missing sample for result=%s", result)
	}
}

func TestNilMetricsRecordIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordRunnerDispatch("wasm", "ran", time.Millisecond)
		m.RecordPermissionDecision("http", true)
		m.RecordCacheHit()
		m.RecordCacheMiss()
		m.RecordCacheCoalesced()
	})
}

func hasCounterSample(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) bool {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if labelsMatch(metric.GetLabel(), labels) {
				return true
			}
		}
	}
	return false
}

func labelsMatch(got []*dto.LabelPair, want map[string]string) bool {
	if len(got) != len(want) {
		return false
	}
	for _, lp := range got {
		if v, ok := want[lp.GetName()]; !ok || v != lp.GetValue() {
			return false
		}
	}
	return true
}
