package credaudit_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watchsec/credaudit/pkg/credaudit"
)

func TestCollector_RecordRun(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := credaudit.NewCollector(registry)

	collector.RecordRun(credaudit.CredentialStats{
		Total: 10, Kept: 6, Disabled: 2, Deleted: 1, Failed: 1,
	}, 250*time.Millisecond)
	collector.RecordRun(credaudit.CredentialStats{
		Total: 4, Kept: 4,
	}, 100*time.Millisecond)

	families, err := registry.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)

	counts := map[string]float64{
		"credaudit_credentials_audited_total":  14,
		"credaudit_credentials_kept_total":     10,
		"credaudit_credentials_disabled_total": 2,
		"credaudit_credentials_deleted_total":  1,
		"credaudit_actions_failed_total":       1,
	}
	for name, want := range counts {
		got, err := testutil.GatherAndCount(registry, name)
		require.NoError(t, err)
		require.Equal(t, 1, got, "metric %s must be registered", name)
		assert.Equal(t, want, valueOf(t, registry, name), "metric %s", name)
	}
}

func valueOf(t *testing.T, registry *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := registry.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			return mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

func TestMetricsHandler_ServesScrapeFormat(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := credaudit.NewCollector(registry)
	collector.RecordRun(credaudit.CredentialStats{Total: 1, Kept: 1}, time.Millisecond)

	server := httptest.NewServer(credaudit.MetricsHandler(registry))
	t.Cleanup(server.Close)

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNopMetrics_IsSilent(t *testing.T) {
	var m credaudit.Metrics = credaudit.NopMetrics{}
	m.RecordRun(credaudit.CredentialStats{Total: 1}, time.Second)
}
