package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestNewIsIndependent(t *testing.T) {
	a := New()
	b := New()

	a.WorkflowOutcomes.WithLabelValues("READY").Inc()

	assert.Contains(t, scrape(t, a), `gostreamarr_resolution_workflows_total{state="READY"} 1`)
	assert.NotContains(t, scrape(t, b), `gostreamarr_resolution_workflows_total{state="READY"}`)
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.CacheLookups.WithLabelValues("exact").Add(2)
	m.Records.WithLabelValues("series").Set(5)

	body := scrape(t, m)
	assert.Contains(t, body, `gostreamarr_resolution_cache_lookups_total{result="exact"} 2`)
	assert.Contains(t, body, `gostreamarr_resolution_records{media_type="series"} 5`)
	assert.Contains(t, body, "go_goroutines")
}
