package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordSearch(t *testing.T) {
	m := New()

	m.RecordSearch("success", 200*time.Millisecond, 8)
	m.RecordSearch("failed", time.Second, 0)
	m.RecordSearch("denied", 0, 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Searches.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Searches.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.QuotaDenied))
}

func TestRecorders(t *testing.T) {
	m := New()

	m.RecordLead("new")
	m.RecordLead("new")
	m.RecordLead("marketplace")
	m.SetQuotaRemaining(4)
	m.RecordPage(true)
	m.RecordPage(false)
	m.RecordContact("email")
	m.RecordSuggestions(3)
	m.RecordSuggestions(0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.LeadsCreated.WithLabelValues("new")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.QuotaRemaining))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PagesFetched.WithLabelValues("failed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.SuggestionsAdded))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordSearch("success", time.Second, 1)
		m.RecordLead("new")
		m.SetQuotaRemaining(1)
		m.RecordPage(true)
		m.RecordContact("phone")
		m.RecordSuggestions(1)
	})
}

func TestHandler(t *testing.T) {
	m := New()
	m.RecordLead("new")

	server := httptest.NewServer(m.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `leadsmith_leads_created_total{tab="new"} 1`)
}
