package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func find(t *testing.T, reg *prometheus.Registry, name, lbl, value string) *dto.Metric {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == lbl && lp.GetValue() == value {
					return m
				}
			}
		}
	}
	t.Fatalf("metric %s{%s=%q} not found", name, lbl, value)
	return nil
}

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveSearch("ok", 120*time.Millisecond)
	m.ObserveSearch("ok", 80*time.Millisecond)
	m.ObserveSearch("", time.Millisecond)
	m.IncLogin("SUCCESS")
	m.IncToggle("add")
	m.IncToggle("add")

	require.Equal(t, 2.0, find(t, reg, "danaom_search_requests_total", "outcome", "ok").GetCounter().GetValue())
	require.Equal(t, 1.0, find(t, reg, "danaom_search_requests_total", "outcome", "unknown").GetCounter().GetValue())
	require.EqualValues(t, 2, find(t, reg, "danaom_search_duration_seconds", "outcome", "ok").GetHistogram().GetSampleCount())
	require.Equal(t, 1.0, find(t, reg, "danaom_logins_total", "state", "SUCCESS").GetCounter().GetValue())
	require.Equal(t, 2.0, find(t, reg, "danaom_wishlist_toggles_total", "action", "add").GetCounter().GetValue())
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.ObserveSearch("ok", time.Second)
	m.IncLogin("x")
	m.IncToggle("x")

	New(nil).IncLogin("x")
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg).IncLogin("SUCCESS")

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), `danaom_logins_total{state="SUCCESS"} 1`))
}
