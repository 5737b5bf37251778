package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, m *Metrics, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, metric := range f.GetMetric() {
			match := true
			for _, lp := range metric.GetLabel() {
				if labels[lp.GetName()] != lp.GetValue() {
					match = false
				}
			}
			if match && len(metric.GetLabel()) == len(labels) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestRecorders(t *testing.T) {
	m := New()
	m.CycleDone(CycleOK, 2*time.Second)
	m.CycleDone(CycleOK, time.Second)
	m.CycleDone(CycleError, time.Second)
	m.Fetched("alice", 5)
	m.NewPost("alice")
	m.NewPost("alice")
	m.PostProcessed()
	m.PostFailed()
	m.Notified(true)
	m.Notified(false)

	require.EqualValues(t, 2, counterValue(t, m, "tweetwatch_cycles_total", map[string]string{"status": "ok"}))
	require.EqualValues(t, 1, counterValue(t, m, "tweetwatch_cycles_total", map[string]string{"status": "error"}))
	require.EqualValues(t, 5, counterValue(t, m, "tweetwatch_posts_fetched_total", map[string]string{"account": "alice"}))
	require.EqualValues(t, 2, counterValue(t, m, "tweetwatch_posts_new_total", map[string]string{"account": "alice"}))
	require.EqualValues(t, 1, counterValue(t, m, "tweetwatch_posts_processed_total", nil))
	require.EqualValues(t, 1, counterValue(t, m, "tweetwatch_post_failures_total", nil))
	require.EqualValues(t, 1, counterValue(t, m, "tweetwatch_notifications_total", map[string]string{"result": "failed"}))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.CycleDone(CycleOK, time.Second)
	m.Fetched("a", 1)
	m.NewPost("a")
	m.PostProcessed()
	m.PostFailed()
	m.Notified(true)
	require.Nil(t, m.Registry())

	rec := httptest.NewRecorder()
	m.Router(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter(t *testing.T) {
	m := New()
	m.PostProcessed()

	var ready atomic.Bool
	ready.Store(true)
	srv := httptest.NewServer(m.Router(ready.Load))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), "tweetwatch_posts_processed_total 1")

	resp, err = http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	ready.Store(false)
	resp, err = http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
