package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Interaction("like", "success")
		m.FetchSuperseded("post")
		m.FetchFailed("post")
		m.RealtimeState(2)
		m.RealtimeDial()
		m.NotificationReceived("live", true)
		m.NoticePublished("info")
		m.RetentionDeleted(3)
	})
	assert.Nil(t, m.Registry())
}

func TestCounters(t *testing.T) {
	m := New()

	m.Interaction("like", "success")
	m.Interaction("like", "success")
	m.Interaction("like", "in_flight")
	m.NotificationReceived("live", false)
	m.RetentionDeleted(4)
	m.RetentionDeleted(0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.interactions.WithLabelValues("like", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.interactions.WithLabelValues("like", "in_flight")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notifications.WithLabelValues("live", "duplicate")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.retentionDeletions))
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New()
	m.RealtimeState(2)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "blogify_realtime_state 2")
}
