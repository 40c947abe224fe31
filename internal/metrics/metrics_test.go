package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersRegistered(t *testing.T) {
	before := testutil.ToFloat64(SinkFailures.WithLabelValues("syslog"))
	SinkFailures.WithLabelValues("syslog").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(SinkFailures.WithLabelValues("syslog")))

	families, err := Registry.Gather()
	require.NoError(t, err)
	var found bool
	for _, mf := range families {
		if mf.GetName() == "hivekeeper_sink_failures_total" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestPush(t *testing.T) {
	assert.NoError(t, Push("", "job", nil))

	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		assert.True(t, strings.HasPrefix(r.URL.Path, "/metrics/job/hivekeeper"))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	EventsEmitted.WithLabelValues("debug", "cli").Inc()
	require.NoError(t, Push(srv.URL, "hivekeeper", map[string]string{"instance": "simple_http"}))
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}
