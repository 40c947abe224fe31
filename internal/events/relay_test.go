package events

import (
	"strings"
	"testing"

	"hivekeeper/internal/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeLine(t *testing.T) {
	e, ok := DecodeLine("simple_http", []byte(`{"level":"info","time":"2024-05-01T10:00:00Z","event_type":"simple_http","kind":"interaction","act":"simple_http","src":"127.0.0.1","request":"GET /","user_agent":"curl/8","message":"GET /"}`))
	require.True(t, ok)
	assert.Equal(t, KindInteraction, e.Kind)
	assert.Equal(t, "simple_http", e.EventType)
	assert.Equal(t, "simple_http", e.Act)
	assert.Equal(t, "127.0.0.1", e.Src)
	assert.Equal(t, "GET /", e.Request)
	assert.Equal(t, "curl/8", e.Extras["user_agent"])
	assert.Equal(t, 2024, e.Timestamp.Year())

	e, ok = DecodeLine("simple_http", []byte("listening on :8888"))
	require.True(t, ok)
	assert.Equal(t, KindOutput, e.Kind)
	assert.Equal(t, "output", e.EventType)
	assert.Equal(t, "listening on :8888", e.Message)

	_, ok = DecodeLine("simple_http", []byte("   "))
	assert.False(t, ok)

	e, ok = DecodeLine("simple_http", []byte(`{"service":"spoofed","act":"x","message":"hi"}`))
	require.True(t, ok)
	assert.Equal(t, "simple_http", e.Service)
	assert.Equal(t, KindInteraction, e.Kind)
}

func TestRelayRoutesReadiness(t *testing.T) {
	out := &memorySink{name: "mem"}
	d := NewDispatcher(out)

	var ready []Event
	r := &Relay{Service: "simple_http", RunID: "run-1", Pid: 99, Out: d, OnReady: func(e Event) {
		ready = append(ready, e)
	}}
	input := strings.Join([]string{
		`{"kind":"ready","message":"Starting simple_http service on port: 8888","port":8888}`,
		`{"kind":"interaction","act":"simple_http","src":"127.0.0.1","request":"GET /","message":"GET /"}`,
		`plain`,
	}, "\n")
	require.NoError(t, r.Run(strings.NewReader(input)))

	require.Len(t, ready, 1)
	assert.Equal(t, "Starting simple_http service on port: 8888", ready[0].Message)
	assert.Equal(t, "run-1", ready[0].RunID)
	assert.Equal(t, float64(8888), ready[0].Extras["port"])

	require.Len(t, out.events, 2)
	assert.Equal(t, KindInteraction, out.events[0].Kind)
	assert.Equal(t, 99, out.events[0].Pid)
	assert.Equal(t, KindOutput, out.events[1].Kind)
}

func TestRelaySkipsOversizedLine(t *testing.T) {
	out := &memorySink{name: "mem"}
	r := &Relay{Service: "simple_http", RunID: "run-2", Pid: 7, Out: NewDispatcher(out)}
	huge := `{"kind":"interaction","act":"simple_http","src":"10.0.0.1","request":"GET /?q=` +
		strings.Repeat(`\"`, maxLineSize) + `"}`
	input := huge + "\n" + `{"kind":"interaction","act":"simple_http","src":"10.0.0.2","request":"GET /"}` + "\n"

	require.NoError(t, r.Run(strings.NewReader(input)))

	require.Len(t, out.events, 2)
	assert.Equal(t, KindOutput, out.events[0].Kind)
	assert.Equal(t, LevelWarn, out.events[0].Level)
	assert.Contains(t, out.events[0].Message, "dropped oversized output line")
	assert.Equal(t, "run-2", out.events[0].RunID)
	assert.Equal(t, KindInteraction, out.events[1].Kind)
	assert.Equal(t, "10.0.0.2", out.events[1].Src)
	assert.Equal(t, "GET /", out.events[1].Message)
}

func TestRelayCountsInteractions(t *testing.T) {
	c := metrics.Interactions.WithLabelValues("relay_count", "ssh_login")
	before := testutil.ToFloat64(c)
	r := &Relay{Service: "relay_count", Out: NewDispatcher()}
	input := `{"kind":"interaction","act":"ssh_login","src":"10.0.0.1","request":"GET /"}` + "\n" +
		`{"kind":"output","message":"noise"}` + "\n" +
		`{"kind":"interaction","act":"ssh_login","src":"10.0.0.1","request":"GET /a"}`
	require.NoError(t, r.Run(strings.NewReader(input)))
	assert.Equal(t, before+2, testutil.ToFloat64(c))
}
