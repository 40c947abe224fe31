package events

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"hivekeeper/internal/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readJSONLines(t *testing.T, path string) []map[string]interface{} {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var out []map[string]interface{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m), "line is not valid JSON: %s", sc.Text())
		out = append(out, m)
	}
	require.NoError(t, sc.Err())
	return out
}

func TestDebugFileSinkWritesEverything(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "hivekeeper.debug.log")
	sink, err := NewDebugFileSink(path)
	require.NoError(t, err)

	require.NoError(t, sink.Emit(CLI(LevelDebug, "loading config")))
	require.NoError(t, sink.Emit(Failure("show", errors.New("service 'x' not found"))))
	require.NoError(t, sink.Emit(Interaction("simple_http", "simple_http", "127.0.0.1", "GET /").WithRun("r1", 42)))
	require.NoError(t, sink.Close())
	assert.ErrorIs(t, sink.Emit(CLI(LevelInfo, "late")), ErrSinkClosed)

	lines := readJSONLines(t, path)
	require.Len(t, lines, 3)
	assert.Equal(t, "cli", lines[0]["kind"])
	assert.Equal(t, "debug", lines[0]["level"])
	assert.Equal(t, "service 'x' not found", lines[1]["message"])
	assert.Equal(t, map[string]interface{}{"command": "show"}, lines[1]["extras"])
	assert.Equal(t, "simple_http", lines[2]["event_type"])
	assert.Equal(t, "GET /", lines[2]["request"])
	assert.Equal(t, "127.0.0.1", lines[2]["src"])
	assert.Equal(t, "r1", lines[2]["run_id"])
	assert.Equal(t, float64(42), lines[2]["pid"])
	assert.NotEmpty(t, lines[2]["timestamp"])
	assert.NotEmpty(t, lines[2]["id"])
}

func TestJSONFileSinkKeepsServiceEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.json")
	sink, err := NewJSONFileSink(path)
	require.NoError(t, err)

	require.NoError(t, sink.Emit(CLI(LevelInfo, "ignored")))
	require.NoError(t, sink.Emit(Output("simple_http", "plain text")))
	require.NoError(t, sink.Emit(Lifecycle("simple_http", "ready", "Starting simple_http service on port: 8888")))
	require.NoError(t, sink.Emit(Interaction("simple_http", "simple_http", "127.0.0.1", "GET /")))
	require.NoError(t, sink.Close())

	lines := readJSONLines(t, path)
	require.Len(t, lines, 2)
	assert.Equal(t, "lifecycle", lines[0]["kind"])
	assert.Equal(t, "interaction", lines[1]["kind"])
	assert.Equal(t, "simple_http", lines[1]["event_type"])
	assert.Equal(t, "GET /", lines[1]["request"])
}

func TestFileSinkAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug.log")
	for i := 0; i < 2; i++ {
		sink, err := NewDebugFileSink(path)
		require.NoError(t, err)
		require.NoError(t, sink.Emit(CLI(LevelInfo, "run")))
		require.NoError(t, sink.Close())
	}
	assert.Len(t, readJSONLines(t, path), 2)
}

type failingWriter struct{ err error }

func (f failingWriter) Write(p []byte) (int, error) { return 0, f.err }
func (f failingWriter) Close() error                { return nil }

func TestFileSinkReportsWriteErrors(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "debug.log"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	sink := NewWriterSink("debug", f, false)
	err = sink.Emit(CLI(LevelInfo, "lost"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrClosed), err.Error())

	full := NewWriterSink("json", failingWriter{err: errors.New("no space left on device")}, true)
	before := testutil.ToFloat64(metrics.SinkFailures.WithLabelValues("json"))
	var failed []string
	d := NewDispatcher(full)
	d.OnError(func(name string, err error) {
		failed = append(failed, name+": "+err.Error())
	})
	d.Emit(Interaction("simple_http", "simple_http", "127.0.0.1", "GET /"))
	d.Emit(CLI(LevelInfo, "not a service event"))

	require.Len(t, failed, 1)
	assert.Equal(t, "json: write json log: no space left on device", failed[0])
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.SinkFailures.WithLabelValues("json")))
}
