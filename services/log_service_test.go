package services

import (
	"path/filepath"
	"testing"

	"hivekeeper/internal/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogServiceRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug.log")
	sink, err := events.NewDebugFileSink(path)
	require.NoError(t, err)
	require.NoError(t, sink.Emit(events.CLI(events.LevelInfo, "hello")))
	require.NoError(t, sink.Emit(events.Lifecycle("simple_http", "ready", "Starting simple_http service on port: 8888")))
	require.NoError(t, sink.Emit(events.Interaction("simple_http", "simple_http", "127.0.0.1", "GET /")))
	require.NoError(t, sink.Emit(events.Interaction("simple_http", "simple_http", "127.0.0.1", "GET /admin")))
	require.NoError(t, sink.Close())

	ls := NewLogService(path)
	all, err := ls.Read(LogQuery{})
	require.NoError(t, err)
	assert.Len(t, all, 4)

	hits, err := ls.Read(LogQuery{Service: "simple_http", Kind: "interaction", Tail: 1})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Contains(t, hits[0], "GET /admin")

	none, err := NewLogService(filepath.Join(t.TempDir(), "missing.log")).Read(LogQuery{})
	assert.NoError(t, err)
	assert.Empty(t, none)
}
