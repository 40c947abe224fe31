package events

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySink struct {
	name   string
	mu     sync.Mutex
	events []Event
	fail   error
	panics bool
	closed bool
}

func (m *memorySink) Name() string { return m.name }

func (m *memorySink) Emit(e Event) error {
	if m.panics {
		panic("boom")
	}
	if m.fail != nil {
		return m.fail
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

func (m *memorySink) Close() error {
	m.closed = true
	return nil
}

func (m *memorySink) messages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, e := range m.events {
		out = append(out, e.Message)
	}
	return out
}

func TestDispatcherIsolatesFailures(t *testing.T) {
	good := &memorySink{name: "good"}
	failing := &memorySink{name: "failing", fail: errors.New("disk full")}
	panicking := &memorySink{name: "panicking", panics: true}

	var failed []string
	d := NewDispatcher(failing, panicking, good)
	d.OnError(func(sink string, err error) {
		failed = append(failed, sink)
	})

	d.Emit(CLI(LevelInfo, "one"))
	d.Emit(CLI(LevelInfo, "two"))

	assert.Equal(t, []string{"one", "two"}, good.messages())
	assert.Equal(t, []string{"failing", "panicking", "failing", "panicking"}, failed)
}

func TestDispatcherPreservesOrder(t *testing.T) {
	sink := &memorySink{name: "mem"}
	d := NewDispatcher(sink)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			d.Emit(Interaction("simple_http", "simple_http", "127.0.0.1", string(rune('a'+i%26))))
		}
	}()
	wg.Wait()

	msgs := sink.messages()
	require.Len(t, msgs, 100)
	for i, m := range msgs {
		assert.Equal(t, string(rune('a'+i%26)), m)
	}
}

func TestDispatcherClose(t *testing.T) {
	sink := &memorySink{name: "mem"}
	d := NewDispatcher()
	d.Add(sink)
	assert.Equal(t, []string{"mem"}, d.Sinks())

	require.NoError(t, d.Close())
	assert.True(t, sink.closed)
	d.Emit(CLI(LevelInfo, "late"))
	assert.Empty(t, sink.messages())
	assert.NoError(t, d.Close())
}

func TestEventCopies(t *testing.T) {
	base := Lifecycle("simple_http", "ready", "Starting simple_http service on port: 8888")
	withPort := base.WithExtra("port", 8888)
	assert.Nil(t, base.Extras["port"])
	assert.Equal(t, 8888, withPort.Extras["port"])
	assert.Equal(t, "ready", withPort.State())
	assert.True(t, base.IsServiceLevel())
	assert.False(t, CLI(LevelInfo, "x").IsServiceLevel())
	assert.NotEqual(t, base.ID, CLI(LevelInfo, "x").ID)
}
