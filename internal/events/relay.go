package events

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"hivekeeper/internal/metrics"
)

const maxLineSize = 1024 * 1024

// Fields of a child line that map onto Event members; the rest become extras.
var reservedFields = map[string]bool{
	"level": true, "time": true, "timestamp": true, "message": true, "msg": true,
	"event_type": true, "kind": true, "act": true, "src": true, "request": true,
	"service": true, "id": true, "run_id": true, "pid": true,
}

func stringField(m map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

/**
 * Decode one line written by a decoy child
 * @param {string} service - Service the child runs as
 * @param {[]byte} line - Raw stdout line
 * @returns {(Event, bool)} Event and false for blank lines
 * @description
 * - JSON objects become structured events, anything else an output event
 * - The service is always the supervised one, whatever the child claims
 */
func DecodeLine(service string, line []byte) (Event, bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return Event{}, false
	}
	var m map[string]interface{}
	if line[0] != '{' || json.Unmarshal(line, &m) != nil {
		return Output(service, string(line)), true
	}

	kind := Kind(stringField(m, "kind"))
	switch kind {
	case KindReady, KindInteraction, KindLifecycle, KindOutput:
	default:
		if stringField(m, "act", "request") != "" {
			kind = KindInteraction
		} else {
			kind = KindOutput
		}
	}
	level := stringField(m, "level")
	if level == "" {
		level = LevelInfo
	}
	e := newEvent(kind, service, service, level, stringField(m, "message", "msg"))
	if et := stringField(m, "event_type"); et != "" {
		e.EventType = et
	}
	if kind == KindOutput {
		e.EventType = string(KindOutput)
	}
	if ts := stringField(m, "time", "timestamp"); ts != "" {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			e.Timestamp = t.UTC()
		}
	}
	e.Act = stringField(m, "act")
	e.Src = stringField(m, "src")
	e.Request = stringField(m, "request")
	if e.Message == "" && kind == KindInteraction {
		e.Message = e.Request
	}
	for k, v := range m {
		if reservedFields[k] {
			continue
		}
		if e.Extras == nil {
			e.Extras = make(map[string]interface{})
		}
		e.Extras[k] = v
	}
	return e, true
}

/**
 * Relay copies a child's event stream into the pipeline
 * @property {string} Service - Supervised service name
 * @property {string} RunID - Run the events belong to
 * @property {int} Pid - Child pid
 * @property {Emitter} Out - Destination pipeline
 * @property {func(Event)} OnReady - Receives readiness announcements instead of Out
 */
type Relay struct {
	Service string
	RunID   string
	Pid     int
	Out     Emitter
	OnReady func(Event)
}

// Run reads lines until EOF. Events keep the order the child wrote them.
// A line longer than maxLineSize is dropped and reported, reading goes on.
func (r *Relay) Run(rd io.Reader) error {
	br := bufio.NewReaderSize(rd, 64*1024)
	for {
		line, size, err := readLine(br, maxLineSize)
		if size > maxLineSize {
			e := Output(r.Service, fmt.Sprintf("dropped oversized output line (%d bytes)", size))
			e.Level = LevelWarn
			r.Out.Emit(e.WithRun(r.RunID, r.Pid))
		} else {
			r.relay(line)
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("relay %s output: %w", r.Service, err)
		}
	}
}

func (r *Relay) relay(line []byte) {
	e, ok := DecodeLine(r.Service, line)
	if !ok {
		return
	}
	e = e.WithRun(r.RunID, r.Pid)
	if e.Kind == KindReady {
		if r.OnReady != nil {
			r.OnReady(e)
		}
		return
	}
	if e.Kind == KindInteraction {
		metrics.Interactions.WithLabelValues(r.Service, e.Act).Inc()
	}
	r.Out.Emit(e)
}

// readLine returns the next line and its full size. The bytes are only kept
// while size <= limit; past that the rest of the line is consumed and dropped.
func readLine(br *bufio.Reader, limit int) ([]byte, int, error) {
	var (
		line []byte
		size int
	)
	for {
		frag, err := br.ReadSlice('\n')
		size += len(frag)
		if size <= limit {
			line = append(line, frag...)
		} else {
			line = nil
		}
		if err != bufio.ErrBufferFull {
			return line, size, err
		}
	}
}
