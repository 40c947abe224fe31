package events

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

/**
 * FileSink writes one JSON object per line
 * @description
 * - The debug sink takes every event; the JSON sink only service events
 * - Lines are produced by zerolog in a single Write on an O_APPEND file,
 *   so lines from concurrent processes never interleave
 */
type FileSink struct {
	name        string
	serviceOnly bool
	mu          sync.Mutex
	out         io.WriteCloser
	w           *errWriter
	log         zerolog.Logger
}

// errWriter keeps the write error zerolog would otherwise only print.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) Write(p []byte) (int, error) {
	n, err := e.w.Write(p)
	if err == nil && n < len(p) {
		err = io.ErrShortWrite
	}
	if err != nil {
		e.err = err
	}
	return n, err
}

func openAppend(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
}

func newFileSink(name, path string, serviceOnly bool) (*FileSink, error) {
	f, err := openAppend(path)
	if err != nil {
		return nil, fmt.Errorf("open %s log %s: %w", name, path, err)
	}
	return NewWriterSink(name, f, serviceOnly), nil
}

// NewDebugFileSink opens the mandatory audit log.
func NewDebugFileSink(path string) (*FileSink, error) {
	return newFileSink("debug", path, false)
}

// NewJSONFileSink opens the optional service event log.
func NewJSONFileSink(path string) (*FileSink, error) {
	return newFileSink("json", path, true)
}

// NewWriterSink builds a file style sink over any writer.
func NewWriterSink(name string, w io.WriteCloser, serviceOnly bool) *FileSink {
	ew := &errWriter{w: w}
	return &FileSink{
		name:        name,
		serviceOnly: serviceOnly,
		out:         w,
		w:           ew,
		log:         zerolog.New(ew).Level(zerolog.TraceLevel),
	}
}

func (s *FileSink) Name() string {
	return s.name
}

func (s *FileSink) Emit(e Event) error {
	if s.serviceOnly && !e.IsServiceLevel() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.out == nil {
		return ErrSinkClosed
	}
	s.w.err = nil
	writeEvent(&s.log, e)
	if s.w.err != nil {
		return fmt.Errorf("write %s log: %w", s.name, s.w.err)
	}
	return nil
}

func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.out == nil {
		return nil
	}
	err := s.out.Close()
	s.out = nil
	return err
}

func zerologLevel(level string) zerolog.Level {
	l, err := zerolog.ParseLevel(level)
	if err != nil || l == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return l
}

// writeEvent renders the full event field set as one zerolog line.
func writeEvent(l *zerolog.Logger, e Event) {
	ev := l.WithLevel(zerologLevel(e.Level)).
		Str("id", e.ID).
		Time("timestamp", e.Timestamp).
		Str("event_type", e.EventType).
		Str("kind", string(e.Kind))
	if e.Service != "" {
		ev = ev.Str("service", e.Service)
	}
	if e.Src != "" {
		ev = ev.Str("src", e.Src)
	}
	if e.Act != "" {
		ev = ev.Str("act", e.Act)
	}
	if e.Request != "" {
		ev = ev.Str("request", e.Request)
	}
	if e.RunID != "" {
		ev = ev.Str("run_id", e.RunID)
	}
	if e.Pid != 0 {
		ev = ev.Int("pid", e.Pid)
	}
	if len(e.Extras) > 0 {
		keys := make([]string, 0, len(e.Extras))
		for k := range e.Extras {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		dict := zerolog.Dict()
		for _, k := range keys {
			dict = dict.Interface(k, e.Extras[k])
		}
		ev = ev.Dict("extras", dict)
	}
	ev.Msg(e.Message)
}
