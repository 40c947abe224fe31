package events

import (
	"errors"
	"fmt"
	"sync"

	"hivekeeper/internal/metrics"
)

// ErrSinkClosed is returned by sinks used after Close.
var ErrSinkClosed = errors.New("sink closed")

/**
 * Sink receives events
 * @description
 * - Emit is called from one goroutine at a time; the Dispatcher
 *   serializes calls per sink so ordering follows emit order
 * - Emit should not block on the network; remote sinks queue and return
 * - Emit returning an error affects only that sink
 */
type Sink interface {
	Name() string
	Emit(Event) error
	Close() error
}

// Emitter is the write side of the pipeline handed to producers.
type Emitter interface {
	Emit(Event)
}

// sinkSlot serializes the calls into one sink.
type sinkSlot struct {
	mu   sync.Mutex
	sink Sink
}

// Dispatcher fans events out to every sink of one invocation. Each sink has
// its own lock, so a slow sink only delays its own queue of callers.
type Dispatcher struct {
	mu      sync.RWMutex
	slots   []*sinkSlot
	closed  bool
	onError func(sink string, err error)
}

func NewDispatcher(sinks ...Sink) *Dispatcher {
	d := &Dispatcher{}
	for _, s := range sinks {
		d.slots = append(d.slots, &sinkSlot{sink: s})
	}
	return d
}

// OnError registers a callback for sink failures (used for diagnostics).
func (d *Dispatcher) OnError(fn func(sink string, err error)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onError = fn
}

// Add attaches another sink.
func (d *Dispatcher) Add(s Sink) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.slots = append(d.slots, &sinkSlot{sink: s})
}

func (d *Dispatcher) Sinks() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.slots))
	for _, s := range d.slots {
		names = append(names, s.sink.Name())
	}
	return names
}

/**
 * Deliver an event to every sink
 * @param {Event} e - Event to deliver
 * @description
 * - Failures and panics of one sink are counted and reported through
 *   OnError, the remaining sinks still receive the event
 * - Events from one producer reach each sink in emit order
 * - Never returns an error to the producer
 */
func (d *Dispatcher) Emit(e Event) {
	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		return
	}
	slots := d.slots
	onError := d.onError
	d.mu.RUnlock()

	for _, slot := range slots {
		slot.mu.Lock()
		err := safeEmit(slot.sink, e)
		slot.mu.Unlock()
		if err != nil {
			metrics.SinkFailures.WithLabelValues(slot.sink.Name()).Inc()
			if onError != nil {
				onError(slot.sink.Name(), err)
			}
			continue
		}
		metrics.EventsEmitted.WithLabelValues(slot.sink.Name(), string(e.Kind)).Inc()
	}
}

func safeEmit(s Sink, e Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink %s panicked: %v", s.Name(), r)
		}
	}()
	return s.Emit(e)
}

// Close closes every sink; later emits are dropped.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	slots := d.slots
	d.mu.Unlock()

	var errs []error
	for _, slot := range slots {
		slot.mu.Lock()
		err := slot.sink.Close()
		slot.mu.Unlock()
		if err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", slot.sink.Name(), err))
		}
	}
	return errors.Join(errs...)
}
