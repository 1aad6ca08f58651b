package events

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// Emitter publishes events from goroutines that must never block, such as
// the file watcher callback. Events are queued and published in order by a
// single worker; when the queue is full they are dropped.
type Emitter struct {
	bus *EventBus
	ch  chan BusEvent

	dropped atomic.Int64
	once    sync.Once
}

// NewEmitter creates an emitter for bus, or DefaultBus when bus is nil.
func NewEmitter(bus *EventBus, buffer int) *Emitter {
	if bus == nil {
		bus = DefaultBus
	}
	if buffer < 1 {
		buffer = 64
	}
	return &Emitter{bus: bus, ch: make(chan BusEvent, buffer)}
}

func (e *Emitter) start() {
	e.once.Do(func() {
		go func() {
			for ev := range e.ch {
				e.bus.Publish(ev)
			}
		}()
	})
}

// Emit queues ev without blocking.
func (e *Emitter) Emit(ev BusEvent) {
	if ev == nil {
		return
	}
	e.start()
	select {
	case e.ch <- ev:
	default:
		n := e.dropped.Add(1)
		if n == 1 || n%100 == 0 {
			slog.Default().Debug("event dropped, queue full", "dropped", n, "event_type", ev.EventType())
		}
	}
}

// Dropped returns how many events were dropped.
func (e *Emitter) Dropped() int64 { return e.dropped.Load() }
