// Package events is the in-process event bus the workspace announces layout
// changes and data reloads on.
package events

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// BusEvent is anything published on an EventBus.
type BusEvent interface {
	EventType() string
	EventTimestamp() time.Time
}

// BaseEvent carries the fields every event shares.
type BaseEvent struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"ts"`
}

func (e BaseEvent) EventType() string         { return e.Type }
func (e BaseEvent) EventTimestamp() time.Time { return e.Timestamp }

// Handler receives published events.
type Handler func(BusEvent)

// UnsubscribeFunc removes a subscription. It is safe to call more than once.
type UnsubscribeFunc func()

type subscription struct {
	id int
	fn Handler
}

// EventBus delivers events synchronously, in subscription order, on the
// publishing goroutine. A handler that panics is logged and skipped.
type EventBus struct {
	mu     sync.RWMutex
	byType map[string][]subscription
	all    []subscription
	nextID int

	historyMu sync.Mutex
	history   []BusEvent
	maxHist   int
}

// NewEventBus creates a bus remembering the last historySize events.
func NewEventBus(historySize int) *EventBus {
	if historySize < 0 {
		historySize = 0
	}
	return &EventBus{byType: make(map[string][]subscription), maxHist: historySize}
}

// DefaultBus is the process-wide bus.
var DefaultBus = NewEventBus(100)

// Subscribe registers fn for one event type.
func (b *EventBus) Subscribe(eventType string, fn Handler) UnsubscribeFunc {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.byType[eventType] = append(b.byType[eventType], subscription{id: id, fn: fn})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.byType[eventType] = remove(b.byType[eventType], id)
	}
}

// SubscribeAll registers fn for every event.
func (b *EventBus) SubscribeAll(fn Handler) UnsubscribeFunc {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.all = append(b.all, subscription{id: id, fn: fn})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.all = remove(b.all, id)
	}
}

func remove(subs []subscription, id int) []subscription {
	out := subs[:0]
	for _, s := range subs {
		if s.id != id {
			out = append(out, s)
		}
	}
	return out
}

// Publish delivers ev to the type subscribers, then to the catch-all ones.
func (b *EventBus) Publish(ev BusEvent) {
	if ev == nil {
		return
	}
	b.record(ev)

	b.mu.RLock()
	subs := make([]subscription, 0, len(b.byType[ev.EventType()])+len(b.all))
	subs = append(subs, b.byType[ev.EventType()]...)
	subs = append(subs, b.all...)
	b.mu.RUnlock()

	for _, s := range subs {
		b.call(s, ev)
	}
}

func (b *EventBus) call(s subscription, ev BusEvent) {
	defer func() {
		if r := recover(); r != nil {
			slog.Default().Error("event handler panicked", "event_type", ev.EventType(), "panic", r)
		}
	}()
	s.fn(ev)
}

func (b *EventBus) record(ev BusEvent) {
	if b.maxHist == 0 {
		return
	}
	b.historyMu.Lock()
	defer b.historyMu.Unlock()
	b.history = append(b.history, ev)
	if len(b.history) > b.maxHist {
		b.history = b.history[len(b.history)-b.maxHist:]
	}
}

// History returns up to n of the most recent events, oldest first.
func (b *EventBus) History(n int) []BusEvent {
	b.historyMu.Lock()
	defer b.historyMu.Unlock()
	if n <= 0 || n > len(b.history) {
		n = len(b.history)
	}
	return append([]BusEvent(nil), b.history[len(b.history)-n:]...)
}

// Event types.
const (
	TypeLayoutUpdate  = "layout.update"
	TypeTableReloaded = "table.reloaded"
	TypeAtlasLoaded   = "atlas.loaded"
)

// LayoutUpdate announces the full set of views alive after a workspace
// change. Views missing from the list have been destroyed.
type LayoutUpdate struct {
	BaseEvent
	Views  []string `json:"views"`
	Active string   `json:"active,omitempty"`
}

// NewLayoutUpdate builds a layout update with the view ids sorted.
func NewLayoutUpdate(views []string, active string) LayoutUpdate {
	ids := append([]string(nil), views...)
	sort.Strings(ids)
	return LayoutUpdate{
		BaseEvent: BaseEvent{Type: TypeLayoutUpdate, Timestamp: time.Now().UTC()},
		Views:     ids,
		Active:    active,
	}
}

// TableReloaded announces that the events file changed on disk.
type TableReloaded struct {
	BaseEvent
	Path string `json:"path"`
}

// NewTableReloaded builds a reload event for path.
func NewTableReloaded(path string) TableReloaded {
	return TableReloaded{
		BaseEvent: BaseEvent{Type: TypeTableReloaded, Timestamp: time.Now().UTC()},
		Path:      path,
	}
}

// AtlasLoaded announces the outcome of an atlas load.
type AtlasLoaded struct {
	BaseEvent
	Source string `json:"source"`
	Error  string `json:"error,omitempty"`
}

// NewAtlasLoaded builds an atlas event; err may be nil.
func NewAtlasLoaded(source string, err error) AtlasLoaded {
	ev := AtlasLoaded{
		BaseEvent: BaseEvent{Type: TypeAtlasLoaded, Timestamp: time.Now().UTC()},
		Source:    source,
	}
	if err != nil {
		ev.Error = err.Error()
	}
	return ev
}
