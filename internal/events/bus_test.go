package events

import (
	"errors"
	"reflect"
	"testing"
)

func TestPublishDeliversSynchronously(t *testing.T) {
	bus := NewEventBus(10)

	var typed, all []string
	bus.Subscribe(TypeLayoutUpdate, func(e BusEvent) {
		typed = append(typed, e.(LayoutUpdate).Active)
	})
	bus.SubscribeAll(func(e BusEvent) {
		all = append(all, e.EventType())
	})

	bus.Publish(NewLayoutUpdate([]string{"b", "a"}, "a"))
	bus.Publish(NewAtlasLoaded("atlas.jpg", nil))

	if !reflect.DeepEqual(typed, []string{"a"}) {
		t.Errorf("typed handler saw %v", typed)
	}
	if !reflect.DeepEqual(all, []string{TypeLayoutUpdate, TypeAtlasLoaded}) {
		t.Errorf("catch-all handler saw %v", all)
	}
}

func TestNewLayoutUpdateSortsViews(t *testing.T) {
	in := []string{"view-3", "view-1", "view-2"}
	ev := NewLayoutUpdate(in, "view-2")
	if !reflect.DeepEqual(ev.Views, []string{"view-1", "view-2", "view-3"}) {
		t.Errorf("Views = %v", ev.Views)
	}
	if in[0] != "view-3" {
		t.Error("NewLayoutUpdate modified its input")
	}
}

func TestUnsubscribe(t *testing.T) {
	bus := NewEventBus(0)
	n := 0
	unsub := bus.Subscribe(TypeTableReloaded, func(BusEvent) { n++ })

	bus.Publish(NewTableReloaded("x"))
	unsub()
	unsub()
	bus.Publish(NewTableReloaded("x"))

	if n != 1 {
		t.Errorf("handler ran %d times, want 1", n)
	}
}

func TestPanickingHandlerDoesNotStopDelivery(t *testing.T) {
	bus := NewEventBus(0)
	bus.Subscribe(TypeAtlasLoaded, func(BusEvent) { panic("boom") })
	reached := false
	bus.Subscribe(TypeAtlasLoaded, func(BusEvent) { reached = true })

	bus.Publish(NewAtlasLoaded("atlas.jpg", errors.New("404")))
	if !reached {
		t.Error("second handler was not called")
	}
}

func TestHistory(t *testing.T) {
	bus := NewEventBus(2)
	bus.Publish(NewTableReloaded("1"))
	bus.Publish(NewTableReloaded("2"))
	bus.Publish(NewTableReloaded("3"))

	h := bus.History(0)
	if len(h) != 2 || h[0].(TableReloaded).Path != "2" || h[1].(TableReloaded).Path != "3" {
		t.Errorf("History = %+v", h)
	}
	if got := bus.History(1); len(got) != 1 || got[0].(TableReloaded).Path != "3" {
		t.Errorf("History(1) = %+v", got)
	}

	ev := NewAtlasLoaded("s", errors.New("404"))
	if ev.Error != "404" {
		t.Errorf("AtlasLoaded.Error = %q", ev.Error)
	}
}
