package state

import (
	"reflect"
	"testing"
	"time"
)

func TestStore_SetAndGet(t *testing.T) {
	s := NewStore()
	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return fixed })

	if !s.Set("light1", "on", map[string]any{"brightness": 80}) {
		t.Fatal("Set() of new entity should report a change")
	}

	e, ok := s.Get("light1")
	if !ok {
		t.Fatal("Get() did not find entity")
	}
	if e.State != "on" || e.Attributes["brightness"] != 80 || !e.LastChanged.Equal(fixed) {
		t.Errorf("Get() = %+v", e)
	}

	if v, ok := s.State("light1"); !ok || v != "on" {
		t.Errorf("State() = (%v, %v)", v, ok)
	}
	if _, ok := s.State("missing"); ok {
		t.Error("State() of unknown entity should report false")
	}
	if got := s.States(); !reflect.DeepEqual(got, map[string]any{"light1": "on"}) {
		t.Errorf("States() = %v", got)
	}
	if got := s.Attributes("light1"); got["brightness"] != 80 {
		t.Errorf("Attributes() = %v", got)
	}
}

func TestStore_SetUnchanged(t *testing.T) {
	s := NewStore()
	s.Set("a", "on", nil)

	calls := 0
	s.Watch([]string{"a"}, false, func(string) { calls++ })

	if s.Set("a", "on", nil) {
		t.Error("Set() with identical state should report no change")
	}
	if calls != 0 {
		t.Errorf("watch fired %d times for unchanged state", calls)
	}
}

func TestStore_ReturnsCopies(t *testing.T) {
	s := NewStore()
	s.Set("a", "on", map[string]any{"k": "v"})

	attrs := s.Attributes("a")
	attrs["k"] = "mutated"

	if s.Attributes("a")["k"] != "v" {
		t.Error("mutating returned attributes changed the store")
	}
}

func TestStore_Watch(t *testing.T) {
	s := NewStore()

	var specific, wildcard []string
	cancel := s.Watch([]string{"motion"}, false, func(e string) { specific = append(specific, e) })
	s.Watch(nil, true, func(e string) { wildcard = append(wildcard, e) })

	s.Set("motion", "on", nil)
	s.Set("door", "open", nil)

	if !reflect.DeepEqual(specific, []string{"motion"}) {
		t.Errorf("specific watch saw %v", specific)
	}
	if !reflect.DeepEqual(wildcard, []string{"motion", "door"}) {
		t.Errorf("wildcard watch saw %v", wildcard)
	}

	cancel()
	cancel()
	s.Set("motion", "off", nil)
	if len(specific) != 1 {
		t.Errorf("cancelled watch fired again: %v", specific)
	}
	if s.WatchCount() != 1 {
		t.Errorf("WatchCount() = %d, want 1", s.WatchCount())
	}
}

func TestStore_WatchOrderAndReentrancy(t *testing.T) {
	s := NewStore()

	var order []int
	var cancelSecond func()
	s.Watch([]string{"x"}, false, func(string) {
		order = append(order, 1)
		cancelSecond()
		// Reading inside a callback must not deadlock.
		s.State("x")
	})
	cancelSecond = s.Watch([]string{"x"}, false, func(string) { order = append(order, 2) })
	s.Watch([]string{"x"}, false, func(string) { order = append(order, 3) })

	s.Set("x", 1, nil)

	if !reflect.DeepEqual(order, []int{1, 3}) {
		t.Errorf("order = %v, want [1 3] (second cancelled by first)", order)
	}
}

func TestStore_RemoveAndList(t *testing.T) {
	s := NewStore()
	s.Set("b", "2", nil)
	s.Set("a", "1", nil)

	list := s.List()
	if len(list) != 2 || list[0].ID != "a" || list[1].ID != "b" {
		t.Errorf("List() = %+v, want sorted a, b", list)
	}

	fired := false
	s.Watch([]string{"a"}, false, func(string) { fired = true })
	if !s.Remove("a") || !fired {
		t.Error("Remove() should delete and notify")
	}
	if s.Remove("a") {
		t.Error("Remove() of missing entity should report false")
	}
}
