package eventbus

import (
	"slices"
	"testing"
)

func TestBus_EmitInSubscriptionOrder(t *testing.T) {
	var bus Bus[string]
	var got []string

	bus.On(func(s string) { got = append(got, "a:"+s) })
	bus.On(func(s string) { got = append(got, "b:"+s) })
	bus.On(func(s string) { got = append(got, "c:"+s) })

	bus.Emit("x")

	want := []string{"a:x", "b:x", "c:x"}
	if !slices.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestBus_PanickingHandlerIsIsolated(t *testing.T) {
	var bus Bus[int]
	calls := 0

	bus.On(func(int) { calls++ })
	bus.On(func(int) { panic("boom") })
	bus.On(func(int) { calls++ })

	bus.Emit(1)

	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestBus_UnsubscribeDuringEmit(t *testing.T) {
	var bus Bus[int]
	var got []string

	var unsubB func()
	bus.On(func(int) {
		got = append(got, "a")
		unsubB()
	})
	unsubB = bus.On(func(int) { got = append(got, "b") })

	bus.Emit(1)
	if !slices.Equal(got, []string{"a", "b"}) {
		t.Fatalf("first pass = %v, want [a b]", got)
	}

	got = nil
	bus.Emit(2)
	if !slices.Equal(got, []string{"a"}) {
		t.Errorf("second pass = %v, want [a]", got)
	}
}

func TestBus_SubscribeDuringEmit(t *testing.T) {
	var bus Bus[int]
	late := 0

	bus.On(func(int) {
		bus.On(func(int) { late++ })
	})

	bus.Emit(1)
	if late != 0 {
		t.Errorf("late subscriber ran during the pass that added it")
	}

	bus.Emit(2)
	if late != 1 {
		t.Errorf("late = %d, want 1", late)
	}
}

func TestBus_UnsubscribeIsIdempotent(t *testing.T) {
	var bus Bus[int]
	unsub := bus.On(func(int) {})
	bus.On(func(int) {})

	unsub()
	unsub()

	if bus.Len() != 1 {
		t.Errorf("Len() = %d, want 1", bus.Len())
	}
}
