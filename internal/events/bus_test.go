package events

import "testing"

func TestEmitWithNoHandlersDoesNothing(t *testing.T) {
	b := New()
	b.Emit(Insert, "users", "should never be read")
}

func TestOnAndEmitDeliversInOrder(t *testing.T) {
	b := New()
	var order []int
	b.On(Insert, func(e Event) { order = append(order, 1) })
	b.On(Insert, func(e Event) { order = append(order, 2) })

	b.Emit(Insert, "users", nil)

	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("expected handlers called in registration order, got %v", order)
	}
}

func TestEmitCarriesCollectionAndPayload(t *testing.T) {
	b := New()
	var got Event
	b.On(Update, func(e Event) { got = e })

	b.Emit(Update, "widgets", map[string]any{"id": "1"})

	if got.Collection != "widgets" || got.Type != Update {
		t.Fatalf("unexpected event: %+v", got)
	}
	payload, ok := got.Payload.(map[string]any)
	if !ok || payload["id"] != "1" {
		t.Fatalf("unexpected payload: %v", got.Payload)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New()
	calls := 0
	unsubscribe := b.On(Delete, func(e Event) { calls++ })

	b.Emit(Delete, "users", nil)
	unsubscribe()
	b.Emit(Delete, "users", nil)

	if calls != 1 {
		t.Fatalf("expected exactly 1 call after unsubscribe, got %d", calls)
	}
}

func TestHandlerPanicIsReemittedAsError(t *testing.T) {
	b := New()
	var errEvt Event
	gotErr := false
	b.On(Error, func(e Event) {
		gotErr = true
		errEvt = e
	})
	b.On(Insert, func(e Event) { panic("boom") })

	b.Emit(Insert, "users", nil)

	if !gotErr {
		t.Fatalf("expected a panicking handler to be re-emitted as an Error event")
	}
	if errEvt.Collection != "users" {
		t.Fatalf("expected error event to carry the original collection, got %q", errEvt.Collection)
	}
}

func TestErrorHandlerPanicDoesNotLoop(t *testing.T) {
	b := New()
	calls := 0
	b.On(Error, func(e Event) {
		calls++
		panic("error handler itself panics")
	})
	b.On(Insert, func(e Event) { panic("boom") })

	b.Emit(Insert, "users", nil)

	if calls != 1 {
		t.Fatalf("expected the Error handler to run exactly once despite panicking, got %d", calls)
	}
}
