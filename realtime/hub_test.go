package realtime

import (
	"context"
	"testing"

	"progresskit/core"
)

func TestHubBroadcast(t *testing.T) {
	h := NewHub()
	id, ch := h.Subscribe(4)
	defer h.Unsubscribe(id)

	h.Broadcast(context.Background(), core.NewLevelUp("u", 3))
	ev := <-ch
	if ev.Type != core.EventLevelUp || ev.Level != 3 {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestHubDropWhenFull(t *testing.T) {
	h := NewHub()
	id, ch := h.Subscribe(1)
	defer h.Unsubscribe(id)

	h.Broadcast(context.Background(), core.NewStreakExtended("u", 1))
	h.Broadcast(context.Background(), core.NewStreakExtended("u", 2))
	// second event is dropped, not blocked on
	ev := <-ch
	if ev.StreakDays != 1 {
		t.Fatalf("unexpected event: %+v", ev)
	}
	select {
	case ev := <-ch:
		t.Fatalf("expected drop, got %+v", ev)
	default:
	}
}

func TestHubUnsubscribeCloses(t *testing.T) {
	h := NewHub()
	id, ch := h.Subscribe(1)
	h.Unsubscribe(id)
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed")
	}
}
