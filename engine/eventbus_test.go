package engine

import (
	"context"
	"testing"
	"time"

	"progresskit/core"
)

func TestEventBusSync(t *testing.T) {
	bus := NewEventBus(DispatchSync)
	count := 0
	bus.Subscribe(core.EventXPAwarded, func(ctx context.Context, e core.Event) { count++ })
	bus.Publish(context.Background(), core.NewXPAwarded("u", "pass_quiz", 10, 10))
	if count != 1 {
		t.Fatalf("want 1 got %d", count)
	}
}

func TestEventBusAsync(t *testing.T) {
	bus := NewEventBus(DispatchAsync)
	defer bus.Close()
	ch := make(chan struct{})
	bus.Subscribe(core.EventXPAwarded, func(ctx context.Context, e core.Event) { close(ch) })
	bus.Publish(context.Background(), core.NewXPAwarded("u", "pass_quiz", 10, 10))
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("timeout")
	}
}

func TestEventBusUnsubscribe(t *testing.T) {
	bus := NewEventBus(DispatchSync)
	count := 0
	unsub := bus.Subscribe(core.EventLevelUp, func(ctx context.Context, e core.Event) { count++ })
	bus.Publish(context.Background(), core.NewLevelUp("u", 2))
	unsub()
	bus.Publish(context.Background(), core.NewLevelUp("u", 3))
	if count != 1 {
		t.Fatalf("want 1 got %d", count)
	}
}

func TestEventBusSubscribeAll(t *testing.T) {
	bus := NewEventBus(DispatchSync)
	count := 0
	bus.SubscribeAll(func(ctx context.Context, e core.Event) { count++ })
	bus.Publish(context.Background(), core.NewXPAwarded("u", "x", 1, 1))
	bus.Publish(context.Background(), core.NewLootGranted("u", core.RarityRare, "avatar_frame_silver"))
	bus.Publish(context.Background(), core.NewStreakExtended("u", 4))
	if count != 3 {
		t.Fatalf("want 3 got %d", count)
	}
}
