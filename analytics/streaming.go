package analytics

import (
	"context"
	"io"
	"sync"
	"time"

	"progresskit/core"
)

// StreamSubscriber receives progression events in real time.
type StreamSubscriber interface {
	OnStreamEvent(e core.Event)
	Close() error
}

// StreamPublisher fans progression events out to registered subscribers
// while feeding an EngagementMetrics instance. Register it as the hook on
// the event bus and attach subscribers as consumers come and go.
type StreamPublisher struct {
	mu          sync.RWMutex
	subscribers map[string]StreamSubscriber
	metrics     *EngagementMetrics
}

func NewStreamPublisher(metrics *EngagementMetrics) *StreamPublisher {
	return &StreamPublisher{
		subscribers: make(map[string]StreamSubscriber),
		metrics:     metrics,
	}
}

// Subscribe adds a subscriber under the given id, replacing any previous one.
func (sp *StreamPublisher) Subscribe(id string, sub StreamSubscriber) {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	sp.subscribers[id] = sub
}

// Unsubscribe removes and closes the subscriber with the given id.
func (sp *StreamPublisher) Unsubscribe(id string) {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	if sub, ok := sp.subscribers[id]; ok {
		_ = sub.Close()
		delete(sp.subscribers, id)
	}
}

// OnEvent implements Hook: events update the metrics and are then fanned out.
func (sp *StreamPublisher) OnEvent(e core.Event) {
	if sp.metrics != nil {
		sp.metrics.OnEvent(e)
	}

	sp.mu.RLock()
	subs := make([]StreamSubscriber, 0, len(sp.subscribers))
	for _, sub := range sp.subscribers {
		subs = append(subs, sub)
	}
	sp.mu.RUnlock()

	for _, sub := range subs {
		func(s StreamSubscriber) {
			defer func() {
				if r := recover(); r != nil {
					// keep the publisher alive if a subscriber misbehaves
				}
			}()
			s.OnStreamEvent(e)
		}(sub)
	}
}

// RealtimeStats summarizes today's activity for dashboards.
func (sp *StreamPublisher) RealtimeStats() map[string]interface{} {
	stats := map[string]interface{}{
		"timestamp": time.Now().UTC(),
	}

	sp.mu.RLock()
	stats["active_subscribers"] = len(sp.subscribers)
	sp.mu.RUnlock()

	if sp.metrics != nil {
		today := time.Now().UTC().Format("2006-01-02")
		stats["active_users_today"] = sp.metrics.ActiveUsers(today)
		stats["xp_awarded_today"] = sp.metrics.XPAwardedByDay(today)
		stats["level_ups_today"] = sp.metrics.LevelUpsByDay(today)
		stats["longest_streak_seen"] = sp.metrics.LongestStreakSeen()
	}

	return stats
}

// ChannelSubscriber buffers events on a channel for pull-style consumers.
// Events are dropped when the buffer is full.
type ChannelSubscriber struct {
	events    chan core.Event
	closeOnce sync.Once
	closed    chan struct{}
}

func NewChannelSubscriber(buffer int) *ChannelSubscriber {
	return &ChannelSubscriber{
		events: make(chan core.Event, buffer),
		closed: make(chan struct{}),
	}
}

func (c *ChannelSubscriber) OnStreamEvent(e core.Event) {
	select {
	case c.events <- e:
	case <-c.closed:
	default:
		// buffer full, drop
	}
}

// ReadEvent blocks until an event arrives, the subscriber closes, or ctx ends.
func (c *ChannelSubscriber) ReadEvent(ctx context.Context) (core.Event, error) {
	select {
	case e := <-c.events:
		return e, nil
	case <-c.closed:
		return core.Event{}, io.EOF
	case <-ctx.Done():
		return core.Event{}, ctx.Err()
	}
}

func (c *ChannelSubscriber) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// MemorySubscriber records events for tests and debugging.
type MemorySubscriber struct {
	mu     sync.RWMutex
	events []core.Event
}

func NewMemorySubscriber() *MemorySubscriber { return &MemorySubscriber{} }

func (m *MemorySubscriber) OnStreamEvent(e core.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
}

// Events returns a copy of everything recorded so far.
func (m *MemorySubscriber) Events() []core.Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.Event, len(m.events))
	copy(out, m.events)
	return out
}

func (m *MemorySubscriber) Close() error { return nil }
