// Package progress is the batteries-included entry point: it assembles a
// ProgressionService from options, defaulting to in-memory storage, the
// built-in catalog and async event dispatch.
package progress

import (
	"context"

	mem "progresskit/adapters/memory"
	"progresskit/catalog"
	"progresskit/core"
	"progresskit/engine"
	"progresskit/leaderboard"
	"progresskit/realtime"
)

// Option configures the progression service builder.
type Option func(*builder)

type builder struct {
	storage engine.Storage
	catalog *catalog.Catalog
	board   leaderboard.Board
	mode    engine.DispatchMode
	hub     *realtime.Hub
}

// WithStorage sets the persistence adapter.
func WithStorage(s engine.Storage) Option { return func(b *builder) { b.storage = s } }

// WithCatalog sets the achievement/loot/title catalog.
func WithCatalog(c *catalog.Catalog) Option { return func(b *builder) { b.catalog = c } }

// WithBoard sets the live leaderboard implementation.
func WithBoard(board leaderboard.Board) Option { return func(b *builder) { b.board = board } }

// WithDispatchMode selects sync or async event dispatch.
func WithDispatchMode(m engine.DispatchMode) Option { return func(b *builder) { b.mode = m } }

// WithRealtime wires a realtime hub to receive all engine events.
func WithRealtime(h *realtime.Hub) Option { return func(b *builder) { b.hub = h } }

// New builds a configured ProgressionService. Defaults:
//   - storage: in-memory
//   - catalog: built-in defaults
//   - dispatch: async
//   - leaderboard: skip list
func New(opts ...Option) *engine.ProgressionService {
	b := &builder{mode: engine.DispatchAsync}
	for _, o := range opts {
		o(b)
	}
	if b.storage == nil {
		b.storage = mem.New()
	}
	if b.catalog == nil {
		b.catalog = catalog.Default()
	}
	bus := engine.NewEventBus(b.mode)
	svc := engine.NewProgressionService(b.storage, bus, b.catalog, b.board)
	if b.hub != nil {
		bus.SubscribeAll(func(ctx context.Context, e core.Event) {
			b.hub.Broadcast(ctx, e)
		})
	}
	return svc
}
