package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"strconv"

	mem "progresskit/adapters/memory"
	ws "progresskit/adapters/websocket"
	"progresskit/catalog"
	"progresskit/core"
	"progresskit/engine"
	"progresskit/realtime"
)

func main() {
	// Use readable text logging for development/demo
	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(textHandler))

	ctx := context.Background()
	store := mem.New()
	bus := engine.NewEventBus(engine.DispatchAsync)
	svc := engine.NewProgressionService(store, bus, catalog.Default(), nil)
	hub := realtime.NewHub()

	// Forward progression events to WebSocket clients
	bus.SubscribeAll(func(ctx context.Context, e core.Event) { hub.Broadcast(ctx, e) })

	http.Handle("/ws", ws.Handler(hub))
	http.HandleFunc("/users/", func(w http.ResponseWriter, r *http.Request) {
		// routes: POST /users/{id}/activity?tag=complete_lesson&tx=tx-1&xp=0,
		//         POST /users/{id}/loot, GET /users/{id}
		parts := split(r.URL.Path, '/')
		if len(parts) < 2 {
			http.NotFound(w, r)
			return
		}
		user := core.UserID(parts[1])
		switch r.Method {
		case http.MethodPost:
			if len(parts) >= 3 && parts[2] == "activity" {
				xp, _ := strconv.ParseInt(r.URL.Query().Get("xp"), 10, 64)
				res, err := svc.ProcessActivity(ctx, engine.ActivityEvent{
					UserID:        user,
					ActivityTag:   core.ActivityTag(r.URL.Query().Get("tag")),
					XPAmount:      xp,
					TransactionID: core.TransactionID(r.URL.Query().Get("tx")),
				})
				writeJSON(w, map[string]any{"result": res, "err": errString(err)})
				return
			}
			if len(parts) >= 3 && parts[2] == "loot" {
				grant, err := svc.GrantLoot(ctx, user, rand.Float64(), rand.Float64())
				writeJSON(w, map[string]any{"grant": grant, "err": errString(err)})
				return
			}
		case http.MethodGet:
			summary, err := svc.GetUser(ctx, user)
			if err != nil {
				http.Error(w, err.Error(), 500)
				return
			}
			writeJSON(w, summary)
			return
		}
		http.NotFound(w, r)
	})

	slog.Info("starting demo server on :8080")

	if err := http.ListenAndServe(":8080", nil); err != nil {
		slog.Error("demo server crashed", "error", err)
		os.Exit(1)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func errString(err error) any {
	if err == nil {
		return nil
	}
	return err.Error()
}

func split(p string, sep rune) []string {
	var parts []string
	current := make([]rune, 0, len(p))

	for _, r := range p {
		if r == sep {
			if len(current) > 0 {
				parts = append(parts, string(current))
				current = current[:0]
			}
			continue
		}
		current = append(current, r)
	}

	if len(current) > 0 {
		parts = append(parts, string(current))
	}

	return parts
}
