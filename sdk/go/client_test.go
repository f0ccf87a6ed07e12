package sdk

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"progresskit/core"
)

func TestClient_ActivityLootUserHealth(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	client, err := NewClient(srv.URL+"/api", WithAPIKey("k1"))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	ctx := context.Background()

	res, err := client.ReportActivity(ctx, "alice", ActivityRequest{
		ActivityTag:   "complete_lesson",
		TransactionID: "tx-1",
	})
	if err != nil {
		t.Fatalf("report activity: %v", err)
	}
	if res.NewTotalXP != 50 || res.AwardedXP != 50 {
		t.Fatalf("unexpected result: %+v", res)
	}

	grant, err := client.GrantLoot(ctx, "alice")
	if err != nil || grant.Tier != "rare" {
		t.Fatalf("grant loot: %+v err=%v", grant, err)
	}

	summary, err := client.GetUser(ctx, "alice")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if summary.Totals.UserID != "alice" || summary.Totals.CumulativeXP != 50 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	health, err := client.Health(ctx)
	if err != nil || health.Status != "healthy" {
		t.Fatalf("health: %+v err=%v", health, err)
	}
}

func TestClient_Leaderboard(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	client, err := NewClient(srv.URL + "/api")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	entries, err := client.Leaderboard(context.Background(), 2)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(entries) != 2 || entries[0].User != "alice" {
		t.Fatalf("unexpected entries: %+v", entries)
	}

	snap, err := client.LeaderboardSnapshot(context.Background(), "weekly")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Period != "weekly" || len(snap.Entries) != 1 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestClient_EmptyUserRejected(t *testing.T) {
	client, err := NewClient("http://localhost:0/api")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := client.ReportActivity(context.Background(), " ", ActivityRequest{}); err != ErrEmptyUserID {
		t.Fatalf("expected ErrEmptyUserID, got %v", err)
	}
}

func TestClient_SubscribeEvents(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	client, err := NewClient(srv.URL + "/api")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	events, err := client.SubscribeEvents(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	select {
	case evt := <-events:
		if evt.Type != core.EventXPAwarded {
			t.Fatalf("unexpected event type: %s", evt.Type)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for event")
	}
}

// test server implementing the minimal API surface expected by the SDK.
func newTestServer() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"healthy","checks":{"storage":"ok"}}`))
	})
	mux.HandleFunc("/api/leaderboard", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"entries":[{"user_id":"alice","xp":50,"level":1},{"user_id":"bob","xp":20,"level":1}]}`))
	})
	mux.HandleFunc("/api/leaderboard/snapshot", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"period":   r.URL.Query().Get("period"),
			"taken_at": time.Now().UTC(),
			"entries":  []map[string]any{{"rank": 1, "user_id": "alice", "xp": 50, "level": 1}},
		})
	})
	mux.HandleFunc("/api/users/", func(w http.ResponseWriter, r *http.Request) {
		// /api/users/{id}[/activity|/loot]
		path := r.URL.Path[len("/api/users/"):]
		parts := strings.Split(path, "/")
		if len(parts) == 0 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		userID := parts[0]
		if len(parts) == 1 && r.Method == http.MethodGet {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"totals":{"user_id":"` + userID + `","cumulative_xp":50,"current_level":1},"streak":{"current_streak_days":1},"progress":{"counters":{},"unlocked":{}},"title":"Novice"}`))
			return
		}
		if len(parts) >= 2 && parts[1] == "activity" && r.Method == http.MethodPost {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"new_total_xp":50,"new_level":1,"streak_days":1,"awarded_xp":50}`))
			return
		}
		if len(parts) >= 2 && parts[1] == "loot" && r.Method == http.MethodPost {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"tier":"rare","item_ref":"course_discount"}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})

	upgrader := websocket.Upgrader{}
	mux.HandleFunc("/api/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		evt := core.NewXPAwarded("alice", "complete_lesson", 50, 50)
		_ = conn.WriteJSON(evt)
	})

	return httptest.NewServer(mux)
}
