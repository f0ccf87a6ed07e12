package websocket

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"

	"progresskit/core"
	"progresskit/realtime"
)

func TestHandlerStreamsEvents(t *testing.T) {
	hub := realtime.NewHub()
	srv := httptest.NewServer(Handler(hub))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := gorillaws.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	// give the handler a moment to subscribe
	deadline := time.Now().Add(2 * time.Second)
	var ev core.Event
	for {
		hub.Broadcast(context.Background(), core.NewLootGranted("u", core.RarityEpic, "animated_badge"))
		_ = conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		if err := conn.ReadJSON(&ev); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("no event received")
		}
	}
	if ev.Type != core.EventLootGranted || ev.Tier != core.RarityEpic {
		t.Fatalf("unexpected event: %+v", ev)
	}
}
