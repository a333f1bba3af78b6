package websocket

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"

	"ratekit/core"
	"ratekit/realtime"
)

func dial(t *testing.T, url string) *gorillaws.Conn {
	t.Helper()
	conn, _, err := gorillaws.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial ws: %v", err)
	}
	return conn
}

func waitForSubscribers(t *testing.T, hub *realtime.Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Len() < n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d subscribers, got %d", n, hub.Len())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHandlerStreamsEvents(t *testing.T) {
	hub := realtime.NewHub()
	server := httptest.NewServer(Handler(hub))
	defer server.Close()

	wsURL := "ws" + server.URL[len("http"):] // convert http->ws
	conn := dial(t, wsURL)
	defer conn.Close()
	waitForSubscribers(t, hub, 1)

	ev := core.NewEvent(core.EventPromptShown, time.Now(), core.UsageState{InstallID: "alice", LaunchCount: 10})
	hub.Broadcast(context.Background(), ev)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read message: %v", err)
	}

	var received core.Event
	if err := json.Unmarshal(msg, &received); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if received.InstallID != "alice" || received.LaunchCount != 10 {
		t.Fatalf("unexpected event: %+v", received)
	}
}

func TestHandlerFiltersByInstall(t *testing.T) {
	hub := realtime.NewHub()
	server := httptest.NewServer(Handler(hub))
	defer server.Close()

	conn := dial(t, "ws"+server.URL[len("http"):]+"?install_id=Alice")
	defer conn.Close()
	waitForSubscribers(t, hub, 1)

	hub.Broadcast(context.Background(), core.NewEvent(core.EventSessionStarted, time.Now(), core.UsageState{InstallID: "bob"}))
	hub.Broadcast(context.Background(), core.NewEvent(core.EventPromptDeclined, time.Now(), core.UsageState{InstallID: "alice"}))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var received core.Event
	if err := conn.ReadJSON(&received); err != nil {
		t.Fatalf("read: %v", err)
	}
	if received.InstallID != "alice" || received.Type != core.EventPromptDeclined {
		t.Fatalf("unexpected event: %+v", received)
	}
}
