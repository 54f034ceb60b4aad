package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"

	"travelkit/core"
	"travelkit/realtime"
)

func dial(t *testing.T, server *httptest.Server, query string) *gorillaws.Conn {
	t.Helper()
	wsURL := "ws" + server.URL[len("http"):] + query // convert http->ws
	conn, _, err := gorillaws.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial ws: %v", err)
	}
	return conn
}

func waitForSubscribers(t *testing.T, hub *realtime.Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers() < n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d subscribers", n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHandlerStreamsEvents(t *testing.T) {
	hub := realtime.NewHub()
	server := httptest.NewServer(Handler(hub, nil))
	defer server.Close()

	conn := dial(t, server, "")
	defer conn.Close()
	waitForSubscribers(t, hub, 1)

	hub.Broadcast(context.Background(), core.NewScoreUpdated("alice", 5, 5))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read message: %v", err)
	}

	var received core.Event
	if err := json.Unmarshal(msg, &received); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if received.UserID != "alice" || received.Total != 5 {
		t.Fatalf("unexpected event: %+v", received)
	}
}

func TestHandlerFiltersByUser(t *testing.T) {
	hub := realtime.NewHub()
	server := httptest.NewServer(Handler(hub, nil))
	defer server.Close()

	conn := dial(t, server, "?user=Alice&types=level_up")
	defer conn.Close()
	waitForSubscribers(t, hub, 1)

	ctx := context.Background()
	hub.Broadcast(ctx, core.NewLevelUp("bob", core.TravelerLevel(300), 300))
	hub.Broadcast(ctx, core.NewScoreUpdated("alice", 10, 100))
	hub.Broadcast(ctx, core.NewLevelUp("alice", core.TravelerLevel(100), 100))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read message: %v", err)
	}
	var received core.Event
	if err := json.Unmarshal(msg, &received); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if received.UserID != "alice" || received.Type != core.EventLevelUp {
		t.Fatalf("unexpected event: %+v", received)
	}
}

func TestHandlerRejectsBadUser(t *testing.T) {
	hub := realtime.NewHub()
	server := httptest.NewServer(Handler(hub, nil))
	defer server.Close()

	resp, err := http.Get(server.URL + "?user=a/b")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("want 400 got %d", resp.StatusCode)
	}
}

func TestHandlerUnsubscribesOnClose(t *testing.T) {
	hub := realtime.NewHub()
	server := httptest.NewServer(Handler(hub, nil))
	defer server.Close()

	conn := dial(t, server, "")
	waitForSubscribers(t, hub, 1)
	_ = conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber not removed after client closed")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
